package core

import "errors"

var (
	ErrUnsupportedBackend = errors.New("unsupported renderer backend")
	ErrPlayerClosed       = errors.New("player closed")
	ErrAlreadyRunning     = errors.New("player already running")
)
