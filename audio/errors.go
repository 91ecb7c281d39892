package audio

import (
	"errors"

	"github.com/lisuiheng/pcmout/pkg/interfaces"
)

var (
	ErrOutOfMemory       = errors.New("out of memory")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrRendererInit      = interfaces.ErrRendererInit
	ErrInvalidSpec       = errors.New("invalid audio spec")
)

// rendererError 统一成带状态码的错误
func rendererError(op string, err error) error {
	var re *interfaces.ResultError
	if errors.As(err, &re) {
		return re
	}
	return &interfaces.ResultError{Op: op, Err: err}
}
