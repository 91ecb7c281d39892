//go:build !unix

package audio

import (
	"unsafe"
)

func allocPageAligned(size int) ([]byte, error) {
	raw := make([]byte, size+poolAlign)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) & (poolAlign - 1)); rem != 0 {
		off = poolAlign - rem
	}
	return raw[off : off+size : off+size], nil
}

func freePageAligned([]byte) error {
	return nil
}
