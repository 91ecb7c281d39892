//go:build unix

package audio

import (
	"golang.org/x/sys/unix"
)

// allocPageAligned 匿名mmap，天然按页对齐
func allocPageAligned(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func freePageAligned(b []byte) error {
	return unix.Munmap(b)
}
