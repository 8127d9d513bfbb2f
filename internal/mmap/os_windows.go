//go:build windows

package mmap

import (
	"os"
	"syscall"
	"unsafe"
)

func osMap(f *os.File, size int, writable bool) ([]byte, error) {
	protect := uint32(syscall.PAGE_READONLY)
	access := uint32(syscall.FILE_MAP_READ)
	if writable {
		protect = syscall.PAGE_READWRITE
		access = syscall.FILE_MAP_WRITE
	}

	maxSizeHigh := uint32(uint64(size) >> 32)
	maxSizeLow := uint32(uint64(size) & 0xFFFFFFFF)

	h, err := syscall.CreateFileMapping(syscall.Handle(f.Fd()), nil, protect, maxSizeHigh, maxSizeLow, nil)
	if err != nil {
		return nil, err
	}
	defer syscall.CloseHandle(h)

	addr, err := syscall.MapViewOfFile(h, access, 0, 0, uintptr(size))
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func osUnmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return syscall.UnmapViewOfFile(uintptr(unsafe.Pointer(&data[0])))
}

func osFlush(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return syscall.FlushViewOfFile(uintptr(unsafe.Pointer(&data[0])), uintptr(len(data)))
}

func osAdvise(data []byte, pattern AccessPattern) error {
	// No madvise equivalent worth using here; hints are advisory.
	return nil
}
