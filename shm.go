package client

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SharedMemoryHandle is a scoped acquisition of a memory-mapped region
// identified by a file descriptor and length, following the teacher
// pattern of construction-acquires / destruction-releases. The core never
// owns fd beyond handing it to the mapping primitive; once mapped, the
// handle owns both the mapping and the descriptor and releases them
// together on Close.
type SharedMemoryHandle struct {
	fd     int32
	length uint32
	base   []byte
}

// newSharedMemoryHandle maps (fd, length) read-write/shared at an
// arbitrary address. It fails with ErrInvalidResource if fd < 0 or
// length == 0, and with ErrMappingFailure (wrapping the system error) if
// the mapping primitive rejects the request. In both failure cases the
// descriptor, if owned, is closed before returning.
func newSharedMemoryHandle(fd int32, length uint32) (*SharedMemoryHandle, error) {
	if fd < 0 || length == 0 {
		if fd >= 0 {
			unix.Close(int(fd))
		}
		return nil, ErrInvalidResource
	}

	base, err := unix.Mmap(int(fd), 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(int(fd))
		return nil, fmt.Errorf("%w: %v", ErrMappingFailure, err)
	}

	return &SharedMemoryHandle{fd: fd, length: length, base: base}, nil
}

// Bytes returns the mapped region. It is valid for the handle's lifetime;
// callers must not retain it past Close.
func (h *SharedMemoryHandle) Bytes() []byte {
	return h.base
}

// Length reports the mapped region's size in bytes.
func (h *SharedMemoryHandle) Length() uint32 {
	return h.length
}

// Close unmaps the region and closes the descriptor. It is safe to call at
// most once; the controller guarantees this by construction.
func (h *SharedMemoryHandle) Close() error {
	if h.base != nil {
		if err := unix.Munmap(h.base); err != nil {
			unix.Close(int(h.fd))
			h.base = nil
			return fmt.Errorf("munmap: %w", err)
		}
		h.base = nil
	}
	return unix.Close(int(h.fd))
}
