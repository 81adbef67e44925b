package client

import (
	"errors"
	"os"
	"testing"
)

func TestNewSharedMemoryHandleInvalidResource(t *testing.T) {
	if _, err := newSharedMemoryHandle(-1, 4096); !errors.Is(err, ErrInvalidResource) {
		t.Fatalf("fd<0: got err=%v, want ErrInvalidResource", err)
	}

	f, err := os.CreateTemp(t.TempDir(), "shm")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := newSharedMemoryHandle(int32(f.Fd()), 0); !errors.Is(err, ErrInvalidResource) {
		t.Fatalf("length==0: got err=%v, want ErrInvalidResource", err)
	}
}

func TestNewSharedMemoryHandleMapsAndCloses(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "shm")
	if err != nil {
		t.Fatal(err)
	}
	const size = 4096
	if err := f.Truncate(size); err != nil {
		t.Fatal(err)
	}

	handle, err := newSharedMemoryHandle(int32(f.Fd()), size)
	if err != nil {
		t.Fatalf("newSharedMemoryHandle: %v", err)
	}
	if handle.Length() != size {
		t.Fatalf("Length() = %d, want %d", handle.Length(), size)
	}
	if len(handle.Bytes()) != size {
		t.Fatalf("len(Bytes()) = %d, want %d", len(handle.Bytes()), size)
	}

	handle.Bytes()[0] = 0xAB
	if handle.Bytes()[0] != 0xAB {
		t.Fatal("write to mapped region did not stick")
	}

	if err := handle.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
