//go:build unix

package tagged

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mapping is a shared, writable memory map of an array backing file.
type mapping struct {
	path  string
	data  []byte
	tags  []uint32
	words []int64
}

// openMapping maps the backing file for an n-cell array. When useExisting is
// set and the file already holds an array of the same length, its contents
// are kept and existed is true; otherwise the file is created or truncated.
func openMapping(path string, n int, useExisting bool) (m *mapping, existed bool, err error) {
	tagsOff, wordsOff, size := backingLayout(n)

	flags := os.O_RDWR | os.O_CREATE
	if useExisting {
		info, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			if info.Size() != int64(size) {
				return nil, false, fmt.Errorf("%w: %s is %d bytes, want %d", ErrBadBackingFile, path, info.Size(), size)
			}
			existed = true
		case errors.Is(statErr, os.ErrNotExist):
		default:
			return nil, false, fmt.Errorf("stat backing file: %w", statErr)
		}
	}
	if !existed {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("open backing file: %w", err)
	}
	// The mapping outlives the descriptor.
	defer f.Close()

	if !existed {
		if err := f.Truncate(int64(size)); err != nil {
			return nil, false, fmt.Errorf("size backing file: %w", err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, false, fmt.Errorf("mmap backing file: %w", err)
	}

	if existed {
		if !checkBackingHeader(data, n) {
			_ = unix.Munmap(data)
			return nil, false, fmt.Errorf("%w: %s", ErrBadBackingFile, path)
		}
	} else {
		writeBackingHeader(data, n)
	}

	return &mapping{
		path:  path,
		data:  data,
		tags:  unsafe.Slice((*uint32)(unsafe.Pointer(&data[tagsOff])), n),
		words: unsafe.Slice((*int64)(unsafe.Pointer(&data[wordsOff])), n),
	}, existed, nil
}

// sync flushes the mapping to the backing file.
func (m *mapping) sync() error {
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync %s: %w", m.path, err)
	}
	return nil
}

// close unmaps the backing file. The slices handed out by openMapping must
// not be used afterwards.
func (m *mapping) close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data, m.tags, m.words = nil, nil, nil
	if err != nil {
		return fmt.Errorf("munmap %s: %w", m.path, err)
	}
	return nil
}
