package graph

import (
	"fmt"
	"os"
	"syscall"
)

// mmapRegion owns a read-only memory mapping of a file.
type mmapRegion struct {
	file *os.File
	data []byte
}

// openMmap memory-maps path read-only, lazily paged in by the OS.
func openMmap(path string) (*mmapRegion, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}
	size := info.Size()
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("cannot map empty file")
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap: %w", err)
	}

	return &mmapRegion{file: f, data: data}, nil
}

// close unmaps the region and closes the backing file. The graph object
// must not be used after Close.
func (m *mmapRegion) close() error {
	var err error
	if m.data != nil {
		if uerr := syscall.Munmap(m.data); uerr != nil {
			err = fmt.Errorf("munmap: %w", uerr)
		}
		m.data = nil
	}
	if m.file != nil {
		if cerr := m.file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close: %w", cerr)
		}
		m.file = nil
	}
	return err
}
