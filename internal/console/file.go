package console

import (
	"io/fs"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/wnxd/vdisk/filesystem"
)

// fileRef shares one open file between duplicated descriptors. The file is
// closed when the last descriptor goes away.
type fileRef struct {
	file  filesystem.File
	count int64
}

type fileTable struct {
	fd     int64
	fileRW sync.RWMutex
	files  map[int]*fileRef
}

func (ft *fileTable) ctor() {
	ft.fd = 2
	ft.files = make(map[int]*fileRef)
}

func (ft *fileTable) create(file filesystem.File) int {
	fd := int(atomic.AddInt64(&ft.fd, 1))
	ft.fileRW.Lock()
	ft.files[fd] = &fileRef{file: file, count: 1}
	ft.fileRW.Unlock()
	return fd
}

func (ft *fileTable) close(fd int) error {
	ft.fileRW.Lock()
	ref, ok := ft.files[fd]
	if ok {
		delete(ft.files, fd)
	}
	ft.fileRW.Unlock()
	if !ok {
		return fs.ErrNotExist
	}
	return ref.Close()
}

func (ft *fileTable) get(fd int) (filesystem.File, error) {
	ft.fileRW.RLock()
	defer ft.fileRW.RUnlock()
	if ref, ok := ft.files[fd]; ok {
		return ref.file, nil
	}
	return nil, fs.ErrNotExist
}

func (ft *fileTable) dup(fd int) (int, error) {
	ft.fileRW.Lock()
	defer ft.fileRW.Unlock()
	ref, ok := ft.files[fd]
	if !ok {
		return -1, fs.ErrNotExist
	}
	atomic.AddInt64(&ref.count, 1)
	newfd := int(atomic.AddInt64(&ft.fd, 1))
	ft.files[newfd] = ref
	return newfd, nil
}

func (ft *fileTable) fds() []int {
	ft.fileRW.RLock()
	defer ft.fileRW.RUnlock()
	return slices.Sorted(maps.Keys(ft.files))
}

func (ft *fileTable) dtor() error {
	var first error
	for _, fd := range ft.fds() {
		if err := ft.close(fd); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f *fileRef) Close() error {
	i := atomic.AddInt64(&f.count, -1)
	if i > 0 {
		return nil
	} else if i < 0 {
		return fs.ErrClosed
	}
	return f.file.Close()
}
