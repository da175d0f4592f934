package filesystem

import "io/fs"

type File interface {
	Close() error
	Stat() (fs.FileInfo, error)
}

type ReadFile interface {
	File
	Read(b []byte) (n int, err error)
}

type WriteFile interface {
	File
	Write(b []byte) (n int, err error)
}

type SeekFile interface {
	File
	Seek(offset int64, whence int) (int64, error)
}

type ControlFile interface {
	File
	Control(op int, arg any) error
}

type DirFile interface {
	File
	ReadDir(n int) ([]fs.DirEntry, error)
}
