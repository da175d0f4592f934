package filesystem

import (
	"io/fs"
	"os"
)

type FileFlag int

const (
	O_RDONLY = FileFlag(os.O_RDONLY)
	O_WRONLY = FileFlag(os.O_WRONLY)
	O_RDWR   = FileFlag(os.O_RDWR)
	O_APPEND = FileFlag(os.O_APPEND)
	O_CREATE = FileFlag(os.O_CREATE)
	O_EXCL   = FileFlag(os.O_EXCL)
	O_SYNC   = FileFlag(os.O_SYNC)
	O_TRUNC  = FileFlag(os.O_TRUNC)

	O_ACCMODE = O_RDONLY | O_WRONLY | O_RDWR
)

type FS interface {
	fs.FS
	OpenFile(name string, flag FileFlag, perm fs.FileMode) (File, error)
}

type DirFS interface {
	FS
	ReadDir(name string) ([]fs.DirEntry, error)
}

func Open(f FS, name string) (fs.File, error) {
	file, err := f.OpenFile(name, O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return file.(fs.File), nil
}

// ParseFlag maps the short access modes r, w and rw to open flags.
func ParseFlag(mode string) (FileFlag, bool) {
	switch mode {
	case "r", "ro":
		return O_RDONLY, true
	case "w", "wo":
		return O_WRONLY, true
	case "rw", "":
		return O_RDWR, true
	}
	return 0, false
}
