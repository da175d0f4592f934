package filesystem

import (
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/wnxd/vdisk/device"
	"github.com/wnxd/vdisk/internal/vdev"
	"github.com/wnxd/vdisk/storage"
)

type devFS struct {
	reg     device.Registry
	modTime time.Time
}

type devFile struct {
	device.Handle
	flag FileFlag
}

type devDir struct {
	fs   *devFS
	read int
}

type dirInfo struct {
	modTime time.Time
}

// DevFS exposes every device in reg as a character file in a flat
// directory, the way /dev does.
func DevFS(reg device.Registry) DirFS {
	return &devFS{reg: reg, modTime: time.Now()}
}

func (d *devFS) Open(name string) (fs.File, error) {
	return Open(d, name)
}

func (d *devFS) Stat(name string) (fs.FileInfo, error) {
	name, err := clean("stat", name)
	if err != nil {
		return nil, err
	} else if name == "." {
		return dirInfo{d.modTime}, nil
	}
	dev, err := d.reg.LookupName(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return vdev.NewFileInfo(dev.Info(), d.modTime), nil
}

func (d *devFS) OpenFile(name string, flag FileFlag, perm fs.FileMode) (File, error) {
	name, err := clean("open", name)
	if err != nil {
		return nil, err
	}
	if name == "." {
		if flag&O_ACCMODE != O_RDONLY {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
		}
		return &devDir{fs: d}, nil
	}
	dev, err := d.reg.LookupName(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if flag&O_EXCL != 0 {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrExist}
	}
	h, err := dev.Open()
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	if flag&O_TRUNC != 0 && flag&O_ACCMODE != O_RDONLY {
		dev.Reset()
	}
	return &devFile{Handle: h, flag: flag}, nil
}

func (d *devFS) ReadDir(name string) ([]fs.DirEntry, error) {
	name, err := clean("readdir", name)
	if err != nil {
		return nil, err
	} else if name != "." {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	return d.entries(), nil
}

func (d *devFS) entries() []fs.DirEntry {
	infos := d.reg.Devices()
	arr := make([]fs.DirEntry, len(infos))
	for i, info := range infos {
		arr[i] = fs.FileInfoToDirEntry(vdev.NewFileInfo(info, d.modTime))
	}
	return arr
}

func clean(op, name string) (string, error) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "dev" {
		name = ""
	} else {
		name = strings.TrimPrefix(name, "dev/")
	}
	if name == "" {
		return ".", nil
	} else if strings.Contains(name, "/") {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	return name, nil
}

func (f *devFile) Read(b []byte) (int, error) {
	return f.ReadTo(storage.Bytes(b), len(b))
}

func (f *devFile) Write(b []byte) (int, error) {
	return f.WriteFrom(storage.Bytes(b), len(b))
}

// ReadTo reports the end of the device as io.EOF so the file works with
// io.ReadAll and fs.ReadFile.
func (f *devFile) ReadTo(dst io.WriterAt, n int) (int, error) {
	if f.flag&O_ACCMODE == O_WRONLY {
		return 0, errors.Wrap(fs.ErrPermission, "read on write-only file")
	}
	n, err := f.Handle.ReadTo(dst, n)
	if errors.Is(err, device.ErrOutOfRange) {
		return n, io.EOF
	}
	return n, err
}

func (f *devFile) WriteFrom(src io.ReaderAt, n int) (int, error) {
	if f.flag&O_ACCMODE == O_RDONLY {
		return 0, errors.Wrap(fs.ErrPermission, "write on read-only file")
	}
	return f.Handle.WriteFrom(src, n)
}

func (dd *devDir) Close() error {
	return nil
}

func (dd *devDir) Stat() (fs.FileInfo, error) {
	return dirInfo{dd.fs.modTime}, nil
}

func (dd *devDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: ".", Err: fs.ErrInvalid}
}

func (dd *devDir) ReadDir(n int) ([]fs.DirEntry, error) {
	entries := dd.fs.entries()
	if dd.read >= len(entries) {
		entries = nil
	} else {
		entries = entries[dd.read:]
	}
	if n <= 0 {
		dd.read += len(entries)
		return entries, nil
	} else if len(entries) == 0 {
		return nil, io.EOF
	}
	entries = entries[:min(n, len(entries))]
	dd.read += len(entries)
	return entries, nil
}

func (fi dirInfo) Name() string {
	return "dev"
}

func (fi dirInfo) Size() int64 {
	return 0
}

func (fi dirInfo) Mode() fs.FileMode {
	return fs.ModeDir | 0o755
}

func (fi dirInfo) ModTime() time.Time {
	return fi.modTime
}

func (fi dirInfo) IsDir() bool {
	return true
}

func (fi dirInfo) Sys() any {
	return nil
}
