package encoding

import (
	"io"
	"io/fs"
)

type Stream interface {
	BlockSize() int
	Offset() uint64
	Skip(int) error
	Read([]byte) (int, error)
	Write([]byte) (int, error)
}

// sizedStream is a Stream that knows how many bytes are left before its end.
// Encode refuses records that do not fit, so nothing is written.
type sizedStream interface {
	Stream
	Remaining() int64
}

type seekStream struct {
	rws  io.ReadWriteSeeker
	off  uint64
	bs   int
	size int64
}

// SeekStream reads and writes records at the current position of rws.
// A transfer that moves fewer bytes than asked for fails, so a record is
// never silently cut short at the end of a device. When rws can Stat, its
// size bounds Encode.
func SeekStream(rws io.ReadWriteSeeker, blockSize int) (Stream, error) {
	off, err := rws.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	s := &seekStream{rws: rws, off: uint64(off), bs: blockSize, size: -1}
	if sf, ok := rws.(interface{ Stat() (fs.FileInfo, error) }); ok {
		if fi, err := sf.Stat(); err == nil && (fi.Mode().IsRegular() || fi.Mode()&fs.ModeDevice != 0) {
			s.size = fi.Size()
		}
	}
	return s, nil
}

// Remaining returns -1 when the size of the underlying file is unknown.
func (s *seekStream) Remaining() int64 {
	if s.size < 0 {
		return -1
	}
	return max(s.size-int64(s.off), 0)
}

func (s *seekStream) BlockSize() int {
	return s.bs
}

func (s *seekStream) Offset() uint64 {
	return s.off
}

func (s *seekStream) Skip(n int) error {
	off, err := s.rws.Seek(int64(n), io.SeekCurrent)
	if err != nil {
		return err
	}
	s.off = uint64(off)
	return nil
}

func (s *seekStream) Read(b []byte) (int, error) {
	n, err := s.rws.Read(b)
	s.off += uint64(n)
	if err == nil && n < len(b) {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (s *seekStream) Write(b []byte) (int, error) {
	n, err := s.rws.Write(b)
	s.off += uint64(n)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	return n, err
}
