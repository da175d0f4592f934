// Package console drives devices from text commands, one command per line.
package console

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/wnxd/vdisk/device"
	"github.com/wnxd/vdisk/filesystem"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
	ErrNotSupported   = errors.New("operation not supported")
)

type Command struct {
	Name    string
	Usage   string
	Help    string
	MinArgs int
	Run     func(s *Session, out io.Writer, args []string) error
}

type Session struct {
	reg   device.Registry
	fs    filesystem.DirFS
	files fileTable
}

func NewSession(reg device.Registry) *Session {
	s := &Session{reg: reg, fs: filesystem.DevFS(reg)}
	s.files.ctor()
	return s
}

// Close releases every descriptor the session still holds.
func (s *Session) Close() error {
	return s.files.dtor()
}

func (s *Session) Commands() []Command {
	return commands
}

func (s *Session) Exec(out io.Writer, args []string) error {
	if len(args) == 0 {
		return nil
	}
	i := slices.IndexFunc(commands, func(c Command) bool { return c.Name == args[0] })
	if i == -1 {
		return errors.Wrap(ErrUnknownCommand, args[0])
	}
	cmd := commands[i]
	if len(args)-1 < cmd.MinArgs {
		return errors.Wrapf(ErrUsage, "%s %s", cmd.Name, cmd.Usage)
	}
	return cmd.Run(s, out, args[1:])
}

var commands []Command

func init() {
	commands = []Command{
		{"devices", "", "list registered devices", 0, (*Session).devices},
		{"open", "<name> [r|w|rw]", "open a device and print its descriptor", 1, (*Session).open},
		{"close", "<fd>", "close a descriptor", 1, (*Session).close},
		{"dup", "<fd>", "duplicate a descriptor sharing its offset", 1, (*Session).dup},
		{"seek", "<fd> <offset> [set|cur|end]", "move the offset", 2, (*Session).seek},
		{"read", "<fd> <n> [hex|text]", "read up to n bytes", 2, (*Session).read},
		{"write", "<fd> <text...>", "write text", 2, (*Session).write},
		{"writex", "<fd> <hex>", "write hex-encoded bytes", 2, (*Session).writex},
		{"clear", "<fd>", "zero the whole device", 1, (*Session).clear},
		{"ioctl", "<fd> <op>", "issue a raw control command", 2, (*Session).ioctl},
		{"stat", "<fd>", "show device and offset", 1, (*Session).stat},
		{"put", "<fd> <type> <value>", "encode a typed value at the offset", 3, (*Session).put},
		{"get", "<fd> <type>", "decode a typed value at the offset", 2, (*Session).get},
	}
}

func (s *Session) devices(out io.Writer, _ []string) error {
	for _, info := range s.reg.Devices() {
		fmt.Fprintf(out, "%s\t%s\t%d bytes\t%d open\n", info.Name, info.Number, info.Capacity, info.OpenCount)
	}
	return nil
}

func (s *Session) open(out io.Writer, args []string) error {
	mode := ""
	if len(args) > 1 {
		mode = args[1]
	}
	flag, ok := filesystem.ParseFlag(mode)
	if !ok {
		return errors.Wrapf(ErrUsage, "access mode %q", mode)
	}
	file, err := s.fs.OpenFile(args[0], flag, 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "fd %d\n", s.files.create(file))
	return nil
}

func (s *Session) close(_ io.Writer, args []string) error {
	fd, err := parseFD(args[0])
	if err != nil {
		return err
	}
	return errors.Wrapf(s.files.close(fd), "fd %d", fd)
}

func (s *Session) dup(out io.Writer, args []string) error {
	fd, err := parseFD(args[0])
	if err != nil {
		return err
	}
	newfd, err := s.files.dup(fd)
	if err != nil {
		return errors.Wrapf(err, "fd %d", fd)
	}
	fmt.Fprintf(out, "fd %d\n", newfd)
	return nil
}

func (s *Session) seek(out io.Writer, args []string) error {
	file, err := s.file(args[0])
	if err != nil {
		return err
	}
	offset, err := strconv.ParseInt(args[1], 0, 64)
	if err != nil {
		return errors.Wrapf(ErrUsage, "offset %q", args[1])
	}
	whence := io.SeekStart
	if len(args) > 2 {
		switch args[2] {
		case "set":
		case "cur":
			whence = io.SeekCurrent
		case "end":
			whence = io.SeekEnd
		default:
			return errors.Wrapf(ErrUsage, "whence %q", args[2])
		}
	}
	sf, ok := file.(filesystem.SeekFile)
	if !ok {
		return ErrNotSupported
	}
	off, err := sf.Seek(offset, whence)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "offset %d\n", off)
	return nil
}

func (s *Session) read(out io.Writer, args []string) error {
	file, err := s.file(args[0])
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 {
		return errors.Wrapf(ErrUsage, "length %q", args[1])
	}
	rf, ok := file.(filesystem.ReadFile)
	if !ok {
		return ErrNotSupported
	}
	buf := make([]byte, n)
	n, err = rf.Read(buf)
	if err != nil {
		return err
	}
	buf = buf[:n]
	if len(args) > 2 && args[2] == "text" {
		fmt.Fprintf(out, "%d bytes %q\n", n, buf)
	} else {
		fmt.Fprintf(out, "%d bytes %s\n", n, hexString(buf))
	}
	return nil
}

func (s *Session) write(out io.Writer, args []string) error {
	return s.writeBytes(out, args[0], []byte(strings.Join(args[1:], " ")))
}

func (s *Session) writex(out io.Writer, args []string) error {
	data, err := parseHex(strings.Join(args[1:], ""))
	if err != nil {
		return errors.Wrapf(ErrUsage, "hex %q", args[1])
	}
	return s.writeBytes(out, args[0], data)
}

func (s *Session) writeBytes(out io.Writer, fdArg string, data []byte) error {
	file, err := s.file(fdArg)
	if err != nil {
		return err
	}
	wf, ok := file.(filesystem.WriteFile)
	if !ok {
		return ErrNotSupported
	}
	n, err := wf.Write(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d of %d bytes\n", n, len(data))
	return nil
}

func (s *Session) clear(out io.Writer, args []string) error {
	return s.ioctl(out, []string{args[0], strconv.Itoa(device.CMD_MEM_CLEAR)})
}

func (s *Session) ioctl(out io.Writer, args []string) error {
	file, err := s.file(args[0])
	if err != nil {
		return err
	}
	op, err := strconv.ParseInt(args[1], 0, 64)
	if err != nil {
		return errors.Wrapf(ErrUsage, "op %q", args[1])
	}
	cf, ok := file.(filesystem.ControlFile)
	if !ok {
		return ErrNotSupported
	}
	return cf.Control(int(op), nil)
}

func (s *Session) stat(out io.Writer, args []string) error {
	file, err := s.file(args[0])
	if err != nil {
		return err
	}
	fi, err := file.Stat()
	if err != nil {
		return err
	}
	info, _ := fi.Sys().(device.Info)
	var off int64
	if sf, ok := file.(filesystem.SeekFile); ok {
		if off, err = sf.Seek(0, io.SeekCurrent); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "%s %s capacity %d open %d offset %d\n", fi.Name(), info.Number, fi.Size(), info.OpenCount, off)
	return nil
}

func (s *Session) file(arg string) (filesystem.File, error) {
	fd, err := parseFD(arg)
	if err != nil {
		return nil, err
	}
	file, err := s.files.get(fd)
	if err != nil {
		return nil, errors.Wrapf(err, "fd %d", fd)
	}
	return file, nil
}

func parseFD(arg string) (int, error) {
	fd, err := strconv.Atoi(arg)
	if err != nil {
		return -1, errors.Wrapf(ErrUsage, "descriptor %q", arg)
	}
	return fd, nil
}
