package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
)

// ParseLine splits a command line the way a POSIX shell would. Blank lines
// and lines starting with # yield no arguments.
func ParseLine(line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}
	return shellwords.Parse(line)
}

// RunScript executes r line by line. Each failing line is reported on out;
// unless keepGoing is set the first failure stops the script and is returned.
func (s *Session) RunScript(r io.Reader, out io.Writer, keepGoing bool) error {
	scanner := bufio.NewScanner(r)
	var failed error
	for lineno := 1; scanner.Scan(); lineno++ {
		args, err := ParseLine(scanner.Text())
		if err == nil {
			err = s.Exec(out, args)
		}
		if err == nil {
			continue
		}
		err = errors.Wrapf(err, "line %d", lineno)
		fmt.Fprintf(out, "error: %v\n", err)
		if !keepGoing {
			return err
		} else if failed == nil {
			failed = err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return failed
}
