// Command vdisk drives in-memory character devices from an interactive shell
// or a script.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abiosoft/ishell/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wnxd/vdisk/device"
	"github.com/wnxd/vdisk/device/virtual"
	"github.com/wnxd/vdisk/internal/console"
)

type config struct {
	capacity int
	devices  int
	major    uint32
	trace    bool
}

func (cfg *config) session(trace io.Writer) (*console.Session, error) {
	if cfg.devices < 1 || cfg.devices > device.MAX_DEVICES {
		return nil, errors.Errorf("--devices must be between 1 and %d", device.MAX_DEVICES)
	} else if cfg.major > device.MAX_MAJOR {
		return nil, errors.Errorf("--major must be at most %d", device.MAX_MAJOR)
	}
	var opts []virtual.Option
	if cfg.trace {
		opts = append(opts, virtual.WithTrace(func(ev device.Event) {
			fmt.Fprintln(trace, ev)
		}))
	}
	reg, err := virtual.NewRegistry(virtual.WithMajor(cfg.major))
	if err != nil {
		return nil, err
	}
	if _, err = virtual.Populate(reg, "vdisk", cfg.devices, cfg.capacity, opts...); err != nil {
		return nil, err
	}
	return console.NewSession(reg), nil
}

func newRootCmd() *cobra.Command {
	cfg := &config{}
	root := &cobra.Command{
		Use:           "vdisk",
		Short:         "In-memory character devices with open, seek, read, write and clear",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.IntVar(&cfg.capacity, "capacity", device.CAP_4K, "bytes per device")
	flags.IntVar(&cfg.devices, "devices", 1, "number of devices to register")
	flags.Uint32Var(&cfg.major, "major", device.DEFAULT_MAJOR, "major device number")
	flags.BoolVar(&cfg.trace, "trace", false, "print every device operation")

	root.AddCommand(newShellCmd(cfg), newRunCmd(cfg), newInfoCmd(cfg))
	return root
}

func newShellCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := cfg.session(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer session.Close()

			shell := ishell.New()
			shell.SetPrompt("vdisk> ")
			for _, c := range session.Commands() {
				shell.AddCmd(&ishell.Cmd{
					Name:     c.Name,
					Help:     c.Help,
					LongHelp: c.Name + " " + c.Usage,
					Func: func(ctx *ishell.Context) {
						args := append([]string{c.Name}, ctx.Args...)
						if err := session.Exec(contextWriter{ctx}, args); err != nil {
							ctx.Err(err)
						}
					},
				})
			}
			shell.Println("vdisk shell, type help for commands")
			shell.Run()
			return nil
		},
	}
}

func newRunCmd(cfg *config) *cobra.Command {
	var keepGoing bool
	cmd := &cobra.Command{
		Use:   "run <script|->",
		Short: "Execute commands from a script, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			session, err := cfg.session(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer session.Close()
			return session.RunScript(r, cmd.OutOrStdout(), keepGoing)
		},
	}
	cmd.Flags().BoolVarP(&keepGoing, "keep-going", "k", false, "continue after a failing line")
	return cmd
}

func newInfoCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "List the devices a session would start with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := cfg.session(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer session.Close()
			out := cmd.OutOrStdout()
			if err = session.Exec(out, []string{"devices"}); err != nil {
				return err
			}
			fmt.Fprintf(out, "clear command %#x\n", device.CMD_MEM_CLEAR)
			return nil
		},
	}
}

type contextWriter struct {
	ctx *ishell.Context
}

func (w contextWriter) Write(p []byte) (int, error) {
	w.ctx.Print(strings.TrimSuffix(string(p), "\n") + "\n")
	return len(p), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vdisk:", err)
		os.Exit(1)
	}
}
