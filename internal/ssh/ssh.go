// Package ssh builds and runs SSH invocations against remote compute
// units. The control plane hands out a per-unit SSH endpoint; every
// interactive channel to a remote session goes through it.
package ssh

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/skybox-dev/skybox/internal/system"
)

// Default SSH configuration values.
const (
	DefaultUser           = "agent"
	DefaultConnectTimeout = 5
)

// Options configures SSH connection parameters.
type Options struct {
	Host               string
	Port               int
	User               string
	StrictHostKeyCheck bool
	KnownHostsFile     string
	ConnectTimeout     int
	BatchMode          bool
	RequestTTY         bool
}

// DefaultOptions returns Options with sensible defaults for unit
// connections. Unit hosts are ephemeral, so host key checking is off
// and known hosts are discarded.
func DefaultOptions(host string, port int) Options {
	return Options{
		Host:               host,
		Port:               port,
		User:               DefaultUser,
		StrictHostKeyCheck: false,
		KnownHostsFile:     "/dev/null",
		ConnectTimeout:     DefaultConnectTimeout,
		BatchMode:          false,
		RequestTTY:         false,
	}
}

// WithUser returns a copy connecting as the given user.
func (o Options) WithUser(user string) Options {
	if user != "" {
		o.User = user
	}
	return o
}

// WithBatchMode returns a copy with batch mode enabled.
func (o Options) WithBatchMode() Options {
	o.BatchMode = true
	return o
}

// WithTTY returns a copy with TTY requested.
func (o Options) WithTTY() Options {
	o.RequestTTY = true
	return o
}

// WithTimeout returns a copy with the specified connect timeout.
func (o Options) WithTimeout(seconds int) Options {
	o.ConnectTimeout = seconds
	return o
}

// BaseArgs returns the common SSH arguments (options only, no
// user@host).
func (o Options) BaseArgs() []string {
	var args []string

	if o.Port > 0 {
		args = append(args, "-p", fmt.Sprintf("%d", o.Port))
	}

	if !o.StrictHostKeyCheck {
		args = append(args, "-o", "StrictHostKeyChecking=no")
	}

	if o.KnownHostsFile != "" {
		args = append(args, "-o", fmt.Sprintf("UserKnownHostsFile=%s", o.KnownHostsFile))
	}

	if o.BatchMode {
		args = append(args, "-o", "BatchMode=yes")
	}

	if o.ConnectTimeout > 0 {
		args = append(args, "-o", fmt.Sprintf("ConnectTimeout=%d", o.ConnectTimeout))
	}

	if o.RequestTTY {
		args = append(args, "-t")
	}

	return args
}

// Destination returns the user@host string.
func (o Options) Destination() string {
	return fmt.Sprintf("%s@%s", o.User, o.Host)
}

// BuildArgs returns complete SSH arguments for executing a command.
func (o Options) BuildArgs(command ...string) []string {
	args := o.BaseArgs()
	args = append(args, o.Destination())
	args = append(args, command...)
	return args
}

// BuildArgsWithArgv returns complete SSH arguments including "ssh" as
// argv[0]. Used for syscall.Exec which requires the program name in
// argv.
func (o Options) BuildArgsWithArgv(command ...string) []string {
	args := []string{"ssh"}
	args = append(args, o.BuildArgs(command...)...)
	return args
}

// Interactive starts an interactive SSH session wired to the current
// terminal.
func Interactive(opts Options, command ...string) error {
	sshArgs := opts.WithTTY().BuildArgs(command...)

	cmd := exec.Command("ssh", sshArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// ReplaceWithSession replaces the current process with an SSH session.
// This uses syscall.Exec and does not return on success.
func ReplaceWithSession(opts Options, command ...string) error {
	sshPath, err := exec.LookPath("ssh")
	if err != nil {
		return fmt.Errorf("ssh not found: %w", err)
	}

	sshArgs := opts.WithTTY().BuildArgsWithArgv(command...)

	return syscall.Exec(sshPath, sshArgs, system.SafeEnviron())
}

// CheckConnection checks if the unit is reachable over SSH.
func CheckConnection(opts Options) bool {
	sshArgs := opts.WithBatchMode().BuildArgs("true")

	cmd := exec.Command("ssh", sshArgs...)
	return cmd.Run() == nil
}
