package system

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// osExecutor implements CommandExecutor using real OS operations.
type osExecutor struct{}

func (e *osExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

func (e *osExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}

func (e *osExecutor) ExecuteInteractive(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func (e *osExecutor) ReplaceProcess(name string, args ...string) error {
	binary, err := exec.LookPath(name)
	if err != nil {
		return err
	}

	// Build argv with program name as first element
	argv := append([]string{name}, args...)

	return syscall.Exec(binary, argv, SafeEnviron())
}

// sensitiveEnvSuffixes are stripped from the environment handed to child
// processes that take over the terminal. The CLI loads tokens for its own
// backend calls; foreign processes do not need them.
var sensitiveEnvSuffixes = []string{
	"_TOKEN",
	"_API_KEY",
	"_SECRET",
}

// SafeEnviron returns the current environment minus credential-bearing
// variables.
func SafeEnviron() []string {
	env := os.Environ()
	out := make([]string, 0, len(env))
	for _, kv := range env {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if hasSensitiveSuffix(name) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func hasSensitiveSuffix(name string) bool {
	for _, suffix := range sensitiveEnvSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
