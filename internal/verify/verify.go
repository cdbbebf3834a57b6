package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"visual-compare/internal/convert"
)

// CommandFunc builds the argv that validates the named file.
type CommandFunc func(path string) []string

type Options struct {
	// Timeout bounds a single verification. Zero disables the bound.
	Timeout time.Duration
	// EnableXMLLint registers xmllint validation for SVG files when the
	// tool is installed. Off by default.
	EnableXMLLint bool
}

// Verifiers maps file extensions to external validation commands. Like the
// converter registry it is built once and read-only afterwards; with no
// registrations Verify only checks that the file exists.
type Verifiers struct {
	commands map[string]CommandFunc
	timeout  time.Duration
}

func NewVerifiers(commands map[string]CommandFunc, opts Options) *Verifiers {
	copied := make(map[string]CommandFunc, len(commands))
	for ext, c := range commands {
		copied[ext] = c
	}
	return &Verifiers{
		commands: copied,
		timeout:  opts.Timeout,
	}
}

// Detect returns the verifier registry for this system according to the
// given options.
func Detect(opts Options) *Verifiers {
	commands := map[string]CommandFunc{}

	if opts.EnableXMLLint {
		if _, err := exec.LookPath("xmllint"); err == nil {
			commands["svg"] = func(path string) []string {
				return []string{"xmllint", "--valid", "--nowarning", "--noout", path}
			}
		}
	}

	return NewVerifiers(commands, opts)
}

// CommandError reports a validation command that exited non-zero, with its
// captured output embedded in the message.
type CommandError struct {
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "file verification command failed: %s", strings.Join(e.Args, " "))
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	if e.Stdout != "" {
		fmt.Fprintf(&sb, "\nstandard output:\n%s", e.Stdout)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&sb, "\nstandard error:\n%s", e.Stderr)
	}
	return sb.String()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Verify validates the named file with the command registered for its
// extension, if any. A missing file fails regardless of registrations.
func (v *Verifiers) Verify(ctx context.Context, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return &convert.MissingFileError{Path: path}
	} else if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	command, ok := v.commands[extension(path)]
	if !ok {
		return nil
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	args := command(path)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &CommandError{
			Args:   args,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

func extension(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return path[i+1:]
}
