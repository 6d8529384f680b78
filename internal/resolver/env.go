package resolver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Env answers the process-wide lookups the resolver depends on.
type Env interface {
	Getenv(key string) (string, bool)
	HomeDir() (string, error)
}

// OSEnv reads the real process environment.
type OSEnv struct{}

func (OSEnv) Getenv(key string) (string, bool) { return os.LookupEnv(key) }

func (OSEnv) HomeDir() (string, error) { return os.UserHomeDir() }

var _ Env = OSEnv{}

// MapEnv is a fixed environment, mostly useful in tests and dry runs.
type MapEnv struct {
	Vars map[string]string
	Home string
}

func (m MapEnv) Getenv(key string) (string, bool) {
	v, ok := m.Vars[key]
	return v, ok
}

func (m MapEnv) HomeDir() (string, error) {
	if m.Home == "" {
		return "", errors.New("home directory not set")
	}
	return m.Home, nil
}

// Prompter asks the user for an NDK root.
type Prompter interface {
	PromptRoot(ctx context.Context) (string, error)
}

// Acquirer produces a fresh NDK root, typically by downloading one.
type Acquirer interface {
	Acquire(ctx context.Context) (string, error)
}

// LinePrompter prints a question on Out and reads one line from In. The read
// blocks and cannot be interrupted through ctx.
type LinePrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p LinePrompter) PromptRoot(_ context.Context) (string, error) {
	fmt.Fprintln(p.Out, "Can't find NDK root path.")
	fmt.Fprint(p.Out, "Please enter NDK root path: ")

	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read ndk root: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" && errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read ndk root: %w", io.ErrUnexpectedEOF)
	}
	return line, nil
}

var _ Prompter = LinePrompter{}
