// Package viewer opens an image file in an external program and waits for it to exit.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

// Viewer displays an image file
type Viewer interface {
	Show(ctx context.Context, path, title string) error
}

// Blocker is implemented by viewers that know whether Show returns only
// after the image has been closed
type Blocker interface {
	Blocks() bool
}

// Blocks reports whether v holds the image until it is closed. Viewers that
// do not say are assumed to block.
func Blocks(v Viewer) bool {
	if b, ok := v.(Blocker); ok {
		return b.Blocks()
	}
	return true
}

// Command runs an external program with the image path as its last argument
type Command struct {
	Name string
	Args []string
}

// foregroundViewers run until their window is closed, in order of preference
var foregroundViewers = []string{"feh", "nsxiv", "sxiv", "imv", "display", "ristretto", "gpicview"}

// launchers hand the file to another process and return immediately
var launchers = map[string]bool{
	"xdg-open":   true,
	"gio":        true,
	"gnome-open": true,
	"kde-open":   true,
	"kde-open5":  true,
	"wslview":    true,
	"open":       true,
}

// Default returns the platform viewer. On macOS `open -W` waits for the
// application to quit. Elsewhere a foreground viewer from PATH is preferred
// over xdg-open, which returns once the handler has been launched.
func Default() *Command {
	switch runtime.GOOS {
	case "darwin":
		return &Command{Name: "open", Args: []string{"-W"}}
	case "windows":
		return &Command{Name: "cmd", Args: []string{"/c", "start", "/wait", ""}}
	default:
		for _, name := range foregroundViewers {
			if path, err := exec.LookPath(name); err == nil {
				return &Command{Name: path}
			}
		}
		return &Command{Name: "xdg-open"}
	}
}

// Parse builds a command from a whitespace separated command line, e.g. "feh -Z"
func Parse(cmdline string) (*Command, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, errors.New("empty viewer command")
	}
	return &Command{Name: fields[0], Args: fields[1:]}, nil
}

// Blocks reports whether the command waits for the image to be closed
func (c *Command) Blocks() bool {
	name := filepath.Base(c.Name)
	if name == "open" && slices.Contains(c.Args, "-W") {
		return true
	}
	return !launchers[name]
}

// Show starts the viewer and blocks until it exits
func (c *Command) Show(ctx context.Context, path, title string) error {
	args := append(append([]string(nil), c.Args...), path)
	cmd := exec.CommandContext(ctx, c.Name, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("viewer %s for %q: %w", c.Name, title, err)
	}
	return nil
}

// None skips display
type None struct{}

// Show does nothing
func (None) Show(ctx context.Context, path, title string) error {
	return nil
}
