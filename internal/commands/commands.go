// Package commands defines the named operations the CLI can run against a
// server.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/briangreenhill/subsonic/api"
	"github.com/briangreenhill/subsonic/subsonic"
)

// ErrUsage is returned when a command is called with the wrong arguments.
var ErrUsage = errors.New("usage")

// Client is the part of *subsonic.Client the commands use.
type Client interface {
	Ping(ctx context.Context) (bool, error)
	Extensions(ctx context.Context) (map[string][]int, error)
	HasExtension(ctx context.Context, name string, version int) (bool, error)
	Get(ctx context.Context, endpoint string, params map[string]string) (*api.Response, error)
}

var _ Client = (*subsonic.Client)(nil)

// Command is one CLI operation.
type Command interface {
	// Name is the word typed on the command line, e.g. "ping".
	Name() string

	// Usage is a one-line synopsis shown in help output.
	Usage() string

	// Run executes the command and returns what should be printed.
	Run(ctx context.Context, c Client, args []string) (string, error)
}

// Registry holds the available commands by name.
type Registry struct {
	commands map[string]Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Default returns a registry with every built-in command.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Ping{})
	r.Register(Extensions{})
	r.Register(Has{})
	r.Register(Get{})
	return r
}

// Register adds cmd, replacing any command with the same name.
func (r *Registry) Register(cmd Command) {
	r.commands[cmd.Name()] = cmd
}

// Get looks a command up by name.
func (r *Registry) Get(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// List returns the registered command names in sorted order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ping checks connectivity and credentials.
type Ping struct{}

func (Ping) Name() string  { return "ping" }
func (Ping) Usage() string { return "ping" }

func (Ping) Run(ctx context.Context, c Client, _ []string) (string, error) {
	ok, err := c.Ping(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("server rejected ping")
	}
	return "ok\n", nil
}

// Extensions lists the advertised OpenSubsonic extensions.
type Extensions struct{}

func (Extensions) Name() string  { return "extensions" }
func (Extensions) Usage() string { return "extensions" }

func (Extensions) Run(ctx context.Context, c Client, _ []string) (string, error) {
	exts, err := c.Extensions(ctx)
	if err != nil {
		return "", err
	}
	if len(exts) == 0 {
		return "no extensions advertised\n", nil
	}

	names := make([]string, 0, len(exts))
	for name := range exts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		versions := make([]string, len(exts[name]))
		for i, v := range exts[name] {
			versions[i] = strconv.Itoa(v)
		}
		fmt.Fprintf(&b, "%s: %s\n", name, strings.Join(versions, ","))
	}
	return b.String(), nil
}

// Has reports whether one extension version is supported.
type Has struct{}

func (Has) Name() string  { return "has" }
func (Has) Usage() string { return "has <extension> <version>" }

func (h Has) Run(ctx context.Context, c Client, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: %s", ErrUsage, h.Usage())
	}
	version, err := strconv.Atoi(args[1])
	if err != nil {
		return "", fmt.Errorf("%w: version must be an integer, got %q", ErrUsage, args[1])
	}

	ok, err := c.HasExtension(ctx, args[0], version)
	if err != nil {
		return "", err
	}
	return strconv.FormatBool(ok) + "\n", nil
}

// Get sends a request to any endpoint and prints the envelope as JSON.
type Get struct{}

func (Get) Name() string  { return "get" }
func (Get) Usage() string { return "get <endpoint> [key=value ...]" }

func (g Get) Run(ctx context.Context, c Client, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUsage, g.Usage())
	}

	var params map[string]string
	for _, arg := range args[1:] {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return "", fmt.Errorf("%w: parameter %q is not key=value", ErrUsage, arg)
		}
		if params == nil {
			params = make(map[string]string)
		}
		params[k] = v
	}

	resp, err := c.Get(ctx, args[0], params)
	if err != nil {
		return "", err
	}
	return render(resp)
}

func render(resp *api.Response) (string, error) {
	if len(resp.Raw) > 0 {
		var v any
		if err := json.Unmarshal(resp.Raw, &v); err == nil {
			out, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return "", fmt.Errorf("format response: %w", err)
			}
			return string(out) + "\n", nil
		}
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format response: %w", err)
	}
	return string(out) + "\n", nil
}
