package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/briangreenhill/subsonic/cache"
	"github.com/briangreenhill/subsonic/internal/commands"
	"github.com/briangreenhill/subsonic/internal/config"
	"github.com/briangreenhill/subsonic/logging"
	"github.com/briangreenhill/subsonic/subsonic"
)

const version = "v0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runCLI(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		log.Fatalf("Error: %v", err)
	}
}

func runCLI(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	registry := commands.Default()

	if len(args) == 0 {
		printUsage(stdout, registry)
		return nil
	}
	switch args[0] {
	case "help", "--help", "-h":
		printUsage(stdout, registry)
		return nil
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "subsonic %s\n", version)
		return nil
	}

	cmd, ok := registry.Get(args[0])
	if !ok {
		return fmt.Errorf("unknown command: %s. Available commands: %v", args[0], registry.List())
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewConsole(stderr, cfg.LogLevel)

	client, err := newClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	out, err := cmd.Run(ctx, client, args[1:])
	if err != nil {
		if errors.Is(err, commands.ErrUsage) {
			return fmt.Errorf("%w\nusage: subsonic %s", err, cmd.Usage())
		}
		return fmt.Errorf("%s failed: %w", cmd.Name(), err)
	}

	fmt.Fprint(stdout, out)
	return nil
}

// newClient builds a client whose response cache is swept in the background
// until ctx is done.
func newClient(ctx context.Context, cfg *config.Config, logger logging.Logger) (*subsonic.Client, error) {
	cc, err := cfg.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	store := cache.NewMemory(cc.CacheTTL, cache.WithLogger(logger))
	if cc.CacheTTL > 0 {
		store.StartSweeper(ctx, cc.CacheTTL)
	}

	return subsonic.New(cc, subsonic.WithCache(store), subsonic.WithLogger(logger))
}

func printUsage(w io.Writer, registry *commands.Registry) {
	fmt.Fprintln(w, "Usage: subsonic <command> [arguments]")
	fmt.Fprintln(w, "Commands:")
	for _, name := range registry.List() {
		cmd, _ := registry.Get(name)
		fmt.Fprintf(w, "  %s\n", cmd.Usage())
	}
	fmt.Fprintln(w, "  help                 Show this help message")
	fmt.Fprintln(w, "  version              Show the version")
	fmt.Fprintln(w, "Environment:")
	for _, line := range []string{
		"SUBSONIC_URL         Server base URL (required)",
		"SUBSONIC_AUTH        plaintext, obfuscated, token (default) or apikey",
		"SUBSONIC_USERNAME    Username for password based schemes",
		"SUBSONIC_PASSWORD    Password for password based schemes",
		"SUBSONIC_API_KEY     Key for the apikey scheme",
		"SUBSONIC_REDACT_LOGS Mask credentials in logs (default true)",
		"SUBSONIC_CACHE_TTL   Response cache lifetime in seconds, 0 disables (default 300)",
		"SUBSONIC_TIMEOUT     Request timeout (default 30s)",
		"SUBSONIC_LOG_LEVEL   debug, info, warn or error (default info)",
		"SUBSONIC_CONFIG      Optional TOML file read before the environment",
	} {
		fmt.Fprintln(w, "  "+line)
	}
}
