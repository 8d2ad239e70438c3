// Package main is the TaleForge command-line client. It drives the client core
// (session, engagement engine, comment threads and listing pipeline) against a
// running API.
//
// Usage:
//
//	taleforge [flags] <command> [args]
//	taleforge --api-url http://localhost:8080 login ann@example.com secret
//	taleforge list --sort views --dir DESC --tag fantasy
//	taleforge delete --yes 42
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/taleforge/taleforge/internal/app"
	"github.com/taleforge/taleforge/internal/config"
	"github.com/taleforge/taleforge/internal/logger"
)

// errUsage marks argument mistakes; run prints the command usage for them.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli carries what every command needs.
type cli struct {
	app *app.App
	out io.Writer
	in  *bufio.Reader
	yes bool
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, opts ...app.Option) int {
	cfg, rest, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	rest, yes := popFlag(rest, "--yes", "-y")
	if len(rest) == 0 {
		printUsage(stderr)
		return 2
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", rest[0])
		printUsage(stderr)
		return 2
	}

	log := logger.New(logger.Config{
		Writer:      stderr,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	a, err := app.New(cfg.Client, log.Logger, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: restore session: %v\n", err)
		return 1
	}

	c := &cli{app: a, out: stdout, in: bufio.NewReader(stdin), yes: yes}
	if err := cmd.run(ctx, c, rest[1:]); err != nil {
		if errors.Is(err, errUsage) {
			if err != errUsage {
				fmt.Fprintf(stderr, "Error: %v\n", err)
			}
			fmt.Fprintf(stderr, "Usage: taleforge %s %s\n", rest[0], cmd.usage)
			return 2
		}
		printError(stderr, err)
		return 1
	}
	return 0
}

// popFlag removes every occurrence of the named boolean flags from args.
func popFlag(args []string, names ...string) ([]string, bool) {
	found := false
	out := make([]string, 0, len(args))
	for _, a := range args {
		if slices.Contains(names, a) {
			found = true
			continue
		}
		out = append(out, a)
	}
	return out, found
}

// confirm asks a yes/no question on stdin. --yes answers for the user.
func (c *cli) confirm(question string) func() bool {
	return func() bool {
		if c.yes {
			return true
		}
		fmt.Fprintf(c.out, "%s [y/N] ", question)
		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: taleforge [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-15s %s\n", name, commands[name].usage)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run with -h for the global flags.")
}
