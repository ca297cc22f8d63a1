package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/routines/internal/errors"
	"github.com/hpungsan/routines/internal/ops"
	"github.com/hpungsan/routines/internal/protocol"
	"github.com/hpungsan/routines/internal/routine"
	"github.com/hpungsan/routines/internal/web"
)

// newCLIApp creates the CLI application with all commands.
// d may be nil when only help or version output is needed.
func newCLIApp(d *deps) *cli.App {
	app := &cli.App{
		Name:    "routines",
		Usage:   "Named voice-command routines",
		Version: Version,
		Commands: []*cli.Command{
			listCmd(d),
			showCmd(d),
			editCmd(d),
			saveCmd(d),
			deleteCmd(d),
			validateCmd(d),
			parseCmd(d),
			serveCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// listCmd creates the list command.
func listCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List saved routines",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "names", Usage: "Print names only"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("names") {
				return outputJSON(c, d.sync.Cache().Names())
			}
			return outputJSON(c, d.sync.Snapshot())
		},
	}
}

// showCmd creates the show command.
func showCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one routine",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "markdown", Aliases: []string{"m"}, Usage: "Print a markdown card instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			def, err := lookup(c, d)
			if err != nil {
				return outputError(err)
			}
			if c.Bool("markdown") {
				_, err := io.WriteString(c.App.Writer, routine.Markdown(def))
				return err
			}
			return outputJSON(c, def)
		},
	}
}

// editCmd creates the edit command.
func editCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Print a routine as editable text, one command per line",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			name := strings.TrimSpace(c.Args().First())
			if name == "" {
				return outputError(errors.NewInvalidRequest("routine name is required"))
			}
			draft, err := d.sync.Draft(name)
			if err != nil {
				return outputError(err)
			}
			_, err = io.WriteString(c.App.Writer, draft.Intents)
			return err
		},
	}
}

// saveCmd creates the save command.
func saveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Create, update or rename a routine (reads commands from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Routine nickname"},
			&cli.StringFlag{Name: "previous", Aliases: []string{"p"}, Usage: "Current name when editing or renaming"},
		},
		Action: func(c *cli.Context) error {
			intents, err := readInput(c)
			if err != nil {
				return outputError(err)
			}

			out, err := d.sync.UpdateNickname(c.Context, &routine.Draft{Nickname: c.String("name"), Intents: intents}, c.String("previous"))
			if err != nil {
				return outputError(err)
			}
			return outputUpdate(c, out)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a routine",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			name := strings.TrimSpace(c.Args().First())
			if name == "" {
				return outputError(errors.NewInvalidRequest("routine name is required"))
			}

			out, err := d.sync.UpdateNickname(c.Context, nil, name)
			if err != nil {
				return outputError(err)
			}
			return outputUpdate(c, out)
		},
	}
}

// validateCmd creates the validate command.
func validateCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check a routine without saving it (reads commands from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Routine nickname"},
			&cli.StringFlag{Name: "previous", Aliases: []string{"p"}, Usage: "Current name when editing or renaming"},
		},
		Action: func(c *cli.Context) error {
			intents, err := readInput(c)
			if err != nil {
				return outputError(err)
			}

			out, err := d.sync.Validate(c.Context, routine.Draft{Nickname: c.String("name"), Intents: intents}, c.String("previous"))
			if err != nil {
				return outputError(err)
			}
			return outputUpdate(c, out)
		},
	}
}

// parseCmd creates the parse command.
func parseCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Interpret one command",
		ArgsUsage: "<text...>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "allow-fallback", Usage: "Accept the fallback search intent"},
		},
		Action: func(c *cli.Context) error {
			text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if text == "" {
				return outputError(errors.NewInvalidRequest("text is required"))
			}

			ic, err := d.sync.Parser().Parse(c.Context, protocol.ParseUtterance{
				Utterance:       text,
				DisableFallback: !c.Bool("allow-fallback"),
			})
			if err != nil {
				return outputError(errors.NewInterpreterUnavailable(err))
			}
			if ic == nil {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("could not interpret %q", text)))
			}
			return outputJSON(c, ic)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI and the message endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8484, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(d.sync, d.transport, d.logger, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(c.Context, srv, d.logger)
		},
	}
}

// Helper functions

// lookup returns the cached routine named by the first argument.
func lookup(c *cli.Context, d *deps) (routine.Definition, error) {
	name := strings.TrimSpace(c.Args().First())
	if name == "" {
		return routine.Definition{}, errors.NewInvalidRequest("routine name is required")
	}
	def, ok := d.sync.Cache().Get(name)
	if !ok {
		return routine.Definition{}, errors.NewNotFound(name)
	}
	return def, nil
}

// outputJSON marshals result to the app writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputUpdate prints an update result and fails the command when it was rejected.
func outputUpdate(c *cli.Context, out *ops.UpdateOutput) error {
	if err := outputJSON(c, out); err != nil {
		return err
	}
	if !out.Allowed {
		return cli.Exit(fmt.Sprintf("[%s] %s", out.Code, out.Error), 1)
	}
	return nil
}

// outputError formats error for CLI.
func outputError(err error) error {
	if rErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", rErr.Code, rErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// readInput reads the draft commands from the app reader.
// A terminal on stdin is refused so the command does not hang waiting for input.
func readInput(c *cli.Context) (string, error) {
	if f, ok := c.App.Reader.(*os.File); ok && f == os.Stdin && !stdinHasData() {
		return "", errors.NewInvalidRequest("commands must be piped via stdin")
	}
	data, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return string(data), nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
