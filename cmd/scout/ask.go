package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/flemzord/scout/internal/agent"
	"github.com/flemzord/scout/internal/chat"
	"github.com/flemzord/scout/internal/config"
	"github.com/flemzord/scout/internal/provider"
	"github.com/flemzord/scout/pkg/app"
)

// interactiveRuntime builds a runtime without the gateway. When a provider
// reports a missing key and stdin is a terminal, the key is prompted for
// once and exported as SCOUT_API_KEY before retrying.
func interactiveRuntime(cmd *cobra.Command) (*app.Runtime, error) {
	cfg, _, err := app.LoadConfig(flagString(cmd, "config"))
	if err != nil {
		return nil, err
	}
	opts := app.Options{
		DataDir:           flagString(cmd, "data-dir"),
		LogLevel:          flagString(cmd, "log-level"),
		LogFormat:         config.LogFormatPretty,
		LogWriter:         cmd.ErrOrStderr(),
		ExcludeNamespaces: []string{"gateway"},
	}
	if opts.LogLevel == "" {
		opts.LogLevel = "warn"
	}

	rt, err := app.Build(cfg, opts)
	if errors.Is(err, provider.ErrMissingAPIKey) && isatty.IsTerminal(os.Stdin.Fd()) {
		key, promptErr := promptAPIKey()
		if promptErr != nil {
			return nil, errors.Join(err, promptErr)
		}
		if err := os.Setenv(provider.APIKeyEnv, key); err != nil {
			return nil, err
		}
		rt, err = app.Build(cfg, opts)
	}
	if err != nil {
		return nil, err
	}
	if err := rt.Start(); err != nil {
		_ = rt.Close(context.Background())
		return nil, err
	}
	return rt, nil
}

func promptAPIKey() (string, error) {
	var key string
	err := huh.NewInput().
		Title("API key").
		Description("No provider key is configured. It is kept for this session only.").
		EchoMode(huh.EchoModePassword).
		Value(&key).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("key must not be empty")
			}
			return nil
		}).
		Run()
	return strings.TrimSpace(key), err
}

// stepPrinter writes intermediate steps as they happen.
func stepPrinter(w io.Writer) agent.Sink {
	return agent.SinkFunc(func(_ context.Context, ev agent.Event) {
		switch ev.Kind {
		case agent.EntryAction:
			fmt.Fprintf(w, "  → %s: %s\n", ev.Tool, ev.Text)
		case agent.EntryObservation:
			mark := "←"
			if ev.Failed {
				mark = "✗"
			}
			fmt.Fprintf(w, "  %s %s\n", mark, firstLine(ev.Text, 100))
		case agent.EntryThought:
			fmt.Fprintf(w, "  · %s\n", firstLine(ev.Text, 100))
		}
	})
}

func firstLine(s string, limit int) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "…"
	}
	return s
}

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := interactiveRuntime(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close(context.Background()) }()

			var sink agent.Sink = agent.NopSink{}
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				sink = stepPrinter(cmd.ErrOrStderr())
			}
			reply, err := rt.Assistant.Ask(cmd.Context(), uuid.NewString(), strings.Join(args, " "), sink)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Answer)
			return nil
		},
	}
	cmd.Flags().BoolP("verbose", "v", false, "Print intermediate steps to stderr")
	return cmd
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := interactiveRuntime(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close(context.Background()) }()
			return repl(cmd.Context(), rt.Assistant, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// asker is the subset of *chat.Assistant the REPL drives.
type asker interface {
	Ask(ctx context.Context, sessionID, question string, sink agent.Sink) (chat.Reply, error)
	Reset(sessionID string) error
}

// repl reads one question per line. "/reset" starts over and "/quit"
// or end of input leaves.
func repl(ctx context.Context, a asker, in io.Reader, out, errOut io.Writer) error {
	session := uuid.NewString()
	fmt.Fprintln(out, chat.Greeting)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := a.Reset(session); err != nil {
				return err
			}
			session = uuid.NewString()
			fmt.Fprintln(out, chat.Greeting)
			continue
		}

		reply, err := a.Ask(ctx, session, line, stepPrinter(errOut))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(errOut, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, reply.Answer)
	}
}
