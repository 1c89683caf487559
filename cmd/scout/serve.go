package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/scout/pkg/app"
)

func runParams(cmd *cobra.Command) app.RunParams {
	return app.RunParams{
		ConfigPath: flagString(cmd, "config"),
		Version:    version,
		Commit:     commit,
		Date:       date,
		Options: app.Options{
			DataDir:  flagString(cmd, "data-dir"),
			LogLevel: flagString(cmd, "log-level"),
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway and every configured module until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), runParams(cmd))
		},
	}
}

// program adapts app.Run to the service manager's start/stop callbacks.
type program struct {
	params app.RunParams

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.done = make(chan error, 1)
	p.mu.Unlock()

	go func() {
		err := app.Run(ctx, p.params)
		if err != nil {
			slog.Error("scout stopped", "error", err)
		}
		p.done <- err
	}()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	return <-done
}

func newService(cmd *cobra.Command) (service.Service, error) {
	params := runParams(cmd)

	args := []string{"service", "run"}
	if params.ConfigPath != "" {
		abs, err := filepath.Abs(params.ConfigPath)
		if err != nil {
			return nil, err
		}
		params.ConfigPath = abs
		args = append(args, "--config", abs)
	}
	if params.DataDir != "" {
		args = append(args, "--data-dir", params.DataDir)
	}

	return service.New(&program{params: params}, &service.Config{
		Name:        "scout",
		DisplayName: "Scout search assistant",
		Description: "Answers questions by reasoning over search tools.",
		Arguments:   args,
		Option: service.KeyValue{
			"UserService": true,
			"Restart":     "on-failure",
		},
	})
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage scout as a system service",
	}

	control := func(action string) *cobra.Command {
		return &cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the scout service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := newService(cmd)
				if err != nil {
					return err
				}
				if err := service.Control(svc, action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		}
	}
	for _, action := range service.ControlAction {
		cmd.AddCommand(control(action))
	}

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(cmd)
			if err != nil {
				return err
			}
			logger, err := svc.Logger(nil)
			if err == nil {
				defer func() { _ = logger.Info("scout service exiting") }()
			}
			if err := svc.Run(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the scout service status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(cmd)
			if err != nil {
				return err
			}
			status, err := svc.Status()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusText(status))
			return nil
		},
	})
	return cmd
}

func statusText(s service.Status) string {
	switch s {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
