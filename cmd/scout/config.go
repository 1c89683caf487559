package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/flemzord/scout/internal/config"
	"github.com/flemzord/scout/internal/gateway"
	"github.com/flemzord/scout/pkg/app"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(), hashPasswordCmd(), tokenCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and load every module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flagString(cmd, "config")
			if len(args) == 1 {
				path = args[0]
			}
			cfg, path, err := app.LoadConfig(path)
			if err != nil {
				return err
			}

			rt, err := app.Build(cfg, app.Options{
				DataDir:   flagString(cmd, "data-dir"),
				LogLevel:  "error",
				LogWriter: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close(context.Background()) }()

			ids := config.Resolve(cfg)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK: %s (%d modules)\n", path, len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			if tools := rt.Tools.Names(); len(tools) > 0 {
				fmt.Fprintf(out, "Tools: %s\n", strings.Join(tools, ", "))
			}
			return nil
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash for gateway basic auth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hash, err := hashPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func hashPassword(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a JWT signed with the gateway's jwt_secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.LoadConfig(flagString(cmd, "config"))
			if err != nil {
				return err
			}
			gw, err := gatewayConfig(cfg)
			if err != nil {
				return err
			}
			if gw.Auth.JWTSecret == "" {
				return errors.New("gateway.http auth.jwt_secret is not configured")
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			token, err := gateway.IssueToken(gw.Auth.JWTSecret, gw.Auth.JWTIssuer, args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func gatewayConfig(cfg *config.Config) (gateway.Config, error) {
	var gw gateway.Config
	node, ok := cfg.Modules[string(gateway.ModuleID)]
	if !ok {
		return gw, fmt.Errorf("module %s is not configured", gateway.ModuleID)
	}
	if err := node.Decode(&gw); err != nil {
		return gw, fmt.Errorf("decoding %s: %w", gateway.ModuleID, err)
	}
	return gw, nil
}
