// Package main is the entry point for the scout CLI.
package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flemzord/scout/internal/core"
	"github.com/flemzord/scout/internal/gateway"

	// Compiled-in modules.
	_ "github.com/flemzord/scout/modules/history/sqlite"
	_ "github.com/flemzord/scout/modules/provider/gemini"
	_ "github.com/flemzord/scout/modules/provider/ollama"
	_ "github.com/flemzord/scout/modules/provider/openai"
	_ "github.com/flemzord/scout/modules/provider/openai_compatible"
	_ "github.com/flemzord/scout/modules/runtime/remote"
	_ "github.com/flemzord/scout/modules/tool/arxiv"
	_ "github.com/flemzord/scout/modules/tool/duckduckgo"
	_ "github.com/flemzord/scout/modules/tool/mcp"
	_ "github.com/flemzord/scout/modules/tool/wikipedia"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	gateway.Version = version
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scout",
		Short:         "A search assistant that reasons with tools before it answers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.PersistentFlags().String("log-level", "", "Override log.level (debug, info, warn, error)")
	root.PersistentFlags().String("data-dir", "", "Override the data directory")
	root.AddCommand(versionCmd(), serveCmd(), askCmd(), chatCmd(), configCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "scout %s (commit: %s, built: %s)\n", version, commit, date)
	mods := core.GetModules()
	if len(mods) == 0 {
		fmt.Fprintln(w, "\nNo compiled modules.")
		return
	}
	fmt.Fprintln(w, "\nCompiled modules:")
	var namespaces []string
	for _, mod := range mods {
		ns, _, _ := strings.Cut(string(mod.ID), ".")
		if !slices.Contains(namespaces, ns) {
			namespaces = append(namespaces, ns)
		}
	}
	for _, ns := range namespaces {
		fmt.Fprintf(w, "  %s:\n", ns)
		for _, mod := range core.GetModulesByNamespace(ns) {
			fmt.Fprintf(w, "    %s\n", mod.ID)
		}
	}
}

// flagString reads a persistent flag, ignoring lookup errors.
func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
