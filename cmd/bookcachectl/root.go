package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Sternrassler/granth-library/pkg/bookcache"
	"github.com/Sternrassler/granth-library/pkg/config"
	"github.com/Sternrassler/granth-library/pkg/logging"
	"github.com/Sternrassler/granth-library/pkg/recent"
	"github.com/spf13/cobra"
)

var errUnavailable = errors.New("cache store unavailable")

type app struct {
	envFile  string
	logLevel string

	manager *bookcache.Manager
	recent  *recent.List
	close   func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "bookcachectl",
		Short: "Inspect and manage the book cache",
		Long:  "bookcachectl reads the cache backend from the environment (CACHE_BACKEND, REDIS_URL, SQLITE_PATH, ...) and operates on the stored snapshot.",

		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file to read before the environment")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		a.withManager(checkCmd(a)),
		a.withManager(showCmd(a)),
		a.withManager(clearCmd(a)),
		a.withManager(lookupCmd(a)),
		a.withManager(recentCmd(a)),
		versionCmd(),
	)
	return root
}

// withManager opens the store before cmd runs and closes it after.
func (a *app) withManager(cmd *cobra.Command) *cobra.Command {
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Setup(logging.Config{Level: logging.LogLevel(a.logLevel), Output: cmd.ErrOrStderr()})

		cfg, err := config.LoadCache(a.envFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		store, closeFn, err := cfg.OpenStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("opening %s store: %w", cfg.Backend, err)
		}
		a.manager = bookcache.NewManager(store, cfg.Manager(), logging.NewLogger(logging.ComponentCLI))
		a.recent = recent.NewList(store, 0, logging.NewLogger(logging.ComponentCLI))
		a.close = closeFn
		return nil
	}
	cmd.PostRunE = func(cmd *cobra.Command, args []string) error {
		if a.close != nil {
			return a.close()
		}
		return nil
	}
	return cmd
}

func checkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the cache store accepts writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.manager.Available(cmd.Context()) {
				fmt.Fprintln(cmd.OutOrStdout(), "unavailable")
				return errUnavailable
			}
			fmt.Fprintln(cmd.OutOrStdout(), "available")
			return nil
		},
	}
}

func showCmd(a *app) *cobra.Command {
	var book string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored snapshot as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var res bookcache.Result
			if book != "" {
				res = a.manager.LoadFor(cmd.Context(), book)
			} else {
				res = a.manager.Load(cmd.Context())
			}
			if !res.OK() {
				fmt.Fprintf(cmd.OutOrStdout(), "No cached snapshot (%v)\n", res.Reason)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), res.Snapshot)
		},
	}
	cmd.Flags().StringVar(&book, "book", "", "only show a snapshot taken for this book id")
	return cmd
}

func clearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.manager.Clear(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s.\n", a.manager.Config().Key)
			return nil
		},
	}
}

func lookupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <id>...",
		Short: "Print cached summaries for the given book ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			books := a.manager.CachedBooks(cmd.Context(), args)
			if len(books) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cached books.")
				return nil
			}
			for _, b := range books {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", b.ID, b.Title, b.Category)
			}
			return nil
		},
	}
}

func recentCmd(a *app) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Print recently opened book ids, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reset {
				if err := a.recent.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cleared recent books.")
				return nil
			}
			ids, err := a.recent.IDs(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recent books.")
				return nil
			}
			titles := make(map[string]string)
			for _, b := range a.manager.CachedBooks(cmd.Context(), ids) {
				titles[b.ID] = b.Title
			}
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, titles[id])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "clear", false, "remove the list instead of printing it")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bookcachectl %s (commit: %s)\n", version, commit)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
