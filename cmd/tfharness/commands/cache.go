package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfharness/tfharness/pkg/cache"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clean the result cache",
	}
	cmd.AddCommand(newCacheLsCommand())
	cmd.AddCommand(newCachePurgeCommand())
	return cmd
}

// sqliteStore opens the configured sqlite cache store. The inspection
// commands only work against the sqlite backend; the fs backend is plain
// files under cache.path.
func sqliteStore(ctx context.Context, app *app) (*cache.SQLiteStore, func(), error) {
	if !app.cfg.Cache.Enabled {
		return nil, nil, fmt.Errorf("cache is disabled in the config")
	}
	if app.cfg.Cache.Backend != "sqlite" {
		return nil, nil, fmt.Errorf("cache inspection needs the sqlite backend; fs entries live under %s", app.cfg.Cache.Path)
	}
	store, err := cache.NewSQLiteStore(cache.SQLiteConfig{Path: app.cfg.Cache.Path})
	if err != nil {
		return nil, nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func newCacheLsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Root().Version)
			if err != nil {
				return err
			}
			defer app.shutdown(cmd.Context())

			store, closeStore, err := sqliteStore(cmd.Context(), app)
			if err != nil {
				return err
			}
			defer closeStore()

			entries, err := store.Entries(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s\t%s\t%s\n", e.WorkDir, e.Op, e.Fingerprint)
			}
			fmt.Printf("%d entries\n", len(entries))
			return nil
		},
	}
}

func newCachePurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <workdir>",
		Short: "Delete every cache entry for a working directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Root().Version)
			if err != nil {
				return err
			}
			defer app.shutdown(cmd.Context())

			store, closeStore, err := sqliteStore(cmd.Context(), app)
			if err != nil {
				return err
			}
			defer closeStore()

			n, err := store.Purge(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("purged %d entries\n", n)
			return nil
		},
	}
}
