package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"backtestplot/internal/figure"
	"backtestplot/internal/storage"
)

func init() {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage stored backtest batches",
	}
	runsCmd.AddCommand(newRunsImportCmd(), newRunsListCmd(), newRunsShowCmd(), newRunsDeleteCmd(), newRunsRenderCmd())
	rootCmd.AddCommand(runsCmd)
}

// openStore opens the configured database and ensures the schema.
func openStore(ctx context.Context) (*storage.Store, func(), error) {
	dsn := cfg.DBPath
	if cfg.DBDriver == "sqlite3" {
		// Ensure parent directory for the DB exists
		_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755)
		dsn = "file:" + cfg.DBPath + "?_fk=1"
	}
	db, err := storage.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Debug().Str("driver", cfg.DBDriver).Str("path", cfg.DBPath).Msg("db: schema ensured")
	return storage.NewStore(db), func() { db.Close() }, nil
}

func newRunsImportCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import <batch.json>",
		Short: "Store a batch and print its run ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readBatchFile(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(args[0])
			}
			store, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			run, err := store.SaveRun(cmd.Context(), name, b)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), run.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Run name (default: file name)")
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Name, r.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list (0 for all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print the summary of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			b, err := run.Batch()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n\n", run.ID, run.Name, run.CreatedAt.Format("2006-01-02 15:04"))
			return printSummary(cmd, b, false)
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			if err := store.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			log.Info().Str("id", args[0]).Msg("runs: deleted")
			return nil
		},
	}
}

func newRunsRenderCmd() *cobra.Command {
	var sf sizeFlags
	cmd := &cobra.Command{
		Use:   "render <id>",
		Short: "Render the figure of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := sf.size()
			if err != nil {
				return err
			}
			store, closeDB, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			b, err := run.Batch()
			if err != nil {
				return err
			}
			return writeFigure(cmd, b, size)
		},
	}
	sf.register(cmd)
	addOutputFlags(cmd.Flags(), figure.DefaultPath)
	return cmd
}
