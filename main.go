package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mrlokans/booklog/internal/config"
	"github.com/mrlokans/booklog/internal/entrypoint"
	"github.com/mrlokans/booklog/internal/logger"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	var cfg *config.Config
	var logCloser io.Closer

	rootCommand := &cobra.Command{
		Use:           "booklog",
		Short:         "Book catalog and reading tracker over Calibre and Talebook databases",
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.NewConfig()
			closer, err := logger.Setup(logger.Config{
				Level:   cfg.Log.Level,
				Console: cfg.Log.Console,
				File:    cfg.Log.File,
				Dir:     cfg.Log.Dir,
			})
			if err != nil {
				return fmt.Errorf("setup logger: %w", err)
			}
			logCloser = closer
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser.Close()
			}
		},
	}

	serve := func(cmd *cobra.Command, args []string) error {
		return entrypoint.Run(cfg, Version)
	}
	// Running without a subcommand serves the API
	rootCommand.RunE = serve

	rootCommand.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the REST API",
			RunE:  serve,
		},
		newInitDBCommand(&cfg),
		newCheckSchemaCommand(&cfg),
		newCheckIntegrityCommand(&cfg),
		newSyncItemsCommand(&cfg),
	)

	if err := rootCommand.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newInitDBCommand(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create missing database files and tables in both stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := entrypoint.OpenService(cmd.Context(), *cfg, true)
			if err != nil {
				return err
			}
			defer svc.Close()

			report, err := svc.SchemaReport(cmd.Context())
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("schema still incomplete after init")
			}
			return nil
		},
	}
}

func newCheckSchemaCommand(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check-schema",
		Short: "Report missing tables and columns without changing either store",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := entrypoint.OpenService(cmd.Context(), *cfg, false)
			if err != nil {
				return err
			}
			defer svc.Close()

			report, err := svc.SchemaReport(cmd.Context())
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("schema is invalid")
			}
			return nil
		},
	}
}

func newCheckIntegrityCommand(cfg **config.Config) *cobra.Command {
	var repair bool

	command := &cobra.Command{
		Use:   "check-integrity",
		Short: "Compare book ids across both stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := entrypoint.OpenService(ctx, *cfg, false)
			if err != nil {
				return err
			}
			defer svc.Close()

			report, err := svc.IntegrityReport(ctx)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}

			if repair && len(report.MissingItems) > 0 {
				result, err := svc.SyncItems(ctx, report.MissingItems)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			}
			return nil
		},
	}
	command.Flags().BoolVar(&repair, "repair", false, "create missing items rows")
	return command
}

func newSyncItemsCommand(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-items [book-id...]",
		Short: "Create missing items rows for the given books, or all books",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid book id %q", arg)
				}
				ids = append(ids, id)
			}

			ctx := cmd.Context()
			svc, err := entrypoint.OpenService(ctx, *cfg, false)
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.SyncItems(ctx, ids)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d book(s) failed to sync", len(result.Failed))
			}
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
