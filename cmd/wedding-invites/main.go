package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"wedding-invites/internal/backup"
	"wedding-invites/internal/bus"
	"wedding-invites/internal/catalog"
	"wedding-invites/internal/config"
	"wedding-invites/internal/guestlist"
	"wedding-invites/internal/server"
	"wedding-invites/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	return store.NewSQLite(filepath.Join(cfg.DataDir, "invitaciones.db"))
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "wedding-invites",
		Short:        "Gestión de invitados, invitaciones y confirmaciones de la boda",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), exportCmd(), backupCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			log := newLogger()

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := server.New(ctx, cfg, st, bus.New(log), log)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}

func exportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the guest list to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			log := newLogger()

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			loader := catalog.NewLoader(cfg.GuestSource, st, log)
			lists := guestlist.NewService(loader, st, bus.New(log), log)
			guests, err := lists.Filtered(cmd.Context(), guestlist.Filter{}, guestlist.Sort{Field: "nombre"})
			if err != nil {
				return err
			}

			switch format {
			case "txt":
				_, err = os.Stdout.Write(guestlist.TXT(guests))
			case "csv":
				data, csvErr := guestlist.CSV(guests)
				if csvErr != nil {
					return csvErr
				}
				_, err = os.Stdout.Write(data)
			default:
				return fmt.Errorf("unknown format %q (csv or txt)", format)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&format, "formato", "csv", "export format: csv or txt")
	return cmd
}

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or import the confirmation records",
	}

	exportSub := &cobra.Command{
		Use:   "export <file>",
		Short: "Write a backup snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			log := newLogger()

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			data, err := backup.NewManager(st, bus.New(log), log).Export(cmd.Context())
			if err != nil {
				return err
			}
			return os.WriteFile(args[0], data, 0644)
		},
	}

	var overwrite bool
	importSub := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore a backup snapshot (destructive)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			log := newLogger()

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			err = backup.NewManager(st, bus.New(log), log).Import(cmd.Context(), data, overwrite)
			if errors.Is(err, backup.ErrOverwriteRequired) {
				return fmt.Errorf("%w (re-run with --sobrescribir)", err)
			}
			return err
		},
	}
	importSub.Flags().BoolVar(&overwrite, "sobrescribir", false, "overwrite existing records")

	cmd.AddCommand(exportSub, importSub)
	return cmd
}
