// Package apicmder provides the history API server command.
package apicmder

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quill/api"
	"github.com/papercomputeco/quill/cmd/quill/serve/backend"
	"github.com/papercomputeco/quill/pkg/config"
)

type apiCommander struct {
	listen  string
	storage backend.StorageOptions
	log     backend.LogOptions

	logger *slog.Logger
}

const apiLongDesc string = `Run the history API server.

The API serves the transcripts recorded by the relay: DAG statistics,
single nodes, and full conversation histories. Point it at the same SQLite
file or PostgreSQL database the relay writes to.`

const apiShortDesc string = "Run the quill history API server"

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagAPIListenStandalone,
				config.FlagSQLite,
				config.FlagPostgres,
			})

			cmder.listen = v.GetString("api.listen")
			cmder.storage = backend.StorageOptions{
				SQLitePath:  v.GetString("storage.sqlite_path"),
				PostgresDSN: v.GetString("storage.postgres_dsn"),
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.log.Service = "api"
			cmder.log.Debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.storage.SQLitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.storage.PostgresDSN)
	cmd.Flags().BoolVar(&cmder.log.JSON, "log-json", false, "Write JSON logs instead of pretty output")
	cmd.Flags().StringVar(&cmder.log.File, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *apiCommander) run(ctx context.Context) error {
	var (
		closeLog func() error
		err      error
	)
	c.logger, closeLog, err = backend.NewLogger(c.log)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := backend.OpenStorage(ctx, c.storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	server := api.NewServer(api.Config{ListenAddr: c.listen}, driver, c.logger)
	defer server.Shutdown()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		return nil
	}
}
