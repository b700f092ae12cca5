// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/quill/api"
	apicmder "github.com/papercomputeco/quill/cmd/quill/serve/api"
	"github.com/papercomputeco/quill/cmd/quill/serve/backend"
	relaycmder "github.com/papercomputeco/quill/cmd/quill/serve/relay"
	"github.com/papercomputeco/quill/pkg/config"
	"github.com/papercomputeco/quill/relay"
)

type ServeCommander struct {
	relayOpts relaycmder.Options
	apiListen string
	log       backend.LogOptions

	logger *slog.Logger
}

const serveLongDesc string = `Run quill services.

Use subcommands to run individual services or all services together:
  quill serve          Run both the relay and the history API together
  quill serve api      Run just the history API server
  quill serve relay    Run just the chat relay`

const serveShortDesc string = "Run quill services"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			keys := append([]string{config.FlagRelayListen, config.FlagAPIListen}, relaycmder.FlagKeys...)
			config.BindRegisteredFlags(v, cmd, config.Flags, keys)

			project, _ := cmd.Flags().GetString("project")
			cmder.relayOpts = relaycmder.ResolveOptions(cmd.Context(), v, project)
			cmder.apiListen = v.GetString("api.listen")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.log.Service = "serve"
			cmder.log.Debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayListen, &cmder.relayOpts.Listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.apiListen)
	relaycmder.AddFlags(cmd, &cmder.relayOpts)
	cmd.Flags().BoolVar(&cmder.log.JSON, "log-json", false, "Write JSON logs instead of pretty output")
	cmd.Flags().StringVar(&cmder.log.File, "log-file", "", "Also write JSON logs to this file")

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(relaycmder.NewRelayCmd())

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
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

	// Create shared driver
	driver, err := backend.OpenStorage(ctx, c.relayOpts.Storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	pub, err := backend.OpenPublisher(c.relayOpts.KafkaBrokers, c.relayOpts.KafkaTopic, c.logger)
	if err != nil {
		return err
	}
	defer pub.Close()

	relayConfig := c.relayOpts.Config()
	relayConfig.Publisher = pub
	if err := relayConfig.Gateway.Validate(); err != nil {
		c.logger.Warn("chat requests will fail until the gateway is configured", "error", err)
	}

	r, err := relay.New(relayConfig, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer r.Close()

	apiServer := api.NewServer(api.Config{ListenAddr: c.apiListen}, driver, c.logger)
	defer apiServer.Shutdown()

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := r.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
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
