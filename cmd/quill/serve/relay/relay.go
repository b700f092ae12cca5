// Package relaycmder provides the relay server command.
package relaycmder

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/quill/cmd/quill/serve/backend"
	"github.com/papercomputeco/quill/pkg/config"
	"github.com/papercomputeco/quill/pkg/gateway"
	"github.com/papercomputeco/quill/pkg/git"
	"github.com/papercomputeco/quill/relay"
)

// Options are the resolved relay settings shared with "quill serve".
type Options struct {
	Listen   string
	Upstream string
	Model    string
	APIKey   string
	Persona  string
	Project  string

	Storage backend.StorageOptions

	KafkaBrokers string
	KafkaTopic   string
}

// FlagKeys are the registry keys of the flags that feed Options.
var FlagKeys = []string{
	config.FlagUpstream,
	config.FlagModel,
	config.FlagAPIKey,
	config.FlagPersona,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

// ResolveOptions reads relay settings from v after flags have been bound.
func ResolveOptions(ctx context.Context, v *viper.Viper, project string) Options {
	if project == "" {
		project = git.ProjectName(ctx, ".")
	}

	return Options{
		Listen:   v.GetString("relay.listen"),
		Upstream: v.GetString("relay.upstream"),
		Model:    v.GetString("relay.model"),
		APIKey:   v.GetString("relay.api_key"),
		Persona:  v.GetString("relay.persona"),
		Project:  project,
		Storage: backend.StorageOptions{
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		KafkaBrokers: v.GetString("eventstream.brokers"),
		KafkaTopic:   v.GetString("eventstream.topic"),
	}
}

// Config converts the options into a relay.Config.
func (o Options) Config() relay.Config {
	return relay.Config{
		ListenAddr: o.Listen,
		Gateway: gateway.Config{
			BaseURL: o.Upstream,
			APIKey:  o.APIKey,
			Model:   o.Model,
		},
		Persona: o.Persona,
		Project: o.Project,
	}
}

// AddFlags registers the relay flags on cmd. Values are read back through
// viper, so the targets only hold flag defaults.
func AddFlags(cmd *cobra.Command, o *Options) {
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &o.Upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &o.Model)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIKey, &o.APIKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagPersona, &o.Persona)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &o.Storage.SQLitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &o.Storage.PostgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &o.KafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &o.KafkaTopic)
	cmd.Flags().StringVar(&o.Project, "project", "", "Project name to tag transcripts (default: auto-detect from git)")
}

type relayCommander struct {
	opts Options
	log  backend.LogOptions

	logger *slog.Logger
}

const relayLongDesc string = `Run the chat relay.

The relay forwards IDE chat requests to the configured OpenAI-compatible
gateway and streams the server-sent event response back byte for byte. It
also serves the one-shot assist endpoints (lint, review, tests, refactor,
complete) and records every relayed turn in the transcript store.

The gateway API key is read from relay.api_key, preferably set through the
QUILL_RELAY_API_KEY environment variable.`

const relayShortDesc string = "Run the quill chat relay"

func NewRelayCmd() *cobra.Command {
	cmder := &relayCommander{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: relayShortDesc,
		Long:  relayLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			keys := append([]string{config.FlagRelayListenStandalone}, FlagKeys...)
			config.BindRegisteredFlags(v, cmd, config.Flags, keys)

			project, _ := cmd.Flags().GetString("project")
			cmder.opts = ResolveOptions(cmd.Context(), v, project)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.log.Service = "relay"
			cmder.log.Debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayListenStandalone, &cmder.opts.Listen)
	AddFlags(cmd, &cmder.opts)
	cmd.Flags().BoolVar(&cmder.log.JSON, "log-json", false, "Write JSON logs instead of pretty output")
	cmd.Flags().StringVar(&cmder.log.File, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *relayCommander) run(ctx context.Context) error {
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

	driver, err := backend.OpenStorage(ctx, c.opts.Storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	pub, err := backend.OpenPublisher(c.opts.KafkaBrokers, c.opts.KafkaTopic, c.logger)
	if err != nil {
		return err
	}
	defer pub.Close()

	cfg := c.opts.Config()
	cfg.Publisher = pub
	if err := cfg.Gateway.Validate(); err != nil {
		c.logger.Warn("chat requests will fail until the gateway is configured", "error", err)
	}

	r, err := relay.New(cfg, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer r.Close()

	errChan := make(chan error, 1)
	go func() {
		if err := r.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
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
