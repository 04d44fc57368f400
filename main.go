package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/ripgzip/config"
	"github.com/dselans/ripgzip/runner"
	"github.com/dselans/ripgzip/server"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR: ", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	if !cfg.CLI.Quiet {
		displayConfig(cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error

	switch cfg.CLI.Command() {
	case config.CommandServe:
		runErr = serve(ctx, cfg)
	default:
		runErr = decompress(ctx, cfg)
	}

	if runErr != nil {
		logrus.Errorf("ripgzip: %s", runErr)
		stop()
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) {
	// Data may go to stdout; keep logs off it.
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors: cfg.CLI.DisableColor,
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(cfg.TOML.Config.LogLevel)
	if err == nil {
		logrus.SetLevel(level)
	}

	if cfg.CLI.Debug {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.Debug("debug mode enabled")
	}
}

func decompress(ctx context.Context, cfg *config.Config) error {
	files := cfg.CLI.Decompress.Files

	// No files: stdin to stdout, nothing to checkpoint.
	if len(files) == 0 && !cfg.CLI.Decompress.Test {
		cfg.CLI.Decompress.Stdout = true
		cfg.CLI.Decompress.Delete = false
	}

	r, err := runner.New(cfg, &runner.Options{Stdout: os.Stdout})
	if err != nil {
		return errors.Wrap(err, "unable to create runner")
	}

	if len(files) == 0 {
		return r.Stream(os.Stdin, os.Stdout)
	}

	summary, err := r.Run(ctx, files)

	if !cfg.CLI.Quiet && summary != nil {
		logrus.Infof("completed: %d, skipped: %d, failed: %d, bytes written: %d",
			summary.Completed, summary.Skipped, summary.Failed, summary.Written)
	}

	return err
}

func serve(ctx context.Context, cfg *config.Config) error {
	s, err := server.New(cfg)
	if err != nil {
		return errors.Wrap(err, "unable to create server")
	}

	return s.Run(ctx)
}

func displayConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}

	logrus.Info("ripgzip settings:")
	logrus.Info("  [CLI]")
	logrus.Infof("  version: %s", config.VERSION)
	logrus.Infof("  command: %s", cfg.CLI.Command())
	logrus.Infof("  debug: %v", cfg.CLI.Debug)
	logrus.Infof("  config file: %s", cfg.CLI.ConfigFile)
	logrus.Infof("  disable color: %v", cfg.CLI.DisableColor)

	if cfg.CLI.Command() == config.CommandDecompress {
		d := cfg.CLI.Decompress
		logrus.Infof("  files: %d", len(d.Files))
		logrus.Infof("  stdout: %v", d.Stdout)
		logrus.Infof("  test: %v", d.Test)
		logrus.Infof("  force: %v", d.Force)
		logrus.Infof("  delete: %v", d.Delete)
		logrus.Infof("  suffix: %s", d.Suffix)
		logrus.Infof("  disable resume: %v", d.DisableResume)
		logrus.Infof("  dry run: %v", d.DryRun)
	}

	logrus.Info("")
	logrus.Info("  [CONFIG]")
	logrus.Infof("  config.log_level: %s", cfg.TOML.Config.LogLevel)
	logrus.Infof("  config.num_workers: %d", cfg.TOML.Config.NumWorkers)
	logrus.Infof("  config.buffer_size: %d", cfg.TOML.Config.BufferSize)
	logrus.Infof("  config.checkpoint_store: %s", cfg.TOML.Config.CheckpointStore)
	logrus.Infof("  config.checkpoint_file: %s", cfg.TOML.Config.CheckpointFile)
	logrus.Infof("  config.checkpoint_interval: %s", cfg.TOML.Config.CheckpointInterval)

	if cfg.TOML.Config.CheckpointStore == config.CheckpointStoreRedis {
		logrus.Info("")
		logrus.Info("  [REDIS]")
		logrus.Infof("  redis.address: %s", cfg.TOML.Redis.Address)
		logrus.Infof("  redis.db: %d", cfg.TOML.Redis.DB)
		logrus.Infof("  redis.key: %s", cfg.TOML.Redis.Key)
	}

	if cfg.CLI.Command() == config.CommandServe {
		logrus.Info("")
		logrus.Info("  [SERVER]")
		logrus.Infof("  server.listen_address: %s", cfg.TOML.Server.ListenAddress)
		logrus.Infof("  server.max_body_size: %d", cfg.TOML.Server.MaxBodySize)
		logrus.Infof("  server.max_output_size: %d", cfg.TOML.Server.MaxOutputSize)
		logrus.Infof("  server.read_timeout: %s", cfg.TOML.Server.ReadTimeout)
	}
}
