package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/ylog/internal/cliconfig"
	"github.com/bft-labs/ylog/pkg/log"
	"github.com/bft-labs/ylog/pkg/ylog"
	"github.com/bft-labs/ylog/plugins/rotationwatcher"
)

const helpDescription = `
Relay contest contacts between operating positions and keep one logsheet.

Highlights:
  - Stations submit contacts over WebSocket (GET /message) and every station
    sees an ack for each contact once it is on disk.
  - Contacts are appended to a ylog logsheet; existing content is never rewritten.
  - Sequence ids survive restarts; configure via file, env, or flags.
`

var exampleUsage = strings.TrimSpace(`
  ylog --listen :7373 --logsheet ./contest/logsheet.txt
  ylog --config $HOME/.ylog/config.toml --watch-rotation
  ylog export --in ./contest/logsheet.txt --sort
  ylog submit --url ws://localhost:7373/message --callsign JA1YXP --band 50 --mode SSB
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	root := newRootCommand()
	root.AddCommand(newExportCommand(), newSubmitCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ylog:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "ylog",
		Short:         "Contest QSO relay and logsheet writer",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// YLOG_* override the file but not explicit flags.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return fmt.Errorf("environment: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := cliconfig.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			logger.Info("configuration", log.Any("config", cfg))

			return serve(cfg, logger)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.ylog/config.toml)")
	root.Flags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "address to accept station connections on")
	root.Flags().StringVar(&cfg.LogsheetPath, "logsheet", cfg.LogsheetPath, "append-only logsheet file")
	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for relay-state.json (defaults to the logsheet directory)")

	root.Flags().DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "close a station that sends nothing for this long")
	root.Flags().DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "per-frame write timeout")
	root.Flags().DurationVar(&cfg.SinkTimeout, "sink-timeout", cfg.SinkTimeout, "logsheet append timeout")
	root.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown limit")

	root.Flags().IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "accepted contacts waiting to be written")
	root.Flags().IntVar(&cfg.MaxBatchRecords, "max-batch-records", cfg.MaxBatchRecords, "maximum contacts per logsheet bracket")
	root.Flags().IntVar(&cfg.MaxFrameBytes, "max-frame-bytes", cfg.MaxFrameBytes, "largest accepted inbound frame")
	root.Flags().IntVar(&cfg.OutboundBuffer, "outbound-buffer", cfg.OutboundBuffer, "queued messages per station; a station whose queue stays full for write-timeout is dropped")

	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	root.Flags().BoolVar(&cfg.WatchRotation, "watch-rotation", cfg.WatchRotation, "reopen the logsheet when it is rotated away")

	return root
}

func serve(cfg cliconfig.Config, logger log.Logger) error {
	opts := []ylog.Option{ylog.WithLogger(logger)}
	if cfg.WatchRotation {
		opts = append(opts, rotationwatcher.WithDefaultRotationWatcher())
	}

	srv, err := ylog.New(ylog.Config{
		ListenAddr:      cfg.ListenAddr,
		LogsheetPath:    cfg.LogsheetPath,
		StateDir:        cfg.StateDir,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		SinkTimeout:     cfg.SinkTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		QueueSize:       cfg.QueueSize,
		MaxBatchRecords: cfg.MaxBatchRecords,
		MaxFrameBytes:   cfg.MaxFrameBytes,
		OutboundBuffer:  cfg.OutboundBuffer,
	}, opts...)
	if err != nil {
		return fmt.Errorf("create relay: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start relay: %w", err)
	}

	doneCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if srv.Status() == ylog.StateCrashed {
					close(doneCh)
					return
				}
			}
		}
	}()

	select {
	case <-sigCh:
		logger.Info("received signal, stopping...")
	case <-doneCh:
		err := srv.Stop()
		logger.Error("relay crashed", log.Err(err))
		return fmt.Errorf("relay crashed: %w", err)
	}

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stop relay: %w", err)
	}
	logger.Info("relay stopped", log.Uint64("last_sequence", srv.LastSequence()))
	return nil
}
