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

	"github.com/bft-labs/subcast/internal/cliconfig"
	"github.com/bft-labs/subcast/pkg/log"
	"github.com/bft-labs/subcast/pkg/subcast"
	"github.com/bft-labs/subcast/plugins/configwatcher"
)

const helpBanner = `
           _                   _
 ___ _   _| |__   ___ __ _ ___| |_
/ __| | | | '_ \ / __/ _' / __| __|
\__ \ |_| | |_) | (_| (_| \__ \ |_
|___/\__,_|_.__/ \___\__,_|___/\__|
`

const helpDescription = `
Receive pre-rendered subtitles from a cast sender and paint them in sync with playback.

Highlights:
  - Requests caption windows ahead of the playhead and preloads every image.
  - Paints each frame exactly once at its presentation time, even after seeks.
  - WebSocket (default, port 1112) or MQTT transport; JSON or msgpack records.
  - Tuning hot-reloads from the config file; configure via file, env, or flags.
`

var longHelp = strings.TrimSpace(helpBanner) + "\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  subcast --listen :1112 --static-dir ./receiver
  subcast --transport mqtt --mqtt-broker tcp://localhost:1883 --snapshot-dir /tmp/subcast
  subcast --config $HOME/.subcast/config.yaml --watch
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	logger, _ := cliconfig.Logger(cfg.LogLevel)

	root := &cobra.Command{
		Use:     "subcast",
		Short:   "Cast receiver that paints pre-rendered subtitles in sync with playback",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			loaded := ""
			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
				loaded = cfgFile
			}

			// Environment overrides the file; explicit flags override both.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return fmt.Errorf("environment: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			var err error
			if logger, err = cliconfig.Logger(cfg.LogLevel); err != nil {
				return err
			}
			logger.Info().Interface("config", cfg).Str("file", loaded).Msg("configuration")

			opts := []subcast.Option{
				subcast.WithLogger(log.NewZerologAdapterWithLogger(logger)),
			}
			if cfg.WatchConfig && loaded != "" {
				opts = append(opts,
					subcast.WithConfigFile(loaded, changed),
					configwatcher.WithConfigWatcher(configwatcher.DefaultConfig()),
				)
			}

			rcv, err := subcast.New(cfg, opts...)
			if err != nil {
				return fmt.Errorf("create receiver: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			if err := rcv.Start(ctx); err != nil {
				return fmt.Errorf("start receiver: %w", err)
			}

			// Poll for a crash so the process exits instead of idling.
			doneCh := make(chan struct{})
			go func() {
				ticker := time.NewTicker(100 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if rcv.Status() == subcast.StateCrashed {
							close(doneCh)
							return
						}
					}
				}
			}()

			select {
			case <-sigCh:
				logger.Info().Msg("received signal, stopping...")
			case <-doneCh:
				return fmt.Errorf("receiver crashed")
			}

			if err := rcv.Stop(); err != nil {
				return fmt.Errorf("stop receiver: %w", err)
			}
			return nil
		},
	}

	if err := registerFlags(root.Flags(), &cfg, &cfgPath); err != nil {
		logger.Info().Err(err).Msg("failed to register flags")
	}

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("subcast")
		os.Exit(1)
	}
}

// registerFlags binds the command line flags to cfg.
func registerFlags(flags *pflag.FlagSet, cfg *cliconfig.Config, cfgPath *string) error {
	flags.StringVar(cfgPath, "config", "", "path to config file, .toml or .yaml (default: $HOME/.subcast/config.toml)")
	flags.StringVar(&cfg.Transport, "transport", cfg.Transport, "channel transport: websocket or mqtt")
	flags.StringVar(&cfg.Listen, "listen", cfg.Listen, "WebSocket listen address")
	flags.StringVar(&cfg.StaticDir, "static-dir", cfg.StaticDir, "directory served over HTTP next to the WebSocket endpoint")
	flags.StringVar(&cfg.Namespace, "namespace", cfg.Namespace, "cast message namespace")

	flags.StringVar(&cfg.MQTTBroker, "mqtt-broker", cfg.MQTTBroker, "MQTT broker URL")
	flags.StringVar(&cfg.MQTTClientID, "mqtt-client-id", cfg.MQTTClientID, "MQTT client id (random when empty)")
	flags.StringVar(&cfg.MQTTTopicPrefix, "mqtt-topic-prefix", cfg.MQTTTopicPrefix, "MQTT topic prefix")

	flags.DurationVar(&cfg.PreloadAhead, "preload-ahead", cfg.PreloadAhead, "how early captions are preloaded before display")
	flags.DurationVar(&cfg.TimeShift, "time-shift", cfg.TimeShift, "shift applied to every caption time")
	flags.DurationVar(&cfg.BufferAhead, "buffer-ahead", cfg.BufferAhead, "caption window requested ahead of the playhead")
	flags.DurationVar(&cfg.DriftThreshold, "drift-threshold", cfg.DriftThreshold, "projected-clock lead tolerated before resyncing to the host clock")
	flags.IntVar(&cfg.MaxPreloadCount, "max-preload", cfg.MaxPreloadCount, "maximum concurrent caption loads")

	flags.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "render loop interval")
	flags.IntVar(&cfg.Width, "width", cfg.Width, "surface width in pixels")
	flags.IntVar(&cfg.Height, "height", cfg.Height, "surface height in pixels")

	flags.StringVar(&cfg.AssetDir, "asset-dir", cfg.AssetDir, "base directory for relative and file:// caption sources")
	flags.DurationVar(&cfg.AssetTimeout, "asset-timeout", cfg.AssetTimeout, "timeout for fetching one caption image")
	flags.StringSliceVar(&cfg.LoadingSprite, "loading-sprite", cfg.LoadingSprite, "loading animation images: base image then frames")

	flags.StringVar(&cfg.SnapshotDir, "snapshot-dir", cfg.SnapshotDir, "write PNG snapshots of the painted surfaces to this directory")
	flags.DurationVar(&cfg.SnapshotInterval, "snapshot-interval", cfg.SnapshotInterval, "minimum time between snapshots")

	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error, off")
	flags.BoolVar(&cfg.WatchConfig, "watch", cfg.WatchConfig, "reload tuning when the config file changes")
	return flags.MarkHidden("snapshot-interval")
}
