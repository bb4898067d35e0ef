package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"castplayd/internal/cast"
	"castplayd/internal/config"
	"castplayd/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	v       = viper.New()
	rootCmd *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "castplayd",
		Short: "castplayd - terminal recording playback",
		Long: `castplayd plays asciicast v2 terminal recordings.

It serves a recording library over HTTP with WebSocket playback, and plays, inspects and
bookmarks recordings from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "Path to the YAML config file")
	pf.StringP("log-level", "L", "", "Log level (error, warn, info, debug)")
	pf.String("log-format", "", "Log format (json, text)")
	bindFlags(map[string]string{
		"config":     "config",
		"log.level":  "log-level",
		"log.format": "log-format",
	}, pf)

	// CASTPLAY_SERVER_LISTEN overrides server.listen, and so on.
	v.SetEnvPrefix("CASTPLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(screenCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(chaptersCmd)
	rootCmd.AddCommand(bookmarkCmd)

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// bindFlags binds config keys to the named flags.
func bindFlags(keys map[string]string, fs *pflag.FlagSet) {
	for key, name := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

// loadConfig reads the config file, if any, and applies flag and environment overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if path := v.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overrideString("log.level", &cfg.Log.Level)
	overrideString("log.format", &cfg.Log.Format)

	overrideString("server.listen", &cfg.Server.Listen)
	overrideDuration("server.shutdown_timeout", &cfg.Server.ShutdownTimeout)
	overrideFloat("server.rate_limit", &cfg.Server.RateLimit)
	overrideInt("server.rate_burst", &cfg.Server.RateBurst)

	overrideFloat("player.min_rate", &cfg.Player.MinRate)
	overrideFloat("player.max_rate", &cfg.Player.MaxRate)
	overrideFloat("player.default_rate", &cfg.Player.DefaultRate)
	overrideDuration("player.max_frame_delay", &cfg.Player.MaxFrameDelay)

	overrideString("store.backend", &cfg.Store.Backend)
	overrideString("store.file.dir", &cfg.Store.File.Dir)
	overrideString("store.sqlite.path", &cfg.Store.SQLite.Path)
	overrideString("store.s3.bucket", &cfg.Store.S3.Bucket)
	overrideString("store.s3.prefix", &cfg.Store.S3.Prefix)
	overrideString("store.s3.region", &cfg.Store.S3.Region)
	overrideString("store.s3.endpoint", &cfg.Store.S3.Endpoint)
	overrideString("store.redis.addr", &cfg.Store.Redis.Addr)
	overrideString("store.redis.password", &cfg.Store.Redis.Password)
	overrideString("store.http.base_url", &cfg.Store.HTTP.BaseURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideString(key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func overrideFloat(key string, dst *float64) {
	if v.IsSet(key) {
		*dst = v.GetFloat64(key)
	}
}

func overrideInt(key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func overrideDuration(key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}

// newLogger builds the logger described by cfg. Commands that draw on stdout log to stderr.
func newLogger(cfg *config.Config, w io.Writer) logger.Logger {
	return logger.New(cfg.Log.Level, cfg.Log.Format, w)
}

// readRecording parses a recording file from disk. Unplayable content is reported as an error.
func readRecording(path string, cfg *config.Config) (*cast.Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}
	rec := cast.Parse(string(data), cast.ParseOptions{MaxFrameDelay: cfg.Player.MaxFrameDelay})
	if rec.Err != nil {
		return nil, fmt.Errorf("%s: %w", path, rec.Err)
	}
	return rec, nil
}
