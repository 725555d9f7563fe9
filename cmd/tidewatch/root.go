package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tidewatch/tidewatch/internal/config"
)

const serviceName = "tidewatch"

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	configFile string
	envFile    string

	settings *config.Settings
	log      zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tidewatch",
	Short: "A coastal dashboard: weather, tides, sun and calendar at a glance",
	Long: `Tidewatch aggregates the weather, tide predictions, sunrise and sunset
and today's calendar into one dashboard. After the evening threshold it
switches to tomorrow.

Configuration is read from tidewatch.yaml, a .env file and TIDEWATCH_*
environment variables, in increasing order of precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		s, cfg, err := config.Load(config.Options{File: configFile, EnvFile: envFile})
		if err != nil {
			return err
		}
		settings = s
		log = newLogger(s.Log, cmd.ErrOrStderr())
		if file := cfg.File(); file != "" {
			log.Debug().Str("config_file", file).Msg("configuration loaded")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default ./.env if present)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(signinCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger(s config.LogSettings, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(s.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	w := out
	if s.Pretty {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Version needs no configuration.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tidewatch %s (built %s)\n", Version, BuildTime)
	},
}
