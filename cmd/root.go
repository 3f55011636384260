package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"records-migrate/internal/engine"
	"records-migrate/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Exit codes.
const (
	ExitOK                 = 0
	ExitFatal              = 1
	ExitVerificationFailed = 2
)

var (
	cfgFile string
	envFile string

	// Log is installed by the root command before any subcommand runs.
	Log = zap.NewNop()
)

var RootCmd = &cobra.Command{
	Use:   "records-migrate",
	Short: "Student records migration and loading tool",
	Long: `
 ____                        _
|  _ \ ___  ___ ___  _ __ __| |___
| |_) / _ \/ __/ _ \| '__/ _' / __|
|  _ <  __/ (_| (_) | | | (_| \__ \
|_| \_\___|\___\___/|_|  \__,_|___/

RECORDS MIGRATE - Schema & Data Migration, Bulk Loading, Verification
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger()
		if err != nil {
			return err
		}
		Log = l
		zap.ReplaceGlobals(l)
		if used := viper.ConfigFileUsed(); used != "" {
			Log.Debug("Using config file", zap.String("path", used))
		}
		return nil
	},
}

// Execute runs the root command and exits with the matching code.
func Execute() {
	err := RootCmd.Execute()
	Log.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(ExitCode(err))
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, engine.ErrVerificationFailed), errors.Is(err, engine.ErrCheckFailed):
		return ExitVerificationFailed
	default:
		return ExitFatal
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Define flags
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./records-migrate.yaml)")
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	RootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().String("log-format", "auto", "log format (auto, console, logfmt, json)")

	viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", RootCmd.PersistentFlags().Lookup("log-format"))

	setDefaults()
}

// initConfig reads in the dotenv file, the config file and ENV variables if set.
func initConfig() {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", envFile, err)
		}
	}

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("records-migrate")
		viper.SetConfigType("yaml")
	}

	// DESTINATION_HOST, MIGRATION_ROW_FAILURE_POLICY, ...
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindLegacyEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: failed to read config: %v\n", err)
		}
	}
}

func newLogger() (*zap.Logger, error) {
	conf := logger.NewConfig()
	conf.Format = viper.GetString("log.format")
	level, err := zapcore.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return nil, err
	}
	conf.Level = level
	return conf.New(os.Stderr)
}
