// Command ddstype inspects topic type descriptors built from YAML type
// trees.
//
// Usage:
//
//	ddstype keys types.yaml [type...]
//	ddstype describe types.yaml [type...]
//	ddstype encode types.yaml type -o type.bin
//	ddstype describe type.bin
//	ddstype sample types.yaml type
//
// Settings come from --config, DDSCORE_* environment variables and flags,
// in increasing priority.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wippyai/dds-core/config"
	"github.com/wippyai/dds-core/sertype"
	"github.com/wippyai/dds-core/shm"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is the state shared by all subcommands.
type app struct {
	v       *viper.Viper
	cfg     config.Config
	log     *zap.Logger
	noColor bool
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "ddstype",
		Short:         "Inspect DDS topic type descriptors",
		Long:          `ddstype builds topic type descriptors from YAML type trees and shows their key fields, layout bytecode and sample encoding.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(configFile)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	fs := rootCmd.PersistentFlags()
	fs.StringVarP(&configFile, "config", "c", "", "Config file (YAML)")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
	fs.Bool("keylists", false, "Take keys from keylists instead of @key annotations")
	fs.String("encoding-version", "", "Force the sample encoding version (xcdr1, xcdr2)")
	fs.String("transport-log-level", "", "Shared-memory transport log level")
	fs.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	if err := bindFlags(a.v, fs); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		newKeysCmd(a),
		newDescribeCmd(a),
		newEncodeCmd(a),
		newSampleCmd(a),
	)
	return rootCmd
}

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"log-level":           "log.level",
	"keylists":            "build.keylists",
	"encoding-version":    "build.encoding-version",
	"transport-log-level": "transport.log-level",
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

func (a *app) init(configFile string) error {
	cfg, err := config.Load(a.v, configFile)
	if err != nil {
		return err
	}
	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	sertype.SetLogger(log.Named("sertype"))
	shm.SetLogger(log)
	log.Debug("configuration loaded",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("keylists", cfg.Build.Keylists),
		zap.String("encoding_version", cfg.Build.EncodingVersion),
		zap.String("transport_log_level", cfg.Transport.LogLevel))
	return nil
}
