package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alDuncanson/ginseng"
	"github.com/alDuncanson/ginseng/config"
)

var (
	cfg     *config.Config
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ginseng",
	Short: "Ginseng - peer-to-peer file sharing",
	Long: `Ginseng shares files directly between peers using content-addressed blobs.

Sharing produces a ticket; anyone holding the ticket can fetch the files.

Usage:
  Share files:    ginseng send ./report.pdf ./photos/
  Fetch a share:  ginseng receive ginseng:abc123...
  Show identity:  ginseng info`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initConfig()

		var err error
		cfg, err = config.Load(viper.GetViper())
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logrus.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ginseng.yaml)")

	viper.SetEnvPrefix("GINSENG")
	viper.AutomaticEnv()
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			logrus.WithField("error", err).Warn("Could not find home directory")
			return
		}
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ginseng")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logrus.WithField("file", viper.ConfigFileUsed()).Debug("Using config file")
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// createContext creates a context that cancels on interrupt signals
func createContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	return ctx
}

// newCore builds the engine from the loaded configuration.
func newCore() (*ginseng.Core, error) {
	opts := &ginseng.Options{
		UploadConcurrency:   cfg.UploadConcurrency,
		DownloadConcurrency: cfg.DownloadConcurrency,
		EmitInterval:        cfg.EmitInterval,
		EventBuffer:         cfg.EventBuffer,
		DownloadDir:         cfg.DownloadDir,
	}
	return ginseng.New(opts)
}
