package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"usdo-ledger/config"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := rootCmd().Execute(); err != nil {
		logrus.Errorf("usdod: %v", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "usdod",
		Short:         "Rebasing dollar ledger with instant mint and redeem",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./usdod.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "overrides log_level from the config")

	root.AddCommand(serveCmd(), inspectCmd(), migrateCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logrus.SetLevel(cfg.Level())
	return cfg, nil
}
