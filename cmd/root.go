package cmd

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kolibrisuite/chatsync/core/config"
	"github.com/kolibrisuite/chatsync/pkg/utils"
)

var rootCmd = &cobra.Command{
	Use:   "chatsync",
	Short: "Multi-tenant chat session and message synchronization engine",
	Long: `chatsync keeps one consistent message timeline per organization:
it links messaging sessions, normalizes pushed messages, deduplicates
them, and fans live events out to subscribed clients.`,
}

func init() {
	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		logrus.Debug("[CONFIG] Loaded .env file")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("[CONFIG] Failed to load configuration: %v", err)
	}

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := os.MkdirAll(cfg.App.StoragePath, 0o755); err != nil {
		logrus.Fatalf("[CONFIG] Failed to create storage path: %v", err)
	}

	cfg.App.ServerID = utils.GetPersistentServerID(cfg.App.ServerID, cfg.App.StoragePath)
	logrus.Infof("[CONFIG] Server identity: %s", cfg.App.ServerID)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalln(err)
	}
}
