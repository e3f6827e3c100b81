package main

import (
	"os"

	"github.com/emrgen/digidoc/internal/config"
	"github.com/emrgen/digidoc/internal/server"
	"github.com/sirupsen/logrus"
)

// debug server with a local sqlite file and verbose logging
func main() {
	cfg := config.LoadConfig()
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "debug"
	}
	if os.Getenv("DB_DSN") == "" {
		cfg.DbDSN = "./.tmp/debug.db"
		if err := os.MkdirAll("./.tmp", 0o755); err != nil {
			logrus.Fatal(err)
		}
	}
	cfg.SetupLogger()

	server.NewServer(cfg).Start()
}
