package cmd

import (
	"github.com/emrgen/digidoc/internal/config"
	"github.com/emrgen/digidoc/internal/model"
	"github.com/emrgen/digidoc/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

func init() {
	dbCmd.AddCommand(Migrate())
}

func Migrate() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.LoadConfig()
			db := config.GetDb(cfg)
			err := model.Migrate(db)
			if err != nil {
				logrus.Fatalf("migration failed: %v", err)
			}
			logrus.Infof("%s database migrated", cfg.DbType)
		},
	}

	return command
}

func serveCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "serve",
		Short: "Start the grpc health server, the rest gateway and the retention job",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.LoadConfig()
			cfg.SetupLogger()
			server.NewServer(cfg).Start()
		},
	}

	return command
}
