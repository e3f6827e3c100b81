package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/emrgen/digidoc"
	"github.com/emrgen/digidoc/internal/model"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configDir      = "./.tmp"
	configFileName = "digidoc"
	defaultServer  = "http://localhost:4021"
)

var contextCommand = &cobra.Command{
	Use:   "context",
	Short: "context commands",
}

func init() {
	contextCommand.AddCommand(setContextCommand())
	contextCommand.AddCommand(currentContextCommand())
	contextCommand.AddCommand(resetContextCommand())
}

// Context is the server and principal the cli talks as.
type Context struct {
	Server string `mapstructure:"server"`
	User   string `mapstructure:"user"`
	Role   string `mapstructure:"role"`
}

// saves the context info to the config file in ./.tmp
func setContextCommand() *cobra.Command {
	var ctx Context
	command := &cobra.Command{
		Use:   "set",
		Short: "set context",
		Run: func(cmd *cobra.Command, args []string) {
			if ctx.User == "" {
				color.Red(`missing: --user`)
				return
			}
			if ctx.Server == "" {
				ctx.Server = defaultServer
			}

			if err := writeContext(ctx); err != nil {
				fmt.Println("error writing config file: ", err)
			} else {
				fmt.Println("context saved")
			}
		},
	}

	command.Flags().StringVarP(&ctx.Server, "server", "s", defaultServer, "rest gateway url")
	command.Flags().StringVarP(&ctx.User, "user", "u", "", "principal id")
	command.Flags().StringVarP(&ctx.Role, "role", "r", string(model.RoleViewer), "principal role")

	return command
}

func currentContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "current",
		Short: "current context",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := readContext()
			if ctx.User == "" {
				color.Yellow("no context set, use: digidoc context set --user <id>")
				return
			}
			color.Green("server: %s", ctx.Server)
			color.Green("user:   %s (%s)", ctx.User, ctx.Role)
		},
	}

	return command
}

func resetContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "reset",
		Short: "reset context",
		Run: func(cmd *cobra.Command, args []string) {
			if err := writeContext(Context{Server: defaultServer}); err != nil {
				fmt.Println("error writing config file: ", err)
				return
			}
			fmt.Println("context reset")
		},
	}

	return command
}

func writeContext(ctx Context) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	viper.SetConfigName(configFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("yml")
	viper.Set("context", map[string]string{
		"server": ctx.Server,
		"user":   ctx.User,
		"role":   ctx.Role,
	})

	return viper.WriteConfigAs(filepath.Join(configDir, configFileName+".yml"))
}

func readContext() Context {
	ctx := Context{Server: defaultServer}

	viper.SetConfigName(configFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("yml")

	if err := viper.ReadInConfig(); err != nil {
		return ctx
	}

	if err := viper.UnmarshalKey("context", &ctx); err != nil {
		fmt.Println("error unmarshalling config file: ", err)
	}
	if ctx.Server == "" {
		ctx.Server = defaultServer
	}

	return ctx
}

// newClient builds a rest client for the saved context.
func newClient() *digidoc.Client {
	ctx := readContext()
	return digidoc.NewClient(ctx.Server, model.Principal{ID: ctx.User, Role: model.Role(ctx.Role)})
}
