// Package cli implements the shelf command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	verbose  bool
	jsonOut  bool
	userFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelf",
		Short: "Organize tasks and bookmarks across contexts and external services",
		Long: `shelf files tasks, bookmarks, notes and files into contexts, projects
and sections, and keeps their due/done state in step with manual entry,
a single external issue, or membership in external lists.

Quick start:
  shelf init --create-user ada       Initialize shelf in this directory
  shelf item add "Read paper"        Add an unfiled item
  shelf service add jira work --url https://acme.atlassian.net --email ada@acme.com
  shelf list add <service-id> sprint --query "sprint in openSprints()" --due-offset 3d
  shelf sync                         Pull list membership once
  shelf tree                         Show everything`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initConfig()
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .shelf/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")
	cmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "user to act as (default is the config's user)")
	_ = viper.BindPFlag("user", cmd.PersistentFlags().Lookup("user"))

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newContextCmd())
	cmd.AddCommand(newProjectCmd())
	cmd.AddCommand(newSectionCmd())
	cmd.AddCommand(newItemCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newServiceCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newTreeCmd())

	return cmd
}

// Execute runs the root command and prints any error.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		PrintError(os.Stderr, err)
	}
	return err
}

// initConfig wires viper to the SHELF_ environment and the --config flag.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".shelf")
		viper.AddConfigPath("$HOME/.shelf")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("SHELF")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
