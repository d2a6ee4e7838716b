package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/taskgrid/pkg/api"
)

var (
	coordinatorURL string
	outputFormat   string
	cfgFile        string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "taskgrid",
	Short: "CLI for the taskgrid distributed task system",
	Long:  `taskgrid is a command line interface for submitting tasks and inspecting workers in the taskgrid distributed task-processing system.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.taskgrid/config)")
	rootCmd.PersistentFlags().StringVar(&coordinatorURL, "coordinator", "", "coordinator API URL (default from config or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".taskgrid")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	viper.BindEnv("coordinator_url", "TASKGRID_COORDINATOR_URL")

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetString("coordinator_url") != "" && coordinatorURL == "" {
			coordinatorURL = viper.GetString("coordinator_url")
		}
	}
	if coordinatorURL == "" && viper.GetString("coordinator_url") != "" {
		coordinatorURL = viper.GetString("coordinator_url")
	}

	if coordinatorURL == "" {
		coordinatorURL = "http://localhost:8080"
	}
}

// newClient builds an API client for the configured coordinator
func newClient() *api.Client {
	return api.NewClient(strings.TrimRight(coordinatorURL, "/"))
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}
