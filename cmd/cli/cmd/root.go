package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

const missingToken = "API token not found. Please set it using the --token flag or the HUBCREDO_TOKEN environment variable"

var rootCmd = &cobra.Command{
	Use:   "hubctl",
	Short: "Hubctl is a command line tool for interacting with the hubcredo backend",
	Long: `hubctl is the command-line interface for the hubcredo automation backend.

Hubcredo runs "automation cycles" for registered users: each cycle notifies a
workflow engine over a webhook, sends a (simulated) email and notifies the
engine again. Cycles run either as a synchronous batch or as a background loop.

Common workflows:

  Register and get an API key:
    hubctl register --name "Ada" --email ada@example.com

  Start a background loop of 10 cycles:
    hubctl loop start --cycles 10

  Watch a loop until it finishes:
    hubctl loop status <loop-id> --watch

  Run a batch of 3 cycles and wait for the result:
    hubctl automate --cycles 3

  Show your automation history:
    hubctl logs --page 1 --limit 10

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    HUBCREDO_URL      API endpoint (default: http://localhost:5000)
    HUBCREDO_TOKEN    User API key for authentication`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".hubctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".hubctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "HUBCREDO_VARNAME"
	viper.SetEnvPrefix("HUBCREDO")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newClient returns a client for the configured API, or nil after telling
// the user that no token is set.
func newClient(cmd *cobra.Command) *Client {
	token := viper.GetString("token")
	if token == "" {
		cmd.Println(missingToken)
		return nil
	}
	return NewClient(viper.GetString("url"), token)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hubctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:5000", "Hubcredo API URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "API key for authentication")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}
