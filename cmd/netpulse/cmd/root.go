package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	host   string
	apiKey string
)

var rootCmd = &cobra.Command{
	Use:   "netpulse",
	Short: "NetPulse CLI",
	Long:  `Operator tool for the NetPulse API: submit device jobs, inspect workers and queues.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:9000", "NetPulse API URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key")
}

func initConfig() {
	viper.SetConfigName("netpulse-cli")
	viper.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home + "/.config")
	}
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()

	if !rootCmd.PersistentFlags().Changed("host") {
		if v := viper.GetString("host"); v != "" {
			host = v
		}
	}
	if apiKey == "" {
		apiKey = viper.GetString("api_key")
	}
}
