package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/vitals-engine/pkg/client"
	tlsutil "github.com/psantana5/vitals-engine/pkg/tls"
)

const defaultServerURL = "http://localhost:8080"

var (
	serverURL    string
	outputFormat string
	cfgFile      string
	caFile       string
	insecure     bool
	timeout      time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:           "vitalsctl",
	Short:         "CLI for the vitals engine service",
	Long:          `vitalsctl submits videos to a vitalsd instance and reports job status and vital-sign readings.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.vitalsctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "vitalsd URL (default from config, VITALSCTL_SERVER or "+defaultServerURL+")")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json or yaml (config show)")
	rootCmd.PersistentFlags().StringVar(&caFile, "ca-cert", "", "CA certificate for an https server")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout for read-only requests")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".vitalsctl"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("VITALSCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Warning: failed to read config %s: %v\n", cfgFile, err)
	}

	if serverURL == "" {
		serverURL = viper.GetString("server")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	if caFile == "" {
		caFile = viper.GetString("ca_cert")
	}
}

// GetServerURL returns the configured server URL with trailing slashes removed
func GetServerURL() string {
	return strings.TrimRight(serverURL, "/")
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

// newClient builds an API client for the configured server
func newClient() (*client.Client, error) {
	opts := client.DefaultOptions()
	opts.Timeout = timeout

	if strings.HasPrefix(GetServerURL(), "https://") {
		tlsConfig, err := tlsutil.LoadClientConfig(caFile, insecure)
		if err != nil {
			return nil, err
		}
		opts.TLS = tlsConfig
	}
	return client.New(GetServerURL(), opts), nil
}
