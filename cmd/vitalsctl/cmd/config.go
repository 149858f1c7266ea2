package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/vitals-engine/pkg/config"
)

var daemonConfigFile string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect vitalsd configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective vitalsd configuration",
	Long: `Resolve vitalsd configuration the same way the daemon does (file, VITALS_*
environment, defaults) and print it with secrets masked. Output is YAML
unless -o json is given.`,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)

	configShowCmd.Flags().StringVar(&daemonConfigFile, "file", "", "vitalsd config file (default ./vitals.yaml or /etc/vitals/vitals.yaml)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.New(), daemonConfigFile)
	if err != nil {
		return err
	}
	return writeConfig(cmd.OutOrStdout(), cfg.Redacted(), outputFormat)
}

func writeConfig(w io.Writer, cfg config.Config, format string) error {
	switch format {
	case "json":
		return printJSON(w, cfg)
	case "yaml", "table", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
