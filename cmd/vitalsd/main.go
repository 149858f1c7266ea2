// Command vitalsd serves the vital-sign processing API.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var version = "dev"

type options struct {
	configFile   string
	generateCert bool
	certHosts    string
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "vitalsd",
		Short:         "Vital-sign extraction service",
		Long:          `vitalsd accepts videos over HTTP, runs the sensing engine against them one job at a time and serves the resulting heart and breathing rates.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v, opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.configFile, "config", "", "config file (default ./vitals.yaml or /etc/vitals/vitals.yaml)")
	fs.BoolVar(&opts.generateCert, "generate-cert", false, "write a self-signed certificate to server.tls_cert/tls_key and exit")
	fs.StringVar(&opts.certHosts, "cert-hosts", "", "comma-separated IPs and hostnames to add to the generated certificate")

	fs.Int("port", 8080, "HTTP port")
	fs.String("api-key", "", "sensing engine API key (default from SMARTSPECTRA_API_KEY)")
	fs.String("engine", "process", "engine kind: process or none")
	fs.String("engine-binary", "hello_vitals", "sensing engine executable")
	fs.String("upload-dir", "/app/uploads", "directory for uploaded videos")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("log-format", "json", "log format: json or console")
	fs.String("log-dir", "", "also write logs under this directory")
	fs.String("tls-cert", "", "TLS certificate file")
	fs.String("tls-key", "", "TLS key file")

	if err := bindFlags(v, fs, map[string]string{
		"server.port":        "port",
		"api_key":            "api-key",
		"engine.kind":        "engine",
		"engine.binary":      "engine-binary",
		"storage.upload_dir": "upload-dir",
		"log.level":          "log-level",
		"log.format":         "log-format",
		"log.dir":            "log-dir",
		"server.tls_cert":    "tls-cert",
		"server.tls_key":     "tls-key",
	}); err != nil {
		panic(err)
	}

	return cmd
}

// bindFlags maps config keys onto flags so a set flag overrides file and env
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
