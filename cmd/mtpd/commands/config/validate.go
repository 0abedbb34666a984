package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/mtpd/internal/cli/output"
	"github.com/marmos91/mtpd/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the mtpd configuration file.

Checks for syntax errors, missing required fields, invalid values,
overlapping storage roots and inconsistent transfer sizes.

Examples:
  # Validate default config
  mtpd config validate

  # Validate specific config file
  mtpd config validate --config /etc/mtpd/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.Database.Type == config.DatabaseMemory {
		warnings = append(warnings, "memory database: object handles change on every restart")
	}
	if cfg.Transport.Type == "tcp" {
		warnings = append(warnings, "tcp transport is meant for development; USB hosts cannot attach")
	}
	for _, st := range cfg.Storages {
		if !st.ReadOnly && st.ReservedSpace == 0 && len(cfg.Storages) > 1 {
			warnings = append(warnings, fmt.Sprintf("storage %s has no reserved_space; hosts may fill the filesystem", st.Path))
		}
	}

	p := output.NewPrinter(cmd.OutOrStdout(), output.FormatTable)
	p.Printf("Configuration file: %s\n", displayPath)
	p.Success("Validation: OK")

	if len(warnings) > 0 {
		p.Printf("\nWarnings:\n")
		for _, w := range warnings {
			p.Warning("  - " + w)
		}
	}

	p.Printf("\nConfiguration summary:\n")
	return output.KeyValueTable(p.Writer(), [][2]string{
		{"  Transport", cfg.Transport.Type},
		{"  Database type", cfg.Database.Type},
		{"  Storages", fmt.Sprintf("%d", len(cfg.Storages))},
		{"  Max transfer", cfg.Transport.MaxTransferSize.String()},
		{"  API port", fmt.Sprintf("%d", cfg.API.Port)},
		{"  Log level", cfg.Logging.Level},
	})
}
