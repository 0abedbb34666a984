package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/mtpd/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample mtpd configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/mtpd/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  mtpd init

  # Initialize with custom path
  mtpd init --config /etc/mtpd/config.yaml

  # Force overwrite existing config
  mtpd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error
	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Point storages[].path at the directories to expose")
	_, _ = fmt.Fprintln(out, "  2. Check transport.device_path matches your USB gadget (FunctionFS or mtp_usb)")
	_, _ = fmt.Fprintln(out, "  3. Start the responder with: mtpd start")
	_, _ = fmt.Fprintf(out, "  4. Or specify custom config: mtpd start --config %s\n", configPath)
	return nil
}
