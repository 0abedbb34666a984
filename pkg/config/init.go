package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const sampleHeader = `# mtpd Configuration File
#
# Every value below can be overridden with an environment variable named
# after its key, e.g. MTPD_LOGGING_LEVEL=DEBUG or MTPD_TRANSPORT_TYPE=tcp.
#
# transport.type: device serves the USB gadget character device
# (transport.device_path); tcp listens on transport.listen for development.
#
# database.type: memory | badger | sqlite | postgres
# With memory, object handles change on every restart.
#
# Sizes accept units ("16KiB", "1MB"); file modes are octal ("0664").

`

// GenerateSample returns the default configuration as commented YAML.
func GenerateSample() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(sampleHeader)

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(GetDefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return buf.Bytes(), nil
}

// InitConfig writes a sample configuration at the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a sample configuration at path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := GenerateSample()
	if err != nil {
		return err
	}
	return writeConfigFile(path, data)
}
