package mtp

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"time"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
)

// ServerConfig holds the identity and limits of an MTP responder.
type ServerConfig struct {
	// Identity reported in DeviceInfo.
	Manufacturer  string
	Model         string
	DeviceVersion string
	SerialNumber  string

	// FriendlyName is the default of the DeviceFriendlyName property.
	FriendlyName string

	// VendorExtensionDesc overrides the default vendor extension string.
	VendorExtensionDesc string

	// PerceivedDeviceType is reported by the PerceivedDeviceType property.
	PerceivedDeviceType uint32

	// MaxTransferSize is the transport transfer unit.
	MaxTransferSize int

	// MaxRequestSize bounds accepted command containers.
	MaxRequestSize uint32

	// MaxDatasetSize bounds datasets received from the host (ObjectInfo,
	// property values, property lists, reference arrays).
	MaxDatasetSize int

	// FileMode and DirMode are applied to files and folders created for
	// the host. FileGroup, a group name or numeric gid, becomes their group
	// when set.
	FileMode  os.FileMode
	DirMode   os.FileMode
	FileGroup string

	// EchoWindow is how long the watcher ignores a path the responder
	// itself changed.
	EchoWindow time.Duration
}

// Defaults for ServerConfig.
const (
	DefaultManufacturer   = "mtpd"
	DefaultModel          = "mtpd"
	DefaultDeviceVersion  = "1.0"
	DefaultMaxDatasetSize = 1 << 20
	DefaultFileMode       = os.FileMode(0o664)
	DefaultDirMode        = os.FileMode(0o775)
	DefaultEchoWindow     = 2 * time.Second
)

// ApplyDefaults fills zero fields.
func (c *ServerConfig) ApplyDefaults() {
	if c.Manufacturer == "" {
		c.Manufacturer = DefaultManufacturer
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.DeviceVersion == "" {
		c.DeviceVersion = DefaultDeviceVersion
	}
	if c.FriendlyName == "" {
		c.FriendlyName = c.Model
	}
	if c.MaxTransferSize <= 0 {
		c.MaxTransferSize = codec.DefaultMaxTransferSize
	}
	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = codec.MaxCommandSize
	}
	if c.MaxDatasetSize <= 0 {
		c.MaxDatasetSize = DefaultMaxDatasetSize
	}
	if c.FileMode == 0 {
		c.FileMode = DefaultFileMode
	}
	if c.DirMode == 0 {
		c.DirMode = DefaultDirMode
	}
	if c.EchoWindow <= 0 {
		c.EchoWindow = DefaultEchoWindow
	}
}

// resolveGroup returns the gid named by group, or -1 when group is empty.
func resolveGroup(group string) (int, error) {
	if group == "" {
		return -1, nil
	}
	if gid, err := strconv.Atoi(group); err == nil {
		return gid, nil
	}
	g, err := user.LookupGroup(group)
	if err != nil {
		return -1, fmt.Errorf("lookup group %q: %w", group, err)
	}
	return strconv.Atoi(g.Gid)
}
