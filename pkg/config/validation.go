package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/mtpd/internal/adapter/mtp/codec"
	"github.com/marmos91/mtpd/pkg/transport"
)

var validate = validator.New()

// Validate checks struct tag constraints and the rules that span fields:
// unique storage IDs and paths, non-nested storage roots, transport
// specific settings and coherent size limits.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	var errs []error
	errs = append(errs, validateStorages(cfg.Storages)...)
	errs = append(errs, validateTransport(&cfg.Transport)...)
	errs = append(errs, validateDatabase(&cfg.Database)...)
	return errors.Join(errs...)
}

func validateStorages(storages []StorageConfig) []error {
	var errs []error
	ids := make(map[uint32]int)
	paths := make(map[string]int)

	for i, st := range storages {
		if st.ID != 0 {
			if st.ID&0xFFFF == 0 || st.ID == 0xFFFFFFFF {
				errs = append(errs, fmt.Errorf("storages[%d]: invalid storage id 0x%08X", i, st.ID))
			}
			if j, dup := ids[st.ID]; dup {
				errs = append(errs, fmt.Errorf("storages[%d]: storage id 0x%08X already used by storages[%d]", i, st.ID, j))
			}
			ids[st.ID] = i
		}

		if !filepath.IsAbs(st.Path) {
			errs = append(errs, fmt.Errorf("storages[%d]: path %q must be absolute", i, st.Path))
			continue
		}
		clean := filepath.Clean(st.Path)
		if j, dup := paths[clean]; dup {
			errs = append(errs, fmt.Errorf("storages[%d]: path %s already used by storages[%d]", i, clean, j))
		}
		for other, j := range paths {
			if nested(clean, other) || nested(other, clean) {
				errs = append(errs, fmt.Errorf("storages[%d]: path %s overlaps storages[%d] (%s)", i, clean, j, other))
			}
		}
		paths[clean] = i
	}
	return errs
}

// nested reports whether child lies strictly inside parent.
func nested(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func validateTransport(cfg *TransportConfig) []error {
	var errs []error
	switch cfg.Type {
	case transport.TypeDevice:
		if cfg.DevicePath == "" {
			errs = append(errs, fmt.Errorf("transport: device_path is required for the device transport"))
		}
	case transport.TypeTCP:
		if cfg.Listen == "" {
			errs = append(errs, fmt.Errorf("transport: listen is required for the tcp transport"))
		}
	}

	if cfg.MaxTransferSize < codec.MaxCommandSize {
		errs = append(errs, fmt.Errorf("transport: max_transfer_size must be at least %d bytes", codec.MaxCommandSize))
	}
	if cfg.MaxRequestSize < codec.HeaderSize || cfg.MaxRequestSize > cfg.MaxTransferSize {
		errs = append(errs, fmt.Errorf("transport: max_request_size must be between %d bytes and max_transfer_size", codec.HeaderSize))
	}
	return errs
}

func validateDatabase(cfg *DatabaseConfig) []error {
	if cfg.Type != DatabasePostgres {
		return nil
	}
	var errs []error
	if cfg.Postgres.Host == "" {
		errs = append(errs, fmt.Errorf("database.postgres: host is required"))
	}
	if cfg.Postgres.Database == "" {
		errs = append(errs, fmt.Errorf("database.postgres: database is required"))
	}
	if cfg.Postgres.User == "" {
		errs = append(errs, fmt.Errorf("database.postgres: user is required"))
	}
	return errs
}
