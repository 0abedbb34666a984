package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/mtpd/internal/cli/output"
	"github.com/marmos91/mtpd/pkg/config"
	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/registry"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect configured storages",
}

var (
	storageListOutput  string
	storageListObjects bool
)

var storageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured storages",
	Long: `List the storages mtpd exposes, with their capacity as reported to hosts.

With --objects the metadata database is opened to count the objects of
each storage. BadgerDB allows a single process at a time, so stop the
daemon first or query its API (GET /storages) instead.

Examples:
  mtpd storage list
  mtpd storage list --objects -o json`,
	RunE: runStorageList,
}

func init() {
	storageListCmd.Flags().StringVarP(&storageListOutput, "output", "o", "table", "Output format (table|json|yaml)")
	storageListCmd.Flags().BoolVar(&storageListObjects, "objects", false, "Count objects in the metadata database")
	storageCmd.AddCommand(storageListCmd)
}

// StorageInfo describes one configured storage.
type StorageInfo struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Path        string `json:"path" yaml:"path"`
	ReadOnly    bool   `json:"read_only" yaml:"read_only"`
	Removable   bool   `json:"removable" yaml:"removable"`
	TotalBytes  uint64 `json:"total_bytes" yaml:"total_bytes"`
	FreeBytes   uint64 `json:"free_bytes" yaml:"free_bytes"`
	Objects     *int   `json:"objects,omitempty" yaml:"objects,omitempty"`
}

// StorageList renders as a table.
type StorageList []StorageInfo

func (l StorageList) Headers() []string {
	return []string{"ID", "DESCRIPTION", "PATH", "ACCESS", "CAPACITY", "FREE", "OBJECTS"}
}

func (l StorageList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, s := range l {
		access := "read-write"
		if s.ReadOnly {
			access = "read-only"
		}
		if s.Removable {
			access += ", removable"
		}
		objects := "-"
		if s.Objects != nil {
			objects = strconv.Itoa(*s.Objects)
		}
		rows = append(rows, []string{
			s.ID,
			s.Description,
			s.Path,
			access,
			humanize.IBytes(s.TotalBytes),
			humanize.IBytes(s.FreeBytes),
			objects,
		})
	}
	return rows
}

func runStorageList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(storageListOutput)
	if err != nil {
		return err
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	reg, err := config.InitializeRegistry(cfg)
	if err != nil {
		return err
	}

	var store metadata.Store
	if storageListObjects {
		store, err = config.CreateMetadataStore(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to open metadata store: %w", err)
		}
		defer func() { _ = store.Close() }()
	}

	list, err := buildStorageList(cmd.Context(), reg, store)
	if err != nil {
		return err
	}
	return output.NewPrinter(os.Stdout, format).Print(list)
}

// buildStorageList describes every storage of reg. Objects are counted
// only when store is set.
func buildStorageList(ctx context.Context, reg *registry.Registry, store metadata.Store) (StorageList, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	list := make(StorageList, 0, reg.Count())
	for _, st := range reg.Storages() {
		info := StorageInfo{
			ID:          fmt.Sprintf("0x%08X", st.ID),
			Description: st.Description,
			Path:        st.Path,
			ReadOnly:    st.ReadOnly,
			Removable:   st.Removable,
		}
		if total, free, err := st.Capacity(); err == nil {
			info.TotalBytes, info.FreeBytes = total, free
		}
		if store != nil {
			objs, err := store.ListObjects(ctx, metadata.Filter{StorageID: st.ID})
			if err != nil {
				return nil, fmt.Errorf("storage 0x%08X: %w", st.ID, err)
			}
			n := len(objs)
			info.Objects = &n
		}
		list = append(list, info)
	}
	return list, nil
}
