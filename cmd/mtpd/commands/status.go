package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/mtpd/internal/cli/output"
	"github.com/marmos91/mtpd/pkg/api"
	"github.com/marmos91/mtpd/pkg/api/handlers"
	"github.com/marmos91/mtpd/pkg/config"
)

var (
	statusOutput  string
	statusPidFile string
	statusAPIPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show responder status",
	Long: `Display the current status of the mtpd daemon.

The PID file tells whether the process is alive; the readiness endpoint of
the API server tells whether storages are registered and whether a host
has a session open.

Examples:
  # Check status (API port taken from the configuration)
  mtpd status

  # Check status with custom API port
  mtpd status --api-port 9091

  # Output as JSON
  mtpd status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/mtpd/mtpd.pid)")
	statusCmd.Flags().IntVar(&statusAPIPort, "api-port", 0, "API server port (default: from configuration)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus is the status reported by "mtpd status".
type ServerStatus struct {
	Running     bool   `json:"running" yaml:"running"`
	PID         int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Ready       bool   `json:"ready" yaml:"ready"`
	Storages    int    `json:"storages" yaml:"storages"`
	SessionOpen bool   `json:"session_open" yaml:"session_open"`
	Message     string `json:"message" yaml:"message"`
}

func (s ServerStatus) pairs() [][2]string {
	state := "stopped"
	switch {
	case s.Running && s.Ready:
		state = "running"
	case s.Running:
		state = "running (not ready)"
	}
	pairs := [][2]string{{"Status", state}}
	if s.PID != 0 {
		pairs = append(pairs, [2]string{"PID", strconv.Itoa(s.PID)})
	}
	if s.Ready {
		pairs = append(pairs,
			[2]string{"Storages", strconv.Itoa(s.Storages)},
			[2]string{"Session", map[bool]string{true: "open", false: "none"}[s.SessionOpen]})
	}
	return append(pairs, [2]string{"Message", s.Message})
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := ServerStatus{Message: "mtpd is not running"}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}
	if pid, running := isProcessRunning(pidPath); running {
		status.Running = true
		status.PID = pid
	}

	port := statusAPIPort
	if port == 0 {
		port = apiPortFromConfig()
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/health/ready", port))
	if err == nil {
		defer func() { _ = resp.Body.Close() }()

		var ready struct {
			handlers.Response
			Data struct {
				Storages    int  `json:"storages"`
				SessionOpen bool `json:"session_open"`
			} `json:"data"`
		}
		status.Running = true
		if err := json.NewDecoder(resp.Body).Decode(&ready); err != nil {
			status.Message = "mtpd is running but the readiness response is invalid"
		} else if resp.StatusCode == http.StatusOK {
			status.Ready = true
			status.Storages = ready.Data.Storages
			status.SessionOpen = ready.Data.SessionOpen
			status.Message = "mtpd is running and ready"
		} else {
			status.Message = fmt.Sprintf("mtpd is running but not ready: %s", ready.Error)
		}
	} else if status.Running {
		status.Message = "mtpd process exists but the API server is unreachable"
	}

	if format == output.FormatTable {
		return output.KeyValueTable(os.Stdout, status.pairs())
	}
	return output.NewPrinter(os.Stdout, format).Print(status)
}

// apiPortFromConfig returns the configured API port, or the default one
// when the configuration cannot be loaded.
func apiPortFromConfig() int {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return api.DefaultPort
	}
	return cfg.API.Port
}
