package commands

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	stopPidFile string
	stopForce   bool
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the MTP responder",
	Long: `Stop a running mtpd daemon.

By default, sends SIGTERM for graceful shutdown: the open session is ended,
the transport closed and the metadata store flushed. Use --force for
immediate termination with SIGKILL.

Examples:
  # Stop (uses default PID file)
  mtpd stop

  # Stop using custom PID file
  mtpd stop --pid-file /run/mtpd.pid

  # Force stop (SIGKILL)
  mtpd stop --force`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/mtpd/mtpd.pid)")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Force kill (SIGKILL) instead of graceful shutdown (SIGTERM)")
}

func runStop(cmd *cobra.Command, args []string) error {
	pidPath := stopPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	pid, err := readPidFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("PID file not found: %s\n\nIs mtpd running?", pidPath)
		}
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	sig, name := syscall.SIGTERM, "SIGTERM"
	if stopForce {
		sig, name = syscall.SIGKILL, "SIGKILL"
	}
	fmt.Printf("Sending %s to process %d...\n", name, pid)

	if err := process.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			fmt.Println("mtpd already stopped")
			_ = os.Remove(pidPath)
			return nil
		}
		return fmt.Errorf("failed to send signal: %w", err)
	}

	if stopForce {
		fmt.Println("mtpd terminated")
	} else {
		fmt.Println("Shutdown signal sent. mtpd will stop gracefully.")
	}
	return nil
}
