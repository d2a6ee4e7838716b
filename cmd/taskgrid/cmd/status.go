package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show aggregate system status",
	Long:  `Display worker counts, task counters and average completion time from the coordinator.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := newClient().GetSystemStatus()
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(status)
	}

	fmt.Printf("Workers:        %d registered, %d active\n", status.TotalWorkers, status.ActiveWorkers)
	fmt.Printf("Active tasks:   %d\n", status.ActiveTasks)
	fmt.Printf("Completed:      %d\n", status.CompletedTasks)
	fmt.Printf("Failed:         %d\n", status.FailedTasks)
	fmt.Printf("Canceled:       %d\n", status.CanceledTasks)
	fmt.Printf("Avg completion: %.1fs\n", status.AvgCompletionSeconds)
	fmt.Printf("Uptime:         %s\n", (time.Duration(status.UptimeSeconds) * time.Second).String())
	return nil
}
