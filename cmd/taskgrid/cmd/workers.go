package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// workersCmd represents the workers command
var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Manage workers",
	Long:  `Commands for listing registered workers and their capabilities.`,
}

// workersListCmd represents the workers list command
var workersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered workers",
	RunE:  runWorkersList,
}

func init() {
	rootCmd.AddCommand(workersCmd)
	workersCmd.AddCommand(workersListCmd)
}

func runWorkersList(cmd *cobra.Command, args []string) error {
	workers, err := newClient().ListWorkers()
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(workers)
	}

	if len(workers) == 0 {
		fmt.Println("No workers registered")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Platform", "CPU", "Memory", "GPU", "Load", "Software", "Last Heartbeat")

	for _, w := range workers {
		gpu := "No"
		if w.GPUAvailable {
			gpu = "Yes"
		}
		software := strings.Join(w.SpecializedSoftware, ",")
		if software == "" {
			software = "-"
		}
		table.Append(
			w.ID,
			fmt.Sprintf("%s/%s", w.Platform, w.Architecture),
			fmt.Sprintf("%d cores", w.CPUCores),
			fmt.Sprintf("%.1f GB", w.MemoryGB),
			gpu,
			fmt.Sprintf("%d/%d", w.CurrentLoad, w.MaxConcurrentTasks),
			software,
			w.LastHeartbeat.Format(time.RFC3339),
		)
	}

	table.Render()
	fmt.Printf("\nTotal workers: %d\n", len(workers))
	return nil
}
