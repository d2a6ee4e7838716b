package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/taskgrid/pkg/models"
)

// tasksCmd represents the tasks command
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage tasks",
	Long:  `Commands for submitting, inspecting, retrying and canceling tasks.`,
}

var (
	submitType     string
	submitPriority int
	submitCaps     []string
	submitEstimate time.Duration
	submitInput    string
	submitOutput   string
	submitRetries  int
)

// tasksSubmitCmd represents the tasks submit command
var tasksSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new task",
	Long:  `Submit a task to the coordinator. The coordinator assigns it to a capable worker immediately or rejects it if none is available.`,
	RunE:  runTasksSubmit,
}

// tasksStatusCmd represents the tasks status command
var tasksStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show one task's status, progress and ETA",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksStatus,
}

// tasksRetryCmd represents the tasks retry command
var tasksRetryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Retry a failed task",
	Long:  `Resubmit a failed task. Only failed tasks are retryable, and each task carries a bounded retry budget.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksRetry,
}

// tasksCancelCmd represents the tasks cancel command
var tasksCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a pending or running task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksCancel,
}

// tasksListCmd represents the tasks list command
var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List in-flight tasks",
	RunE:  runTasksList,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksSubmitCmd)
	tasksCmd.AddCommand(tasksStatusCmd)
	tasksCmd.AddCommand(tasksRetryCmd)
	tasksCmd.AddCommand(tasksCancelCmd)
	tasksCmd.AddCommand(tasksListCmd)

	tasksSubmitCmd.Flags().StringVar(&submitType, "type", "general", "task type (video_render, audio_process, image_edit, ai_inference, general)")
	tasksSubmitCmd.Flags().IntVar(&submitPriority, "priority", models.PriorityMedium, "priority: 1=high, 2=medium, 3=low")
	tasksSubmitCmd.Flags().StringSliceVar(&submitCaps, "require", nil, "required worker capabilities (repeatable)")
	tasksSubmitCmd.Flags().DurationVar(&submitEstimate, "estimate", 0, "estimated duration, used for progress/ETA display")
	tasksSubmitCmd.Flags().StringVar(&submitInput, "input", "", "task input data as a JSON object")
	tasksSubmitCmd.Flags().StringVar(&submitOutput, "output-path", "", "destination path for the task's output")
	tasksSubmitCmd.Flags().IntVar(&submitRetries, "max-retries", models.DefaultMaxRetries, "retry budget for explicit retries")
}

func runTasksSubmit(cmd *cobra.Command, args []string) error {
	req := models.TaskRequest{
		Type:                 models.TaskType(submitType),
		Priority:             submitPriority,
		RequiredCapabilities: submitCaps,
		EstimatedDuration:    submitEstimate,
		OutputPath:           submitOutput,
		MaxRetries:           submitRetries,
	}
	if submitInput != "" {
		if err := json.Unmarshal([]byte(submitInput), &req.InputData); err != nil {
			return fmt.Errorf("invalid --input JSON: %w", err)
		}
	}

	task, err := newClient().SubmitTask(req)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(task)
	}

	if task.Status == models.TaskStatusFailed {
		fmt.Printf("Task %s rejected: %s\n", task.ID, task.Error)
		return nil
	}
	fmt.Printf("Task %s submitted (queue %s, worker %s)\n",
		task.ID, models.QueueForType(task.Type), task.AssignedWorker)
	return nil
}

func runTasksStatus(cmd *cobra.Command, args []string) error {
	info, err := newClient().GetTaskStatus(args[0])
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(info)
	}

	if !info.Found {
		fmt.Printf("Task %s not found\n", args[0])
		return nil
	}

	fmt.Printf("Task:     %s\n", info.TaskID)
	fmt.Printf("Type:     %s\n", info.Type)
	fmt.Printf("Status:   %s\n", info.Status)
	if info.AssignedWorker != "" {
		fmt.Printf("Worker:   %s\n", info.AssignedWorker)
	}
	fmt.Printf("Progress: %.0f%%\n", info.ProgressPercent)
	if info.Status == models.TaskStatusProcessing {
		fmt.Printf("ETA:      %.0fs\n", info.ETASeconds)
	}
	if info.Error != "" {
		fmt.Printf("Error:    %s\n", info.Error)
	}
	fmt.Printf("Retries:  %d/%d\n", info.RetryCount, info.MaxRetries)
	return nil
}

func runTasksRetry(cmd *cobra.Command, args []string) error {
	task, err := newClient().RetryTask(args[0])
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(task)
	}

	if task.Status == models.TaskStatusFailed {
		fmt.Printf("Retry of %s rejected: %s\n", task.ID, task.Error)
		return nil
	}
	fmt.Printf("Task %s resubmitted (attempt %d/%d, worker %s)\n",
		task.ID, task.RetryCount, task.MaxRetries, task.AssignedWorker)
	return nil
}

func runTasksCancel(cmd *cobra.Command, args []string) error {
	if err := newClient().CancelTask(args[0]); err != nil {
		return err
	}
	fmt.Printf("Task %s canceled\n", args[0])
	return nil
}

func runTasksList(cmd *cobra.Command, args []string) error {
	tasks, err := newClient().ListActiveTasks()
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(tasks)
	}

	if len(tasks) == 0 {
		fmt.Println("No active tasks")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Type", "Status", "Priority", "Worker", "Retries")
	for _, t := range tasks {
		table.Append(
			t.ID,
			string(t.Type),
			string(t.Status),
			fmt.Sprintf("%d", t.Priority),
			t.AssignedWorker,
			fmt.Sprintf("%d/%d", t.RetryCount, t.MaxRetries),
		)
	}
	table.Render()
	fmt.Printf("\nTotal active tasks: %d\n", len(tasks))
	return nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
