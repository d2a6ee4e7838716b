package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/psantana5/taskgrid/pkg/models"
)

// ExecHandler adapts an external executable into a HandlerFunc. The actual
// work (rendering, editing, inference) lives outside this system; the
// contract is: task input data arrives as JSON on stdin, the output path is
// the first argument, a zero exit status means completed.
//
// The handler context is wired through CommandContext, so cooperative task
// cancellation kills the external process.
func ExecHandler(command string, args ...string) HandlerFunc {
	return func(ctx context.Context, task *models.Task) (string, error) {
		input, err := json.Marshal(map[string]interface{}{
			"task_id":     task.ID,
			"task_type":   task.Type,
			"input_data":  task.InputData,
			"output_path": task.OutputPath,
		})
		if err != nil {
			return "", fmt.Errorf("marshal handler input: %w", err)
		}

		cmdArgs := append(append([]string(nil), args...), task.OutputPath)
		cmd := exec.CommandContext(ctx, command, cmdArgs...)
		cmd.Stdin = bytes.NewReader(input)

		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("handler canceled: %w", ctx.Err())
			}
			detail := strings.TrimSpace(stderr.String())
			if detail != "" {
				return "", fmt.Errorf("handler %s failed: %v: %s", command, err, detail)
			}
			return "", fmt.Errorf("handler %s failed: %w", command, err)
		}

		return task.OutputPath, nil
	}
}

// RegisterExecHandlers fills a registry from a task-type → command map,
// typically sourced from the agent's configuration
func RegisterExecHandlers(reg *Registry, commands map[string]string) {
	for taskType, command := range commands {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			continue
		}
		reg.Register(models.TaskType(taskType), ExecHandler(fields[0], fields[1:]...))
	}
}
