package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
)

// SubprocessTrainer shells out to an external training command. The
// command receives the job as flags and owns all numeric work; this
// process only checks the exit status.
type SubprocessTrainer struct {
	// Command is the training executable (e.g. "mlx_lm.lora" or a
	// wrapper script).
	Command string
	// ExtraArgs are appended verbatim after the generated flags.
	ExtraArgs []string
	Logger    *slog.Logger
}

// Train invokes the training command and waits for it to exit. Output
// streams through to this process's stdout/stderr so training progress
// stays visible.
func (s *SubprocessTrainer) Train(ctx context.Context, job Job) error {
	if s.Command == "" {
		return fmt.Errorf("no training command configured")
	}

	args := []string{
		"--model", job.BaseModel,
		"--data", job.TrainingDataDir,
		"--adapter-path", job.OutputDir,
		"--train",
	}
	if job.Params.Iters > 0 {
		args = append(args, "--iters", strconv.Itoa(job.Params.Iters))
	}
	if job.Params.BatchSize > 0 {
		args = append(args, "--batch-size", strconv.Itoa(job.Params.BatchSize))
	}
	if job.Params.LearningRate > 0 {
		args = append(args, "--learning-rate", strconv.FormatFloat(job.Params.LearningRate, 'g', -1, 64))
	}
	if job.Params.NumLayers > 0 {
		args = append(args, "--num-layers", strconv.Itoa(job.Params.NumLayers))
	}
	args = append(args, s.ExtraArgs...)

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("starting training subprocess", "command", s.Command, "data", job.TrainingDataDir, "output", job.OutputDir)

	cmd := exec.CommandContext(ctx, s.Command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("training subprocess: %w", err)
	}
	return nil
}
