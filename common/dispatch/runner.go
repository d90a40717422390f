package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/p2pml/training-dispatcher/common/config"
	"github.com/p2pml/training-dispatcher/common/executor"
	"github.com/p2pml/training-dispatcher/common/status"
	"github.com/p2pml/training-dispatcher/common/storage"
)

// Runner stages a job's inputs, executes the payload and publishes the
// result, guaranteeing cleanup of the working area on every exit path.
type Runner struct {
	store storage.ContentStore
	exec  executor.Executor
	cfg   config.DispatchConfig
}

// NewRunner creates a job runner.
func NewRunner(store storage.ContentStore, exec executor.Executor, cfg config.DispatchConfig) *Runner {
	return &Runner{
		store: store,
		exec:  exec,
		cfg:   cfg,
	}
}

// Run executes one job and returns the locator of the published result.
//
// The staging protocol is strictly ordered; the first failing step aborts
// the rest and proceeds directly to cleanup. Status events are emitted in
// order for the job: a start notice, then either a completion notice or a
// failure notice carrying the error's cause. Emitting an event never blocks
// or fails the job.
func (r *Runner) Run(ctx context.Context, job Job, sink status.Sink) (string, error) {
	area := NewWorkArea(r.cfg.WorkDir, job.ExecutionID, r.cfg.LegacyAlias())

	log.Info().
		Str("taskID", job.TaskID).
		Str("jobID", job.ExecutionID).
		Str("chunk", job.ChunkLocator).
		Msg("Starting job")

	// Cleanup runs unconditionally; the outcome is decided before it runs.
	defer area.Clean()

	locator, err := r.run(ctx, job, area, sink)
	if err != nil {
		r.emit(sink, job, status.CategoryError, fmt.Sprintf("job failed: %v", err))
		log.Error().Err(err).
			Str("taskID", job.TaskID).
			Str("jobID", job.ExecutionID).
			Msg("Job failed")
		return "", err
	}

	r.emit(sink, job, status.CategoryInfo, fmt.Sprintf("training completed, weights published as %s", locator))
	log.Info().
		Str("taskID", job.TaskID).
		Str("jobID", job.ExecutionID).
		Str("result", locator).
		Msg("Job completed")
	return locator, nil
}

func (r *Runner) run(ctx context.Context, job Job, area WorkArea, sink status.Sink) (string, error) {
	if err := area.Prepare(); err != nil {
		return "", err
	}

	if err := r.stage(ctx, job, area, sink); err != nil {
		return "", err
	}

	r.emit(sink, job, status.CategoryInfo, "starting training of model")

	if err := r.exec.Execute(ctx, executor.Input{
		DatasetPath: area.DatasetPath(),
		PayloadPath: area.PayloadPath(),
		OutputPath:  area.OutputPath(),
	}); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		return "", fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	weights, err := readOutput(area.OutputPath())
	if err != nil {
		return "", err
	}

	r.emit(sink, job, status.CategoryInfo, "training completed, uploading weights")

	locator, err := r.upload(ctx, weights)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return locator, nil
}

// stage downloads the chunk and the payload into the working area and
// validates both, then materializes the legacy alias if configured.
func (r *Runner) stage(ctx context.Context, job Job, area WorkArea, sink status.Sink) error {
	downloads := []struct {
		name    string
		locator string
		path    string
	}{
		{"dataset chunk", job.ChunkLocator, area.DatasetPath()},
		{"model payload", job.ModelLocator, area.PayloadPath()},
	}

	for _, d := range downloads {
		r.emit(sink, job, status.CategoryInfo, fmt.Sprintf("downloading %s", d.name))

		if err := r.download(ctx, d.locator, d.path); err != nil {
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("%w: %v", ErrCancelled, err)
			}
			return fmt.Errorf("download %s %s: %w", d.name, d.locator, err)
		}

		size, err := artifactSize(d.path)
		if err != nil {
			return fmt.Errorf("verify %s: %w", d.name, err)
		}
		if size == 0 {
			return fmt.Errorf("%s %s: %w", d.name, d.locator, ErrEmptyArtifact)
		}
		log.Debug().Str("path", d.path).Int64("size", size).Msg("Staged artifact")
	}

	if err := area.MaterializeAlias(); err != nil {
		if r.cfg.LegacyAliasRequired {
			return fmt.Errorf("%w: %v", ErrAliasFailed, err)
		}
		log.Warn().Err(err).Str("jobID", job.ExecutionID).Msg("Legacy alias failed, continuing without it")
	}
	return nil
}

func (r *Runner) download(ctx context.Context, locator, path string) error {
	if r.cfg.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.DownloadTimeout)
		defer cancel()
	}
	return r.store.Download(ctx, locator, path)
}

func (r *Runner) upload(ctx context.Context, weights []byte) (string, error) {
	if r.cfg.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.UploadTimeout)
		defer cancel()
	}
	return r.store.Upload(ctx, weights)
}

func (r *Runner) emit(sink status.Sink, job Job, category status.Category, message string) {
	sink.Send(status.Event{
		TaskID:   job.TaskID,
		JobID:    job.ExecutionID,
		Category: category,
		Message:  message,
	})
}

// readOutput loads the payload's named output. A missing or empty output
// file means the payload did not produce the required value.
func readOutput(path string) ([]byte, error) {
	weights, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMissingOutput
		}
		return nil, fmt.Errorf("read output: %w", err)
	}
	if len(weights) == 0 {
		return nil, ErrMissingOutput
	}
	return weights, nil
}

func artifactSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
