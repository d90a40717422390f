package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/p2pml/training-dispatcher/common/config"
	"github.com/p2pml/training-dispatcher/common/messaging"
	"github.com/p2pml/training-dispatcher/common/status"
	"github.com/p2pml/training-dispatcher/common/storage"
	"github.com/p2pml/training-dispatcher/common/work"
)

// Request describes one task dispatch: which manifest to partition, which
// payload to run, and the worker identities to spread the chunks across.
type Request struct {
	TaskID      string   `json:"task_id"`
	ManifestURL string   `json:"manifest_url"`
	ModelURL    string   `json:"model_url"`
	Workers     []string `json:"workers"`
}

// ChunkOutcome records what happened to a single chunk.
type ChunkOutcome struct {
	Worker string `json:"worker"`
	Chunk  string `json:"chunk"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Summary aggregates a finished dispatch.
type Summary struct {
	TaskID     string         `json:"task_id"`
	Workers    []string       `json:"workers"`
	Chunks     int            `json:"chunks"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Outcomes   []ChunkOutcome `json:"outcomes"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Service coordinates a whole task: manifest assignment, concurrent per-
// worker job execution, state tracking and status publication.
type Service struct {
	store   storage.ContentStore
	runner  *Runner
	manager *work.TaskManager
	broker  messaging.Publisher
	cfg     config.DispatchConfig
}

// NewService creates a dispatch service.
func NewService(store storage.ContentStore, runner *Runner, manager *work.TaskManager, broker messaging.Publisher, cfg config.DispatchConfig) *Service {
	return &Service{
		store:   store,
		runner:  runner,
		manager: manager,
		broker:  broker,
		cfg:     cfg,
	}
}

// DispatchTask runs one task end to end and returns its summary. The task
// is guarded in Redis so the same task id cannot be dispatched twice
// concurrently. Chunks assigned to the same worker run sequentially in
// manifest order; workers run concurrently.
func (s *Service) DispatchTask(ctx context.Context, req Request) (*Summary, error) {
	if err := s.manager.Start(ctx, req.TaskID); err != nil {
		return nil, err
	}

	summary, err := s.dispatch(ctx, req)

	if cerr := s.manager.Complete(context.WithoutCancel(ctx), req.TaskID); cerr != nil {
		log.Warn().Err(cerr).Str("taskID", req.TaskID).Msg("Failed to clear task running state")
	}

	return summary, err
}

func (s *Service) dispatch(ctx context.Context, req Request) (*Summary, error) {
	startedAt := time.Now().UTC()

	assignment, err := Assign(ctx, s.store, req.ManifestURL, req.Workers)
	if err != nil {
		return nil, err
	}

	events := status.NewChannel(int(s.cfg.QueueDepth))
	publisherDone := make(chan struct{})
	go func() {
		defer close(publisherDone)
		messaging.PublishStatuses(s.broker, events.Events())
	}()

	workers := lo.Keys(assignment)
	sort.Strings(workers)

	pool, err := work.NewWorkerPool[[]ChunkOutcome](len(workers), len(workers))
	if err != nil {
		events.Close()
		<-publisherDone
		return nil, err
	}

	pool.Start(ctx, "dispatch-"+req.TaskID)

	queued := 0
	for _, worker := range workers {
		chunks := assignment[worker]

		task, err := work.NewTask(func(ctx context.Context) ([]ChunkOutcome, error) {
			return s.runWorkerChunks(ctx, req, worker, chunks, events), nil
		}, work.WithID[[]ChunkOutcome](worker))
		if err != nil {
			log.Error().Err(err).Str("worker", worker).Msg("Failed to create worker task")
			continue
		}

		if err := pool.AddTask(ctx, task); err != nil {
			log.Error().Err(err).Str("worker", worker).Msg("Failed to queue worker task")
			continue
		}
		queued++
	}

	outcomes := make([]ChunkOutcome, 0, assignment.ChunkCount())
	var runErr error

collect:
	for i := 0; i < queued; i++ {
		select {
		case result, ok := <-pool.Results():
			if !ok {
				break collect
			}
			outcomes = append(outcomes, result.Result...)
		case <-ctx.Done():
			runErr = fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
			break collect
		}
	}

	pool.Stop()
	events.Close()
	<-publisherDone

	summary := &Summary{
		TaskID:  req.TaskID,
		Workers: workers,
		Chunks:  assignment.ChunkCount(),
		Succeeded: lo.CountBy(outcomes, func(o ChunkOutcome) bool {
			return o.Error == ""
		}),
		Outcomes:   outcomes,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
	summary.Failed = len(outcomes) - summary.Succeeded

	s.storeSummary(ctx, summary)

	log.Info().
		Str("taskID", req.TaskID).
		Int("chunks", summary.Chunks).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int64("droppedEvents", events.Dropped()).
		Msg("Task dispatch finished")

	return summary, runErr
}

// runWorkerChunks executes one worker's chunk sequence in order. A failed
// chunk is recorded and does not stop the remaining chunks; retry policy
// belongs to the orchestrator's caller, never to the runner.
func (s *Service) runWorkerChunks(ctx context.Context, req Request, worker string, chunks []string, sink status.Sink) []ChunkOutcome {
	outcomes := make([]ChunkOutcome, 0, len(chunks))

	for _, chunk := range chunks {
		outcome := ChunkOutcome{Worker: worker, Chunk: chunk}

		job, err := NewJob(req.TaskID, chunk, req.ModelURL)
		if err != nil {
			outcome.Error = err.Error()
			outcomes = append(outcomes, outcome)
			continue
		}

		result, err := s.runner.Run(ctx, job, sink)
		if err != nil {
			outcome.Error = err.Error()
		} else {
			outcome.Result = result
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

func (s *Service) storeSummary(ctx context.Context, summary *Summary) {
	data, err := json.Marshal(summary)
	if err != nil {
		log.Error().Err(err).Str("taskID", summary.TaskID).Msg("Failed to marshal dispatch summary")
		return
	}
	if err := s.manager.StoreSummary(context.WithoutCancel(ctx), summary.TaskID, data); err != nil {
		log.Warn().Err(err).Str("taskID", summary.TaskID).Msg("Failed to store dispatch summary")
	}
}
