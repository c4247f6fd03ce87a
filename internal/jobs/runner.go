package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/renderdeck/renderdeck-agent/internal/render"
)

// Runner polls the queue and executes jobs one at a time. Exports are
// subprocess-heavy; serializing them keeps the machine responsive and
// the scratch space bounded.
type Runner struct {
	repo        Repository
	engine      *render.Engine
	broadcaster *Broadcaster
	logger      *slog.Logger

	pollInterval time.Duration
	running      atomic.Bool
	kick         chan struct{}
}

func NewRunner(repo Repository, engine *render.Engine, broadcaster *Broadcaster, logger *slog.Logger) *Runner {
	return &Runner{
		repo:         repo,
		engine:       engine,
		broadcaster:  broadcaster,
		logger:       logger,
		pollInterval: 2 * time.Second,
		kick:         make(chan struct{}, 1),
	}
}

// Start blocks, polling for queued jobs until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}
	defer r.running.Store(false)

	r.logger.Info("job runner started", "poll_interval", r.pollInterval)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			return
		case <-r.kick:
			r.processNextJob(ctx)
		case <-ticker.C:
			r.processNextJob(ctx)
		}
	}
}

// Kick wakes the runner ahead of the next poll tick. Called after a
// job is enqueued so submission latency stays low.
func (r *Runner) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) processNextJob(ctx context.Context) {
	queued, err := r.repo.ListQueuedJobs(ctx)
	if err != nil {
		r.logger.Error("listing queued jobs failed", "error", err)
		return
	}
	if len(queued) == 0 {
		return
	}

	job := queued[0]
	r.Execute(ctx, job)
}

// Execute runs one job to a terminal status and publishes every state
// change. The render engine owns scratch cleanup and partial-output
// removal; the runner only records outcomes.
func (r *Runner) Execute(ctx context.Context, job *Job) {
	logger := r.logger.With("job_id", job.ID)

	if err := r.repo.UpdateJobStatus(ctx, job.ID, StatusRunning, ""); err != nil {
		logger.Error("marking job running failed", "error", err)
		return
	}
	r.broadcaster.Publish(Update{JobID: job.ID, Status: StatusRunning, Phase: string(render.PhaseCreated)})

	req := render.Request{
		JobID:      job.ID,
		Timeline:   job.Spec.Timeline,
		OutputPath: job.Spec.OutputPath,
		Width:      job.Spec.Width,
		Height:     job.Spec.Height,
		Quality:    render.Quality(job.Spec.Quality),
		Background: job.Spec.Background,
		OnProgress: func(phase render.Phase, percent int) {
			if err := r.repo.UpdateJobProgress(ctx, job.ID, string(phase), percent); err != nil {
				logger.Warn("persisting progress failed", "error", err)
			}
			r.broadcaster.Publish(Update{
				JobID:    job.ID,
				Status:   StatusRunning,
				Phase:    string(phase),
				Progress: percent,
			})
		},
	}

	result, err := r.engine.Export(ctx, req)
	if err != nil {
		logger.Error("export failed", "error", err)
		if uerr := r.repo.UpdateJobStatus(ctx, job.ID, StatusFailed, err.Error()); uerr != nil {
			logger.Error("marking job failed failed", "error", uerr)
		}
		r.broadcaster.Publish(Update{
			JobID:  job.ID,
			Status: StatusFailed,
			Phase:  string(render.PhaseFailed),
			Error:  err.Error(),
		})
		return
	}

	if err := r.repo.UpdateJobStrategy(ctx, job.ID, string(result.Strategy)); err != nil {
		logger.Warn("recording strategy failed", "error", err)
	}
	if err := r.repo.UpdateJobStatus(ctx, job.ID, StatusSucceeded, ""); err != nil {
		logger.Error("marking job succeeded failed", "error", err)
	}
	r.broadcaster.Publish(Update{
		JobID:    job.ID,
		Status:   StatusSucceeded,
		Phase:    string(render.PhaseSucceeded),
		Progress: 100,
	})
	logger.Info("job settled",
		"strategy", result.Strategy,
		"output", result.OutputPath,
		"elapsed_ms", result.Elapsed.Milliseconds(),
	)
}
