package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/guttosm/firdspulse/internal/domain/models"
	"github.com/guttosm/firdspulse/internal/logger"
	"github.com/guttosm/firdspulse/internal/pipeline"
	"github.com/guttosm/firdspulse/internal/storage"
)

// ErrRunLogDisabled is returned by read operations when no run history is configured.
var ErrRunLogDisabled = errors.New("run history is disabled")

const triggerKey = "run"

// RunService exposes run history and on-demand runs.
type RunService interface {
	Latest(ctx context.Context) (*models.Run, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Run, error)
	List(ctx context.Context, filter models.RunFilter) ([]models.Run, error)
	// Trigger starts a run, or joins the one already in flight. shared reports the latter.
	Trigger(ctx context.Context) (run models.Run, shared bool, err error)
}

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (models.Run, error)
}

type runService struct {
	base   context.Context
	repo   storage.RunsRepository
	runner Runner
	opts   pipeline.Options
	group  singleflight.Group
}

// NewRunService builds a RunService. repo may be nil when run history is disabled.
// Triggered runs are bound to base, not to the triggering request, so a client disconnect
// does not cancel a run other callers are waiting on.
func NewRunService(base context.Context, repo storage.RunsRepository, runner Runner, opts pipeline.Options) RunService {
	if base == nil {
		base = context.Background()
	}
	return &runService{base: base, repo: repo, runner: runner, opts: opts}
}

func (s *runService) Latest(ctx context.Context) (*models.Run, error) {
	if s.repo == nil {
		return nil, ErrRunLogDisabled
	}
	return s.repo.LatestRun(ctx)
}

func (s *runService) Get(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	if s.repo == nil {
		return nil, ErrRunLogDisabled
	}
	return s.repo.GetRun(ctx, id)
}

func (s *runService) List(ctx context.Context, filter models.RunFilter) ([]models.Run, error) {
	if s.repo == nil {
		return nil, ErrRunLogDisabled
	}
	return s.repo.ListRuns(ctx, filter)
}

func (s *runService) Trigger(ctx context.Context) (models.Run, bool, error) {
	ch := s.group.DoChan(triggerKey, func() (interface{}, error) {
		return s.runner.Run(s.base, s.opts)
	})

	select {
	case res := <-ch:
		run, _ := res.Val.(models.Run)
		if res.Shared {
			log := logger.With("service")
			log.Debug().Str("run_id", run.ID.String()).Msg("trigger joined in-flight run")
		}
		return run, res.Shared, res.Err
	case <-ctx.Done():
		return models.Run{}, false, ctx.Err()
	}
}
