package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"cdms/internal/domain/retention"
	"cdms/internal/domain/rights"
	"cdms/internal/platform/config"
	"cdms/internal/platform/metrics"
)

const (
	JobRetentionScan    = "retention_scan"
	JobRetentionEnforce = "retention_enforce"
	JobDueDateSweep     = "due_date_sweep"
)

// SystemActor is recorded on ledger entries written by scheduled runs.
const SystemActor = "system"

type Service struct {
	DB        *pgxpool.Pool
	Cfg       config.Config
	Retention *retention.Service
	Rights    *rights.Service
	Metrics   *metrics.Metrics
	queue     chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, cfg config.Config, ret *retention.Service, rts *rights.Service, m *metrics.Metrics) *Service {
	return &Service{
		DB:        db,
		Cfg:       cfg,
		Retention: ret,
		Rights:    rts,
		Metrics:   m,
		queue:     make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.RetentionInterval > 0 {
		go s.scheduleRetention(ctx, s.Cfg.RetentionInterval)
	}
	if s.Cfg.DueSweepInterval > 0 {
		go s.scheduleDueSweep(ctx, s.Cfg.DueSweepInterval)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, j.Type, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	s.Metrics.IncJobRun(j.Type, status)

	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

func (s *Service) scheduleRetention(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Cfg.RetentionEnforce {
				s.Enqueue(JobRetentionEnforce, func(ctx context.Context) (any, error) {
					result, err := s.Retention.EnforceExpired(ctx, time.Now().UTC(), SystemActor)
					return map[string]any{
						"scanned":    result.Scanned,
						"deleted":    result.Deleted,
						"anonymized": result.Anonymized,
						"review":     result.Review,
						"skipped":    result.Skipped,
					}, err
				})
				continue
			}
			s.Enqueue(JobRetentionScan, func(ctx context.Context) (any, error) {
				expired, err := s.Retention.ScanExpired(ctx, time.Now().UTC(), SystemActor)
				return map[string]any{"expired": len(expired)}, err
			})
		}
	}
}

// scheduleDueSweep surfaces requests past their statutory deadline. The sweep
// never closes anything; overdue requests stay open until an officer acts.
func (s *Service) scheduleDueSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(JobDueDateSweep, func(ctx context.Context) (any, error) {
				overdue, err := s.Rights.Overdue(ctx, time.Now().UTC())
				if err != nil {
					return nil, err
				}
				for _, request := range overdue {
					slog.Warn("rights request overdue",
						"sequenceCode", request.SequenceCode,
						"kind", request.Kind,
						"status", request.Status,
						"dueAt", request.EffectiveDueAt(),
					)
				}
				return map[string]any{"overdue": len(overdue)}, nil
			})
		}
	}
}
