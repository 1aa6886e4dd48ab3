package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadstats_backend/internal/calendar"
	"leadstats_backend/internal/crm"
	"leadstats_backend/internal/mirror"
	statssvc "leadstats_backend/internal/stats/service"
	"leadstats_backend/platform/cache"
	"leadstats_backend/platform/config"
	"leadstats_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultSyncInterval = 30 * time.Minute

// Worker consumes mirror sync tasks: it pulls the full Lead and Deal sets
// from the CRM and upserts them into the mirror tables, then invalidates the
// stats cache so fresh aggregates are served.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	repo      *mirror.Repository
	remote    *crm.Client
	cal       calendar.Calendar
	cache     *cache.Cache
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, remote *crm.Client, cal calendar.Calendar, statsCache *cache.Cache, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	interval := cfg.GetSyncInterval()
	if interval <= 0 {
		interval = defaultSyncInterval
	}

	periodic := asynq.NewScheduler(opt, nil)
	task, err := NewMirrorSyncTask(MirrorSyncPayload{Requested: "periodic"})
	if err != nil {
		return nil, err
	}
	if _, err := periodic.Register(fmt.Sprintf("@every %s", interval), task, asynq.Queue(queue)); err != nil {
		return nil, err
	}

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		scheduler: periodic,
		mux:       mux,
		repo:      mirror.New(pool),
		remote:    remote,
		cal:       cal,
		cache:     statsCache,
		log:       log,
	}

	mux.HandleFunc(TaskMirrorSync, w.handleMirrorSync)

	return w, nil
}

// Run starts the periodic scheduler and the task server; it blocks until
// the server stops.
func (w *Worker) Run() error {
	if err := w.scheduler.Start(); err != nil {
		return err
	}
	return w.server.Run(w.mux)
}

// Shutdown stops both the scheduler and the server gracefully.
func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
}

func (w *Worker) handleMirrorSync(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseMirrorSyncPayload(task)
	if err != nil {
		return err
	}

	log := w.log
	if payload.RunID != "" {
		log = log.WithContext(context.WithValue(ctx, logger.SyncRunIDKey, payload.RunID))
	}
	log.SyncEvent("started", 0, 0)

	leads, err := w.remote.FetchAll(ctx, crm.ModuleLeads)
	if err != nil {
		return fmt.Errorf("fetch leads: %w", err)
	}
	deals, err := w.remote.FetchAll(ctx, crm.ModuleDeals)
	if err != nil {
		return fmt.Errorf("fetch deals: %w", err)
	}

	leadCount, err := w.repo.UpsertLeads(ctx, leads)
	if err != nil {
		log.DatabaseError("upsert leads", err)
		return err
	}
	dealCount, err := w.repo.UpsertDeals(ctx, w.cal, deals)
	if err != nil {
		log.DatabaseError("upsert deals", err)
		return err
	}

	w.cache.InvalidatePrefix(ctx, statssvc.CacheKeyPrefix)
	log.SyncEvent("completed", leadCount, dealCount)

	return nil
}
