package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dshills/treeindex/internal/indexer"
	"github.com/dshills/treeindex/internal/storage"
	"github.com/dshills/treeindex/pkg/types"
)

// Defaults
const (
	DefaultHousekeepingInterval = time.Hour
	DefaultShutdownGrace        = 5 * time.Second
	DefaultHistoryKeep          = 100

	recordTimeout = 5 * time.Second
	// How long shutdown waits for cancelled runs to unwind and record
	abandonTimeout = recordTimeout
)

var (
	// ErrRunInProgress is returned when a trigger is skipped because a run
	// holding the same guard is in flight
	ErrRunInProgress = errors.New("sync already in progress")
	// ErrUnknownProject is returned when triggering a project that is not registered
	ErrUnknownProject = errors.New("unknown project")
	// ErrRunPanicked wraps a panic recovered from a run
	ErrRunPanicked = errors.New("sync run panicked")
	// ErrAlreadyRunning is returned by a second call to Run
	ErrAlreadyRunning = errors.New("scheduler already running")
	// ErrShuttingDown is returned by Trigger once Run has begun shutting down
	ErrShuttingDown = errors.New("scheduler shutting down")
)

// Runner performs the work of one trigger
type Runner interface {
	Provision(ctx context.Context) error
	RunOnce(ctx context.Context, project types.Project) (*indexer.Statistics, error)
}

// Recorder observes trigger outcomes, e.g. for metrics
type Recorder interface {
	ObserveRun(projectID, status string, duration time.Duration, records, failedBatches int)
}

// Options configures a Scheduler
type Options struct {
	Guard                string         // indexer.ScopeProject (default) or indexer.ScopeGlobal
	Location             *time.Location // Time zone for cron expressions (default: local)
	HousekeepingInterval time.Duration
	ShutdownGrace        time.Duration // How long Run waits for in-flight runs on shutdown
	HistoryKeep          int           // Runs kept per project when pruning; 0 disables pruning
	History              storage.Storage
	Recorder             Recorder
	Logger               *slog.Logger
}

// Upcoming is the next fire time of a project
type Upcoming struct {
	ProjectID string
	Schedule  string
	Next      time.Time
}

// Scheduler fires each project's sync on its cron schedule, never running
// two syncs under the same guard at once
type Scheduler struct {
	projects  map[string]types.Project
	order     []string
	schedules map[string]cron.Schedule

	runner   Runner
	guard    *indexer.Guard
	cron     *cron.Cron
	history  storage.Storage
	recorder Recorder
	logger   *slog.Logger
	opts     Options
	now      func() time.Time

	mu       sync.Mutex
	started  bool
	stopping bool            // set by shutdown; no new trigger is admitted
	runCtx   context.Context // passed to cron-fired runs
	inflight sync.WaitGroup  // Add only under mu while !stopping
}

// New validates projects, parses their schedules and registers them. No
// trigger fires until Run is called.
func New(projects []types.Project, runner Runner, opts Options) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler needs a runner")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.HousekeepingInterval <= 0 {
		opts.HousekeepingInterval = DefaultHousekeepingInterval
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = DefaultShutdownGrace
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	guard, err := indexer.NewGuard(opts.Guard)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger.With(slog.String("component", "scheduler"))
	clog := cronLogger{logger: logger}

	s := &Scheduler{
		projects:  make(map[string]types.Project, len(projects)),
		order:     make([]string, 0, len(projects)),
		schedules: make(map[string]cron.Schedule, len(projects)),
		runner:    runner,
		guard:     guard,
		history:   opts.History,
		recorder:  opts.Recorder,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
		runCtx:    context.Background(),
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(opts.Location),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog)),
		),
	}

	for _, p := range projects {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("project %q: %w", p.ID, err)
		}
		if _, dup := s.projects[p.ID]; dup {
			return nil, fmt.Errorf("duplicate project id %q", p.ID)
		}
		sched, err := ParseSchedule(p.Schedule)
		if err != nil {
			return nil, fmt.Errorf("project %q: %w", p.ID, err)
		}

		s.projects[p.ID] = p
		s.order = append(s.order, p.ID)
		s.schedules[p.ID] = sched

		id := p.ID
		s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(id) }))
		logger.Info("project registered", slog.String("project", id), slog.String("schedule", p.Schedule))
	}

	return s, nil
}

// Projects returns the registered projects in registration order
func (s *Scheduler) Projects() []types.Project {
	out := make([]types.Project, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.projects[id])
	}
	return out
}

// Project returns a registered project
func (s *Scheduler) Project(id string) (types.Project, bool) {
	p, ok := s.projects[id]
	return p, ok
}

// GuardScope returns the scope of the mutual exclusion guard
func (s *Scheduler) GuardScope() string {
	return s.guard.Scope()
}

// Busy reports whether a run holding projectID's guard is in flight
func (s *Scheduler) Busy(projectID string) bool {
	return s.guard.Busy(projectID)
}

// Upcoming returns every project's next fire time, soonest first
func (s *Scheduler) Upcoming() []Upcoming {
	now := s.now().In(s.opts.Location)
	out := make([]Upcoming, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Upcoming{
			ProjectID: id,
			Schedule:  s.projects[id].Schedule,
			Next:      s.schedules[id].Next(now),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Next.Before(out[j].Next) })
	return out
}

// fire is the cron job body of a project
func (s *Scheduler) fire(projectID string) {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	// Skips and failures are logged and recorded by Trigger
	_, _ = s.Trigger(ctx, projectID, storage.SourceCron)
}

// Trigger runs a project now under its guard. When the guard is held it
// returns ErrRunInProgress without walking the tree or calling the backend;
// the only side effect is a skipped row in the run history.
func (s *Scheduler) Trigger(ctx context.Context, projectID, source string) (*indexer.Statistics, error) {
	p, ok := s.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProject, projectID)
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	release, ok := s.guard.TryAcquire(projectID)
	if !ok {
		s.logger.Info("sync skipped, previous run still in progress",
			slog.String("project", projectID),
			slog.String("source", source),
			slog.String("guard", s.guard.Scope()),
		)
		now := s.now()
		s.finish(ctx, p, source, now, now, nil, ErrRunInProgress)
		return nil, ErrRunInProgress
	}
	defer release()

	return s.execute(ctx, p, source)
}

// execute runs provisioning and the sync. A panic is converted into an
// error so the deferred guard release in Trigger always runs.
func (s *Scheduler) execute(ctx context.Context, p types.Project, source string) (stats *indexer.Statistics, err error) {
	start := s.now()
	log := s.logger.With(slog.String("project", p.ID), slog.String("source", source))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRunPanicked, r)
			log.Error("sync run panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
		s.finish(ctx, p, source, start, s.now(), stats, err)
	}()

	if perr := s.runner.Provision(ctx); perr != nil {
		log.Warn("provisioning check failed, continuing with sync", slog.String("error", perr.Error()))
	}

	stats, err = s.runner.RunOnce(ctx, p)
	if err != nil {
		log.Error("sync run failed", slog.String("error", err.Error()))
	}
	return stats, err
}

// finish records a trigger outcome in the history and the recorder
func (s *Scheduler) finish(ctx context.Context, p types.Project, source string, start, end time.Time, stats *indexer.Statistics, runErr error) {
	run := &storage.SyncRun{
		ProjectID:  p.ID,
		RootPath:   p.Root,
		Status:     runStatus(runErr),
		Source:     source,
		StartedAt:  start,
		FinishedAt: end,
	}
	if stats != nil {
		run.Records = stats.Records
		run.RecordsSkipped = stats.Skipped
		run.Batches = stats.Batches
		run.FailedBatches = stats.FailedBatches
		run.DeletionOK = stats.DeletionOK
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	if s.recorder != nil {
		s.recorder.ObserveRun(p.ID, run.Status, run.Duration(), run.Records, run.FailedBatches)
	}
	if s.history == nil {
		return
	}

	// Record even when the run's context has been cancelled
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.history.RecordRun(rctx, run); err != nil {
		s.logger.Warn("failed to record run", slog.String("project", p.ID), slog.String("error", err.Error()))
	}
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return storage.StatusSucceeded
	case errors.Is(err, ErrRunInProgress):
		return storage.StatusSkipped
	case errors.Is(err, indexer.ErrPartialSync):
		return storage.StatusPartial
	default:
		return storage.StatusFailed
	}
}

// Run starts the cron engine and blocks until ctx is cancelled. On shutdown
// it waits up to ShutdownGrace for in-flight runs, then cancels them.
func (s *Scheduler) Run(ctx context.Context) error {
	runCtx, cancelRuns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRuns()

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.started = true
	s.runCtx = runCtx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started",
		slog.Int("projects", len(s.order)),
		slog.String("guard", s.guard.Scope()),
		slog.String("timezone", s.opts.Location.String()),
	)
	s.logUpcoming()

	ticker := time.NewTicker(s.opts.HousekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown(cancelRuns)
			return nil
		case <-ticker.C:
			s.housekeeping(ctx)
		}
	}
}

func (s *Scheduler) shutdown(cancelRuns context.CancelFunc) {
	s.logger.Info("scheduler stopping")
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
	stopped := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.inflight.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.opts.ShutdownGrace)
	defer timer.Stop()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
	case <-timer.C:
		s.logger.Warn("abandoning in-flight runs", slog.Duration("grace", s.opts.ShutdownGrace))
		cancelRuns()

		// Cancelled runs still record their outcome; the caller closes the
		// history once Run returns
		select {
		case <-done:
			s.logger.Info("scheduler stopped")
		case <-time.After(abandonTimeout):
			s.logger.Error("in-flight runs ignored cancellation", slog.Duration("waited", abandonTimeout))
		}
	}
}

// housekeeping logs the upcoming fire times and prunes the run history
func (s *Scheduler) housekeeping(ctx context.Context) {
	s.logUpcoming()

	if s.history == nil || s.opts.HistoryKeep <= 0 {
		return
	}
	deleted, err := s.history.PruneRuns(ctx, s.opts.HistoryKeep)
	if err != nil {
		s.logger.Warn("failed to prune run history", slog.String("error", err.Error()))
		return
	}
	if deleted > 0 {
		s.logger.Info("pruned run history", slog.Int64("deleted", deleted), slog.Int("keep", s.opts.HistoryKeep))
	}
}

func (s *Scheduler) logUpcoming() {
	for _, u := range s.Upcoming() {
		s.logger.Info("next sync",
			slog.String("project", u.ProjectID),
			slog.String("schedule", u.Schedule),
			slog.Time("at", u.Next),
		)
	}
}
