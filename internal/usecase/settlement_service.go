package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/prediction-settlement/internal/domain/fixture"
	"github.com/riskibarqy/prediction-settlement/internal/domain/market"
	"github.com/riskibarqy/prediction-settlement/internal/domain/matching"
	"github.com/riskibarqy/prediction-settlement/internal/domain/prediction"
	"github.com/riskibarqy/prediction-settlement/internal/domain/settlement"
	"github.com/riskibarqy/prediction-settlement/internal/platform/id"
	"github.com/riskibarqy/prediction-settlement/internal/platform/logging"
)

const (
	defaultSyncWorkerCount = 4
	maxSyncWorkerCount     = 16
	settlementLockKey      = "prediction-settlement:cycle"
)

const (
	taskPending      = "pending"
	taskMatched      = "matched"
	taskSettled      = "settled"
	taskVoided       = "voided"
	taskNoMatch      = "no_match"
	taskSkippedStale = "skipped_stale"
	taskConflict     = "conflict"
	taskCanceled     = "canceled"
	taskError        = "error"
)

// FixtureSource is the read side the orchestrator needs. *FixtureFeed
// satisfies it.
type FixtureSource interface {
	FetchFixturesByDate(ctx context.Context, date string) (FixtureList, error)
	FetchFixtureDetail(ctx context.Context, fixtureID int64) (FixtureSnapshot, bool, error)
	RefreshLive(ctx context.Context) ([]fixture.Fixture, error)
	Prune() int
}

// CycleLocker guards a cycle across worker replicas. release is nil when the
// lock was not acquired.
type CycleLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// CycleMetrics is optional.
type CycleMetrics interface {
	ObserveCycle(status string, elapsed time.Duration)
	AddPredictionOutcome(outcome string, n int)
}

type SettlementConfig struct {
	WorkerCount   int
	PageSize      int
	KickoffWindow time.Duration
	LockTTL       time.Duration
	LiveWarmup    bool
}

type SyncInput struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type SyncSummary struct {
	CycleID      string    `json:"cycle_id"`
	Date         string    `json:"date"`
	Pending      int       `json:"pending"`
	Matched      int       `json:"matched"`
	Settled      int       `json:"settled"`
	Voided       int       `json:"voided"`
	NoMatch      int       `json:"no_match"`
	Errors       int       `json:"errors"`
	SkippedStale int       `json:"skipped_stale"`
	SkippedLock  bool      `json:"skipped_lock"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

type SettlementOption func(*SettlementService)

func WithCycleLocker(locker CycleLocker) SettlementOption {
	return func(s *SettlementService) {
		s.locker = locker
	}
}

func WithCycleMetrics(metrics CycleMetrics) SettlementOption {
	return func(s *SettlementService) {
		s.metrics = metrics
	}
}

func WithSettlementClock(now func() time.Time) SettlementOption {
	return func(s *SettlementService) {
		if now != nil {
			s.now = now
		}
	}
}

type SettlementService struct {
	repo    prediction.Repository
	feed    FixtureSource
	matcher *matching.Matcher
	ids     id.Generator
	locker  CycleLocker
	metrics CycleMetrics
	cfg     SettlementConfig
	logger  *logging.Logger
	now     func() time.Time
	running atomic.Bool
	last    atomic.Pointer[SyncSummary]
}

func NewSettlementService(
	repo prediction.Repository,
	feed FixtureSource,
	matcher *matching.Matcher,
	ids id.Generator,
	cfg SettlementConfig,
	logger *logging.Logger,
	opts ...SettlementOption,
) *SettlementService {
	if logger == nil {
		logger = logging.Default()
	}
	if matcher == nil {
		matcher = matching.NewMatcher(matching.DefaultConfig(), nil)
	}
	if ids == nil {
		ids = id.NewUUIDGenerator()
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = defaultSyncWorkerCount
	}
	if cfg.WorkerCount > maxSyncWorkerCount {
		cfg.WorkerCount = maxSyncWorkerCount
	}
	if cfg.KickoffWindow <= 0 {
		cfg.KickoffWindow = matcher.Config().KickoffWindow
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}

	s := &SettlementService{
		repo:    repo,
		feed:    feed,
		matcher: matcher,
		ids:     ids,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// settlementJob is one prediction with its parsed market. parseErr set means
// the market could not be read and the prediction is voided.
type settlementJob struct {
	item      prediction.Prediction
	predicate market.Predicate
	parseErr  error
	dates     []string
}

type taskResult struct {
	outcome      string
	newlyMatched bool
}

// RunCycle runs one matching and settlement pass over every pending and
// matched prediction.
func (s *SettlementService) RunCycle(ctx context.Context, input SyncInput) (SyncSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SettlementService.RunCycle", attribute.String("settlement.date", input.Date))
	defer span.End()

	date := strings.TrimSpace(input.Date)
	if date != "" {
		if _, err := time.Parse(fixture.DateLayout, date); err != nil {
			return SyncSummary{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
		}
	}
	if s.repo == nil || s.feed == nil {
		return SyncSummary{}, fmt.Errorf("%w: settlement dependencies are not configured", ErrDependencyUnavailable)
	}
	if !s.running.CompareAndSwap(false, true) {
		return SyncSummary{}, ErrCycleInProgress
	}
	defer s.running.Store(false)

	startedAt := s.now().UTC()
	if date == "" {
		date = startedAt.Format(fixture.DateLayout)
	}
	cycleID, err := s.ids.NewID()
	if err != nil {
		return SyncSummary{}, fmt.Errorf("generate cycle id: %w", err)
	}
	summary := SyncSummary{CycleID: cycleID, Date: date, StartedAt: startedAt}
	logger := s.logger.With("cycle_id", cycleID, "date", date)

	if s.locker != nil {
		release, acquired, err := s.locker.TryLock(ctx, settlementLockKey, s.cfg.LockTTL)
		switch {
		case err != nil:
			logger.WarnContext(ctx, "cycle lock unavailable, running without it", "error", err)
		case !acquired:
			summary.SkippedLock = true
			summary.FinishedAt = s.now().UTC()
			logger.InfoContext(ctx, "settlement cycle skipped, lock held by another worker")
			s.observeCycle("skipped_lock", summary)
			return summary, nil
		default:
			defer func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := release(releaseCtx); err != nil {
					logger.WarnContext(ctx, "release cycle lock failed", "error", err)
				}
			}()
		}
	}

	selected := 0
	warmed := false
	lists := make(map[string]FixtureList)
	failedDates := make(map[string]struct{})
	var after *prediction.Cursor
	for page := 1; ; page++ {
		items, err := s.repo.SelectPending(ctx, prediction.Filter{Limit: s.cfg.PageSize, After: after})
		if err != nil {
			summary.FinishedAt = s.now().UTC()
			s.observeCycle("failed", summary)
			return summary, fmt.Errorf("%w: select pending predictions: %w", ErrPersistence, err)
		}
		selected += len(items)

		jobs := s.buildJobs(items, date)
		if s.cfg.LiveWarmup && !warmed && hasMatchedJobs(jobs) {
			warmed = true
			if live, err := s.feed.RefreshLive(ctx); err != nil {
				logger.WarnContext(ctx, "live fixture warmup failed", "error", err)
			} else {
				logger.DebugContext(ctx, "live fixtures refreshed", "count", len(live))
			}
		}

		if err := s.settlePage(ctx, logger, jobs, lists, failedDates, &summary); err != nil {
			summary.FinishedAt = s.now().UTC()
			s.observeCycle("failed", summary)
			return summary, err
		}

		if s.cfg.PageSize <= 0 || len(items) < s.cfg.PageSize {
			break
		}
		next := prediction.CursorOf(items[len(items)-1])
		if after != nil && !after.Before(next) {
			logger.WarnContext(ctx, "prediction store ignored the page cursor, stopping pagination", "page", page)
			break
		}
		after = &next
		if ctx.Err() != nil {
			logger.WarnContext(ctx, "settlement cycle canceled between pages", "page", page)
			break
		}
	}

	if pruned := s.feed.Prune(); pruned > 0 {
		logger.DebugContext(ctx, "pruned fixture cache", "entries", pruned)
	}

	summary.FinishedAt = s.now().UTC()
	status := "success"
	if summary.Errors > 0 {
		status = "partial"
	}
	s.observeCycle(status, summary)
	logger.InfoContext(ctx, "settlement cycle finished",
		"selected", selected,
		"matched", summary.Matched,
		"settled", summary.Settled,
		"voided", summary.Voided,
		"no_match", summary.NoMatch,
		"errors", summary.Errors,
		"skipped_stale", summary.SkippedStale,
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)
	return summary, nil
}

func (s *SettlementService) buildJobs(items []prediction.Prediction, fallbackDate string) []settlementJob {
	jobs := make([]settlementJob, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.Status.IsTerminal() {
			continue
		}
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}

		job := settlementJob{item: item}
		job.predicate, job.parseErr = market.ParseForTeams(item.MarketType, item.MarketText, item.HomeTeam, item.AwayTeam)
		if job.parseErr == nil && !item.IsMatched() && job.predicate.Kind != market.KindUnsupported {
			job.dates = s.candidateDates(item, fallbackDate)
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// candidateDates lists the UTC dates covered by the kickoff window around the
// expected kickoff.
func (s *SettlementService) candidateDates(item prediction.Prediction, fallbackDate string) []string {
	if item.ExpectedKickoff == nil || item.ExpectedKickoff.IsZero() {
		return []string{fallbackDate}
	}
	expected := item.ExpectedKickoff.UTC()
	dates := []string{
		expected.Add(-s.cfg.KickoffWindow).Format(fixture.DateLayout),
		expected.Format(fixture.DateLayout),
		expected.Add(s.cfg.KickoffWindow).Format(fixture.DateLayout),
	}
	sort.Strings(dates)
	return compactStrings(dates)
}

// fetchDateLists fetches each needed date once. Malformed payloads become an
// empty list; unavailable dates are returned separately.
// fetchDateLists fetches every date the jobs need that earlier pages of the
// cycle have not already fetched. It returns how many dates newly failed.
func (s *SettlementService) fetchDateLists(
	ctx context.Context,
	logger *logging.Logger,
	jobs []settlementJob,
	lists map[string]FixtureList,
	failed map[string]struct{},
) int {
	needed := make(map[string]struct{})
	for _, job := range jobs {
		for _, date := range job.dates {
			if _, done := lists[date]; done {
				continue
			}
			if _, done := failed[date]; done {
				continue
			}
			needed[date] = struct{}{}
		}
	}
	newlyFailed := 0

	dates := make([]string, 0, len(needed))
	for date := range needed {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		list, err := s.feed.FetchFixturesByDate(ctx, date)
		switch {
		case err == nil:
			lists[date] = list
			if list.Stale {
				logger.WarnContext(ctx, "matching against stale fixture list", "fixture_date", date, "age", list.Age)
			}
		case errors.Is(err, ErrUpstreamMalformed):
			logger.WarnContext(ctx, "malformed fixture list treated as empty", "fixture_date", date, "error", err)
			lists[date] = FixtureList{Date: date}
		default:
			logger.WarnContext(ctx, "fixture list unavailable, predictions deferred", "fixture_date", date, "error", err)
			failed[date] = struct{}{}
			newlyFailed++
		}
	}
	return newlyFailed
}

// settlePage settles one page of predictions and folds the results into summary.
func (s *SettlementService) settlePage(
	ctx context.Context,
	logger *logging.Logger,
	jobs []settlementJob,
	lists map[string]FixtureList,
	failedDates map[string]struct{},
	summary *SyncSummary,
) error {
	summary.Errors += s.fetchDateLists(ctx, logger, jobs, lists, failedDates)

	results, err := s.runJobs(ctx, logger, jobs, lists, failedDates)
	if err != nil {
		return err
	}
	for _, result := range results {
		if result.newlyMatched {
			summary.Matched++
		}
		switch result.outcome {
		case taskSettled:
			summary.Settled++
		case taskVoided:
			summary.Voided++
		case taskNoMatch:
			summary.NoMatch++
			summary.Pending++
		case taskSkippedStale:
			summary.SkippedStale++
		case taskError:
			summary.Errors++
		case taskPending, taskMatched:
			summary.Pending++
		}
		if s.metrics != nil {
			s.metrics.AddPredictionOutcome(result.outcome, 1)
		}
	}
	return nil
}

func (s *SettlementService) runJobs(
	ctx context.Context,
	logger *logging.Logger,
	jobs []settlementJob,
	lists map[string]FixtureList,
	failedDates map[string]struct{},
) ([]taskResult, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(s.cfg.WorkerCount)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]taskResult, len(jobs))
	var workers sync.WaitGroup
	for i, job := range jobs {
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			var catcher panics.Catcher
			catcher.Try(func() {
				results[i] = s.settleOne(ctx, logger, job, lists, failedDates)
			})
			if recovered := catcher.Recovered(); recovered != nil {
				logger.ErrorContext(ctx, "settlement task panicked", "prediction_id", job.item.ID, "panic", recovered.String())
				results[i] = taskResult{outcome: taskError}
			}
		}); err != nil {
			workers.Done()
			workers.Wait()
			return nil, fmt.Errorf("submit task to worker pool: %w", err)
		}
	}
	workers.Wait()
	return results, nil
}

func (s *SettlementService) settleOne(
	ctx context.Context,
	logger *logging.Logger,
	job settlementJob,
	lists map[string]FixtureList,
	failedDates map[string]struct{},
) taskResult {
	item := job.item
	logger = logger.With("prediction_id", item.ID)

	if job.parseErr != nil {
		outcome := settlement.ForParseFailure(job.parseErr)
		return s.writeTerminal(ctx, logger, item, item.FixtureRef, outcome, false)
	}
	if job.predicate.Kind == market.KindUnsupported {
		outcome := settlement.Outcome{Result: settlement.ResultVoid, Reason: "unsupported market: " + job.predicate.Reason}
		return s.writeTerminal(ctx, logger, item, item.FixtureRef, outcome, false)
	}

	ref := item.FixtureRef
	newlyMatched := false
	var listed *fixture.Fixture
	listStale := false

	if !item.IsMatched() {
		var pool []fixture.Fixture
		for _, date := range job.dates {
			if _, failed := failedDates[date]; failed {
				logger.DebugContext(ctx, "prediction deferred, fixture date unavailable", "fixture_date", date)
				return taskResult{outcome: taskPending}
			}
			list := lists[date]
			pool = append(pool, list.Fixtures...)
			listStale = listStale || list.Stale
		}
		candidate, ok := s.matcher.Match(item, dedupeFixtures(pool))
		if !ok {
			logger.DebugContext(ctx, "no fixture matched", "home_team", item.HomeTeam, "away_team", item.AwayTeam)
			return taskResult{outcome: taskNoMatch}
		}
		matchedID := candidate.Fixture.ExternalID
		ref = &matchedID
		newlyMatched = true
		listed = &candidate.Fixture
		logger.InfoContext(ctx, "prediction matched",
			"fixture_id", matchedID,
			"score", candidate.Score,
			"home_score", candidate.HomeScore,
			"away_score", candidate.AwayScore,
		)
	}

	snapshot, found, err := s.feed.FetchFixtureDetail(ctx, *ref)
	switch {
	case err != nil:
		logger.WarnContext(ctx, "fixture detail unavailable", "fixture_id", *ref, "error", err)
		if newlyMatched {
			return s.writeMatched(ctx, logger, item, ref, taskError)
		}
		return taskResult{outcome: taskError}
	case !found && listed != nil:
		snapshot = FixtureSnapshot{Fixture: listed.Clone(), Stale: listStale}
	case !found:
		logger.WarnContext(ctx, "matched fixture no longer known upstream", "fixture_id", *ref)
		return taskResult{outcome: taskPending}
	}

	current := snapshot.Fixture
	outcome := settlement.Evaluate(job.predicate, current)
	if !outcome.IsTerminal() {
		if fixture.IsLiveStatus(current.Status) {
			preview := settlement.Preview(job.predicate, current)
			logger.InfoContext(ctx, "live preview", "fixture_id", *ref, "result", preview.Result, "reason", preview.Reason)
		}
		if newlyMatched {
			return s.writeMatched(ctx, logger, item, ref, taskMatched)
		}
		return taskResult{outcome: taskPending}
	}
	if snapshot.Stale {
		logger.WarnContext(ctx, "terminal outcome from stale fixture not written", "fixture_id", *ref, "age", snapshot.Age)
		if newlyMatched {
			return s.writeMatched(ctx, logger, item, ref, taskSkippedStale)
		}
		return taskResult{outcome: taskSkippedStale}
	}
	return s.writeTerminal(ctx, logger, item, ref, outcome, newlyMatched)
}

func (s *SettlementService) writeMatched(ctx context.Context, logger *logging.Logger, item prediction.Prediction, ref *int64, outcomeOnSuccess string) taskResult {
	if item.Status == prediction.StatusMatched {
		// matched -> matched is not a forward transition; the ref is written
		// together with the terminal status once the fixture settles.
		logger.WarnContext(ctx, "matched prediction has no fixture ref, re-matched in memory only", "fixture_id", *ref)
		if outcomeOnSuccess == taskMatched {
			return taskResult{outcome: taskPending}
		}
		return taskResult{outcome: outcomeOnSuccess}
	}
	res := s.write(ctx, logger, prediction.StatusUpdate{
		ID:             item.ID,
		ExpectedStatus: item.Status,
		Status:         prediction.StatusMatched,
		FixtureRef:     ref,
	})
	if res != "" {
		return taskResult{outcome: res}
	}
	return taskResult{outcome: outcomeOnSuccess, newlyMatched: true}
}

func (s *SettlementService) writeTerminal(
	ctx context.Context,
	logger *logging.Logger,
	item prediction.Prediction,
	ref *int64,
	outcome settlement.Outcome,
	newlyMatched bool,
) taskResult {
	status, ok := outcome.Status()
	if !ok {
		return taskResult{outcome: taskPending}
	}
	res := s.write(ctx, logger, prediction.StatusUpdate{
		ID:             item.ID,
		ExpectedStatus: item.Status,
		Status:         status,
		FixtureRef:     ref,
	})
	if res != "" {
		return taskResult{outcome: res}
	}
	logger.InfoContext(ctx, "prediction settled", "status", status, "result", outcome.Result, "reason", outcome.Reason)
	if status == prediction.StatusVoid {
		return taskResult{outcome: taskVoided, newlyMatched: newlyMatched}
	}
	return taskResult{outcome: taskSettled, newlyMatched: newlyMatched}
}

// write returns "" on success, otherwise the task outcome to report.
func (s *SettlementService) write(ctx context.Context, logger *logging.Logger, update prediction.StatusUpdate) string {
	if ctx.Err() != nil {
		return taskCanceled
	}
	if err := update.Validate(); err != nil {
		logger.ErrorContext(ctx, "refusing invalid status update", "status", update.Status, "error", err)
		return taskError
	}
	if err := s.repo.UpdateStatus(ctx, update); err != nil {
		if errors.Is(err, prediction.ErrStatusConflict) {
			logger.InfoContext(ctx, "prediction already updated by another writer", "status", update.Status)
			return taskConflict
		}
		logger.ErrorContext(ctx, "update prediction status failed", "status", update.Status, "error", fmt.Errorf("%w: %w", ErrPersistence, err))
		return taskError
	}
	return ""
}

// LastSummary returns the summary of the most recent finished cycle.
func (s *SettlementService) LastSummary() (SyncSummary, bool) {
	last := s.last.Load()
	if last == nil {
		return SyncSummary{}, false
	}
	return *last, true
}

func (s *SettlementService) observeCycle(status string, summary SyncSummary) {
	s.last.Store(&summary)
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveCycle(status, summary.FinishedAt.Sub(summary.StartedAt))
}

func hasMatchedJobs(jobs []settlementJob) bool {
	for _, job := range jobs {
		if job.parseErr == nil && job.item.IsMatched() {
			return true
		}
	}
	return false
}

func dedupeFixtures(items []fixture.Fixture) []fixture.Fixture {
	if len(items) < 2 {
		return items
	}
	seen := make(map[int64]struct{}, len(items))
	out := make([]fixture.Fixture, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ExternalID]; ok {
			continue
		}
		seen[item.ExternalID] = struct{}{}
		out = append(out, item)
	}
	return out
}

func compactStrings(values []string) []string {
	out := values[:0]
	for i, value := range values {
		if i > 0 && value == values[i-1] {
			continue
		}
		out = append(out, value)
	}
	return out
}
