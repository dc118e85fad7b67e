package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/snaka/mioportal/internal/domain"
	"github.com/snaka/mioportal/internal/ports"
)

// ErrRefreshInFlight means a refresh was triggered while another one is
// still running; the trigger is dropped, not queued.
var ErrRefreshInFlight = errors.New("a refresh is already in flight")

const historyMessageLimit = 200

type RefreshOptions struct {
	// Manual credentials take the last rung of the chain. Ignored when
	// empty.
	Manual *domain.Credentials
	// AllowSessionReuse tries the client's existing session first.
	AllowSessionReuse bool
	// AllowStoredFallback consults the credential store when the session is
	// unusable.
	AllowStoredFallback bool
	// PersistManual saves manual credentials after they fetched successfully.
	PersistManual bool
	Trigger       domain.RefreshTrigger
}

type RefreshResult struct {
	Payload domain.AggregatePayload
	Source  domain.CredentialSource
}

type Config struct {
	// MonthlyThresholdGB fires a usage alert when a service's consumed data
	// for the month reaches it. Zero disables the alert.
	MonthlyThresholdGB float64
	// DailyThresholdMB is its per-day counterpart, checked against daily
	// usage pages.
	DailyThresholdMB float64
	// SuccessTTL bounds how long a widget may present the last refresh as
	// current.
	SuccessTTL time.Duration
}

// RefreshService walks the credential priority chain, runs the aggregate
// fetch, and fans the result out to the persistence collaborators. At most
// one refresh runs at a time; concurrent triggers are deduplicated.
type RefreshService struct {
	client    ports.PortalClient
	creds     ports.CredentialStore
	cache     ports.PayloadCache
	snapshots ports.SnapshotStore
	history   ports.HistoryLog
	notifier  ports.Notifier
	clock     ports.Clock
	cfg       Config

	mu         sync.Mutex
	inFlight   bool
	generation uint64
}

func NewRefreshService(
	client ports.PortalClient,
	creds ports.CredentialStore,
	cache ports.PayloadCache,
	snapshots ports.SnapshotStore,
	history ports.HistoryLog,
	notifier ports.Notifier,
	clock ports.Clock,
	cfg Config,
) *RefreshService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &RefreshService{
		client:    client,
		creds:     creds,
		cache:     cache,
		snapshots: snapshots,
		history:   history,
		notifier:  notifier,
		clock:     clock,
		cfg:       cfg,
	}
}

func (s *RefreshService) Refresh(ctx context.Context, opts RefreshOptions) (RefreshResult, error) {
	generation, err := s.begin()
	if err != nil {
		return RefreshResult{}, err
	}

	wasRefreshing := s.markRefreshing(ctx)
	defer s.finish(ctx, wasRefreshing)

	result, err := s.runChain(ctx, opts)
	if err != nil {
		s.logAttempt(ctx, opts.Trigger, false, err.Error())
		return RefreshResult{}, err
	}

	// A refresh superseded while in flight discards its result instead of
	// overwriting data written by a later one.
	if !s.isCurrent(generation) {
		return result, nil
	}

	if err := s.persist(ctx, result.Payload); err != nil {
		s.logAttempt(ctx, opts.Trigger, false, err.Error())
		return RefreshResult{}, err
	}

	s.logAttempt(ctx, opts.Trigger, true, fmt.Sprintf("fetched via %s", result.Source))
	s.alertOnThresholds(ctx, result.Payload)

	return result, nil
}

func (s *RefreshService) begin() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return 0, ErrRefreshInFlight
	}
	s.inFlight = true
	s.generation++
	return s.generation, nil
}

func (s *RefreshService) isCurrent(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == generation
}

func (s *RefreshService) markRefreshing(ctx context.Context) bool {
	wasRefreshing := false
	if snapshot, err := s.snapshots.Load(ctx); err == nil && snapshot != nil {
		wasRefreshing = snapshot.IsRefreshing
	}
	_ = s.snapshots.SetRefreshing(ctx, true)
	return wasRefreshing
}

// finish releases the in-flight slot and clears the refreshing flag, unless
// the flag was already set before we started; then it belongs to someone
// else's refresh and stays.
func (s *RefreshService) finish(ctx context.Context, wasRefreshing bool) {
	if !wasRefreshing {
		_ = s.snapshots.SetRefreshing(ctx, false)
	}

	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// runChain tries the credential sources in priority order. Only a
// credential-classified failure moves to the next rung; anything else, a
// network failure above all, propagates immediately.
func (s *RefreshService) runChain(ctx context.Context, opts RefreshOptions) (RefreshResult, error) {
	if opts.AllowSessionReuse {
		payload, err := s.client.FetchAll(ctx, nil)
		switch {
		case err == nil:
			return RefreshResult{Payload: payload, Source: domain.SourceExistingSession}, nil
		case !credentialFailure(err):
			return RefreshResult{}, err
		}
	}

	if opts.AllowStoredFallback {
		result, done, err := s.tryStored(ctx)
		if done {
			return result, err
		}
	}

	if opts.Manual != nil && opts.Manual.Valid() {
		payload, err := s.client.FetchAll(ctx, opts.Manual)
		if err != nil {
			return RefreshResult{}, err
		}
		if opts.PersistManual {
			if err := s.creds.Save(ctx, *opts.Manual); err != nil {
				return RefreshResult{}, fmt.Errorf("save manual credentials: %w", err)
			}
		}
		return RefreshResult{Payload: payload, Source: domain.SourceManualCredential}, nil
	}

	return RefreshResult{}, domain.ErrMissingCredentials
}

// tryStored attempts the stored-credential rung. done=false means the rung
// was unavailable or the credential was rejected, and the chain continues.
func (s *RefreshService) tryStored(ctx context.Context) (RefreshResult, bool, error) {
	stored, err := s.creds.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return RefreshResult{}, false, nil
		}
		return RefreshResult{}, true, fmt.Errorf("load stored credentials: %w", err)
	}

	payload, err := s.client.FetchAll(ctx, &stored)
	if err == nil {
		return RefreshResult{Payload: payload, Source: domain.SourceStoredCredential}, true, nil
	}

	if domain.IsAuthentication(err) {
		// The stored credential is presumed invalid; drop it and continue.
		if deleteErr := s.creds.Delete(ctx); deleteErr != nil {
			return RefreshResult{}, true, fmt.Errorf("delete rejected stored credentials: %w", deleteErr)
		}
		return RefreshResult{}, false, nil
	}

	return RefreshResult{}, true, err
}

func credentialFailure(err error) bool {
	return domain.IsAuthentication(err) || errors.Is(err, domain.ErrNoActiveSession)
}

func (s *RefreshService) persist(ctx context.Context, payload domain.AggregatePayload) error {
	if err := s.cache.Save(ctx, payload); err != nil {
		return fmt.Errorf("save aggregate payload: %w", err)
	}

	snapshot := snapshotFromPayload(payload, s.clock.Now())
	if s.cfg.SuccessTTL > 0 {
		until := payload.FetchedAt.Add(s.cfg.SuccessTTL)
		snapshot.SuccessUntil = &until
	}
	if current, err := s.snapshots.Load(ctx); err == nil && current != nil {
		snapshot.IsRefreshing = current.IsRefreshing
	}
	if err := s.snapshots.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("save widget snapshot: %w", err)
	}

	return nil
}

func snapshotFromPayload(payload domain.AggregatePayload, now time.Time) domain.WidgetSnapshot {
	snapshot := domain.WidgetSnapshot{UpdatedAt: now}

	if len(payload.Top.Services) > 0 {
		service := payload.Top.Services[0]
		snapshot.PlanName = service.PlanName
		snapshot.RemainingGB = service.RemainingData()
		capacity := service.TotalCapacity
		snapshot.TotalCapacityGB = &capacity
	}
	if len(payload.Bill.Entries) > 0 {
		amount := payload.Bill.Entries[0].TotalAmount
		snapshot.LatestBillYen = &amount
	}

	return snapshot
}

func (s *RefreshService) logAttempt(ctx context.Context, trigger domain.RefreshTrigger, success bool, message string) {
	if trigger == "" {
		trigger = domain.TriggerManual
	}
	_ = s.history.Append(ctx, domain.RefreshRecord{
		At:      s.clock.Now(),
		Trigger: trigger,
		Success: success,
		Message: truncateMessage(message),
	})
}

func truncateMessage(message string) string {
	runes := []rune(message)
	if len(runes) <= historyMessageLimit {
		return message
	}
	return string(runes[:historyMessageLimit])
}

// alertOnThresholds checks monthly consumption against the configured
// threshold. Dedup to once per calendar month lives in the notifier.
func (s *RefreshService) alertOnThresholds(ctx context.Context, payload domain.AggregatePayload) {
	if s.notifier == nil || s.cfg.MonthlyThresholdGB <= 0 {
		return
	}

	for _, service := range payload.Top.Services {
		remaining := service.RemainingData()
		if remaining == nil || service.TotalCapacity <= 0 {
			continue
		}
		used := service.TotalCapacity - *remaining
		if used >= s.cfg.MonthlyThresholdGB {
			_ = s.notifier.NotifyMonthlyThreshold(ctx, used, s.cfg.MonthlyThresholdGB)
			return
		}
	}
}

// CheckDailyUsage raises the daily alert when any line's usage for the most
// recent day reaches the configured threshold.
func (s *RefreshService) CheckDailyUsage(ctx context.Context, services []domain.DailyUsageService) {
	if s.notifier == nil || s.cfg.DailyThresholdMB <= 0 {
		return
	}

	for _, service := range services {
		for _, entry := range service.Entries {
			if !entry.HasData {
				continue
			}
			used := 0.0
			if entry.HighSpeed != nil && entry.HighSpeed.ValueInUnit != nil {
				used += *entry.HighSpeed.ValueInUnit
			}
			if entry.LowSpeed != nil && entry.LowSpeed.ValueInUnit != nil {
				used += *entry.LowSpeed.ValueInUnit
			}
			if used >= s.cfg.DailyThresholdMB {
				_ = s.notifier.NotifyDailyThreshold(ctx, used, s.cfg.DailyThresholdMB)
				return
			}
			break
		}
	}
}
