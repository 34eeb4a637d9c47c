package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"diet-agent/internal/metrics"
	"diet-agent/internal/nutrition"
	"diet-agent/internal/shared"
	"diet-agent/internal/user"
)

const (
	defaultStrategyTimeout = 30 * time.Second
	defaultPriorDays       = 7
)

// Outcome labels of a strategy execution.
const (
	OutcomeOK            = "ok"
	OutcomeUnavailable   = "unavailable"
	OutcomeTimeout       = "timeout"
	OutcomeInvalidOutput = "invalid_output"
	OutcomeError         = "error"
)

// ProfileSource reads the profile and settings of a user.
type ProfileSource interface {
	Get(ctx context.Context, id string) (*user.Profile, error)
	SettingsOrDefault(ctx context.Context, userID string) (user.Settings, error)
}

// PlanStore persists day plans, one per (user, date).
type PlanStore interface {
	Get(ctx context.Context, userID, date string) (*DayPlan, error)
	Save(ctx context.Context, p *DayPlan) error
	ListRecent(ctx context.Context, userID, date string, limit int) ([]DayPlan, error)
}

// AttemptRecorder stores the metadata of every strategy execution.
type AttemptRecorder interface {
	RecordMeta(ctx context.Context, meta shared.AgentMeta) error
}

// OrchestratorConfig holds the tunables of the orchestrator.
type OrchestratorConfig struct {
	// DefaultStrategy is used when the user has not chosen one.
	DefaultStrategy string
	// Timeout bounds a single run of the configured strategy.
	Timeout time.Duration
	// PriorDays is how many recent plans are passed to strategies.
	PriorDays int
}

// Orchestrator produces at most one plan per user and date. It runs the user's strategy with a
// timeout and falls back to the rule-based strategy on any failure.
type Orchestrator struct {
	profiles   ProfileSource
	plans      PlanStore
	strategies map[string]Strategy
	fallback   Strategy
	recorder   AttemptRecorder
	collectors *metrics.Collectors
	logger     *zap.Logger
	cfg        OrchestratorConfig
	now        func() time.Time
	newID      func() string

	mu   sync.Mutex
	keys map[string]*keyState
}

type keyState struct {
	refs     int
	mu       sync.Mutex
	inflight *flight
}

// flight is one generation for a key. done is closed once plan and err are final.
type flight struct {
	done   chan struct{}
	plan   *DayPlan
	err    error
	next   *flight
	cancel context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStrategy registers a strategy under its name.
func WithStrategy(s Strategy) Option {
	return func(o *Orchestrator) {
		o.strategies[s.Name()] = s
	}
}

// WithRecorder stores every strategy execution.
func WithRecorder(r AttemptRecorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithCollectors exports strategy outcomes to Prometheus.
func WithCollectors(c *metrics.Collectors) Option {
	return func(o *Orchestrator) {
		o.collectors = c
	}
}

// WithNow overrides the clock stamped on new plans.
func WithNow(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates an orchestrator. The rule-based strategy is always registered.
func NewOrchestrator(profiles ProfileSource, plans PlanStore, logger *zap.Logger, cfg OrchestratorConfig, opts ...Option) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultStrategyTimeout
	}
	if cfg.PriorDays <= 0 {
		cfg.PriorDays = defaultPriorDays
	}
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = StrategyRuleBased
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rb := NewRuleBased()
	o := &Orchestrator{
		profiles:   profiles,
		plans:      plans,
		strategies: map[string]Strategy{rb.Name(): rb},
		fallback:   rb,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		newID:      uuid.NewString,
		keys:       map[string]*keyState{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GetOrCreatePlan returns the stored plan for the date or generates it. Concurrent callers for the
// same user and date share one generation and receive the same plan.
func (o *Orchestrator) GetOrCreatePlan(ctx context.Context, userID, date string) (*DayPlan, error) {
	if _, err := shared.ParseDate(date); err != nil {
		return nil, err
	}
	if p, err := o.plans.Get(ctx, userID, date); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	} else if p != nil {
		return p, nil
	}

	key := userID + "|" + date
	ks := o.acquire(key)
	defer o.release(key)

	ks.mu.Lock()
	f := ks.inflight
	if f == nil {
		// Another generation may have finished between the first read and the lock.
		p, err := o.plans.Get(ctx, userID, date)
		if err != nil {
			ks.mu.Unlock()
			return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if p != nil {
			ks.mu.Unlock()
			return p, nil
		}
		f = o.start(ctx, key, ks, userID, date)
	}
	ks.mu.Unlock()
	return wait(ctx, f)
}

// Regenerate replaces the plan for the date. A generation already in flight for the key is
// cancelled and its waiters receive the new plan.
func (o *Orchestrator) Regenerate(ctx context.Context, userID, date string) (*DayPlan, error) {
	if _, err := shared.ParseDate(date); err != nil {
		return nil, err
	}
	key := userID + "|" + date
	ks := o.acquire(key)
	defer o.release(key)

	ks.mu.Lock()
	prev := ks.inflight
	f := o.start(ctx, key, ks, userID, date)
	if prev != nil {
		prev.next = f
		prev.cancel()
	}
	ks.mu.Unlock()
	return wait(ctx, f)
}

// InFlight reports how many keys currently hold state.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.keys)
}

func wait(ctx context.Context, f *flight) (*DayPlan, error) {
	select {
	case <-f.done:
		return f.plan, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) acquire(key string) *keyState {
	o.mu.Lock()
	defer o.mu.Unlock()
	ks, ok := o.keys[key]
	if !ok {
		ks = &keyState{}
		o.keys[key] = ks
	}
	ks.refs++
	return ks
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ks, ok := o.keys[key]
	if !ok {
		return
	}
	ks.refs--
	if ks.refs == 0 {
		delete(o.keys, key)
	}
}

// start launches a generation for the key. Callers hold ks.mu.
func (o *Orchestrator) start(ctx context.Context, key string, ks *keyState, userID, date string) *flight {
	gctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &flight{done: make(chan struct{}), cancel: cancel}
	ks.inflight = f

	o.acquire(key)
	go func() {
		defer o.release(key)
		defer cancel()

		plan, err := o.generate(gctx, userID, date)

		ks.mu.Lock()
		if next := f.next; next != nil {
			ks.mu.Unlock()
			<-next.done
			f.plan, f.err = next.plan, next.err
			close(f.done)
			return
		}
		if err == nil {
			if serr := o.plans.Save(context.WithoutCancel(gctx), plan); serr != nil {
				plan, err = nil, fmt.Errorf("%w: %w", ErrPersistence, serr)
			}
		}
		f.plan, f.err = plan, err
		ks.inflight = nil
		close(f.done)
		ks.mu.Unlock()
	}()
	return f
}

func (o *Orchestrator) generate(ctx context.Context, userID, date string) (*DayPlan, error) {
	profile, err := o.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: user %s", ErrProfileNotFound, userID)
	}
	targets, err := nutrition.ComputeTargets(*profile)
	if err != nil {
		return nil, err
	}
	settings, err := o.profiles.SettingsOrDefault(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	prior, err := o.plans.ListRecent(ctx, userID, date, o.cfg.PriorDays)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	req := Request{
		Profile:     *profile,
		Targets:     targets,
		Constraints: ConstraintsFor(*profile),
		PriorDays:   prior,
		Date:        date,
	}

	name := settings.AIProvider
	if name == "" {
		name = o.cfg.DefaultStrategy
	}

	proposal, used, fellBack, err := o.runWithFallback(ctx, name, req)
	if err != nil {
		return nil, err
	}
	plan, err := NewDayPlan(o.newID(), userID, date, proposal, targets, used, o.now())
	if err != nil {
		return nil, err
	}
	plan.FellBack = fellBack
	return plan, nil
}

func (o *Orchestrator) runWithFallback(ctx context.Context, name string, req Request) (*Proposal, string, bool, error) {
	fellBack := false
	if name != StrategyRuleBased {
		var err error
		s, ok := o.strategies[name]
		if !ok {
			err = strategyErr(name, ErrUnavailable, errors.New("strategy not registered"))
		} else {
			var p *Proposal
			p, err = o.attempt(ctx, s, req, o.cfg.Timeout)
			if err == nil {
				return p, s.Name(), false, nil
			}
		}
		if ctx.Err() == nil {
			o.logger.Warn("plan strategy failed, falling back to rule-based",
				zap.String("strategy", name),
				zap.String("user_id", req.Profile.ID),
				zap.String("date", req.Date),
				zap.Error(err),
			)
		}
		o.collectors.Fallback(name, outcomeOf(err))
		fellBack = true
	}

	p, err := o.attempt(ctx, o.fallback, req, 0)
	if err != nil {
		return nil, "", fellBack, err
	}
	return p, o.fallback.Name(), fellBack, nil
}

type attemptResult struct {
	proposal *Proposal
	err      error
}

// attempt runs one strategy. A positive timeout bounds it even if the strategy ignores its context.
func (o *Orchestrator) attempt(ctx context.Context, s Strategy, req Request, timeout time.Duration) (*Proposal, error) {
	start := time.Now()
	var (
		p   *Proposal
		err error
	)
	if timeout > 0 {
		actx, cancel := context.WithTimeout(ctx, timeout)
		ch := make(chan attemptResult, 1)
		go func() {
			p, err := s.Generate(actx, req)
			ch <- attemptResult{p, err}
		}()
		select {
		case r := <-ch:
			p, err = r.proposal, r.err
		case <-actx.Done():
			if errors.Is(actx.Err(), context.DeadlineExceeded) {
				err = strategyErr(s.Name(), ErrTimeout, actx.Err())
			} else {
				err = strategyErr(s.Name(), ErrUnavailable, actx.Err())
			}
		}
		cancel()
	} else {
		p, err = s.Generate(ctx, req)
	}
	if err == nil && p == nil {
		err = strategyErr(s.Name(), ErrInvalidOutput, errors.New("empty proposal"))
	}

	meta := shared.AgentMeta{
		AgentName: s.Name(),
		UserID:    req.Profile.ID,
		Outcome:   outcomeOf(err),
		Latency:   time.Since(start),
	}
	if p != nil {
		meta.Usage = p.Meta.Usage
	}
	o.collectors.ObserveStrategy(meta.AgentName, meta.Outcome, meta.Latency)
	if o.recorder != nil {
		if rerr := o.recorder.RecordMeta(context.WithoutCancel(ctx), meta); rerr != nil {
			o.logger.Warn("failed to record strategy metrics", zap.String("strategy", s.Name()), zap.Error(rerr))
		}
	}
	return p, err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, ErrInvalidOutput):
		return OutcomeInvalidOutput
	case errors.Is(err, ErrUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}
