package planner

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"diet-agent/internal/metrics"
	"diet-agent/internal/shared"
	"diet-agent/internal/user"
)

type memProfiles struct {
	profiles map[string]*user.Profile
	settings map[string]user.Settings
}

func newMemProfiles(profiles ...user.Profile) *memProfiles {
	m := &memProfiles{profiles: map[string]*user.Profile{}, settings: map[string]user.Settings{}}
	for i := range profiles {
		m.profiles[profiles[i].ID] = &profiles[i]
	}
	return m
}

func (m *memProfiles) Get(ctx context.Context, id string) (*user.Profile, error) {
	return m.profiles[id], nil
}

func (m *memProfiles) SettingsOrDefault(ctx context.Context, userID string) (user.Settings, error) {
	if s, ok := m.settings[userID]; ok {
		return s, nil
	}
	return user.DefaultSettings(userID), nil
}

type memPlans struct {
	mu      sync.Mutex
	plans   map[string]*DayPlan
	saves   int
	saveErr error
}

func newMemPlans() *memPlans {
	return &memPlans{plans: map[string]*DayPlan{}}
}

func (m *memPlans) Get(ctx context.Context, userID, date string) (*DayPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plans[userID+"|"+date], nil
}

func (m *memPlans) Save(ctx context.Context, p *DayPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.plans[p.UserID+"|"+p.Date] = p
	return nil
}

func (m *memPlans) ListRecent(ctx context.Context, userID, date string, limit int) ([]DayPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DayPlan
	for _, p := range m.plans {
		if p.UserID == userID && p.Date <= date {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPlans) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// slowStrategy delegates to the template strategy after a delay and counts its calls.
type slowStrategy struct {
	name  string
	delay time.Duration
	calls atomic.Int32
}

func (s *slowStrategy) Name() string { return s.name }

func (s *slowStrategy) Generate(ctx context.Context, req Request) (*Proposal, error) {
	s.calls.Add(1)
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return NewRuleBased().Generate(ctx, req)
}

// gateStrategy blocks its first call until that call is cancelled.
type gateStrategy struct {
	started chan struct{}
	calls   atomic.Int32
}

func (s *gateStrategy) Name() string { return "gate" }

func (s *gateStrategy) Generate(ctx context.Context, req Request) (*Proposal, error) {
	if s.calls.Add(1) == 1 {
		close(s.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return NewRuleBased().Generate(ctx, req)
}

type memRecorder struct {
	mu    sync.Mutex
	metas []shared.AgentMeta
}

func (m *memRecorder) RecordMeta(ctx context.Context, meta shared.AgentMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metas = append(m.metas, meta)
	return nil
}

const testDate = "2026-03-02"

func TestOrchestrator_ConcurrentRequestsShareOneGeneration(t *testing.T) {
	strategy := &slowStrategy{name: "slow", delay: 50 * time.Millisecond}
	plans := newMemPlans()
	o := NewOrchestrator(newMemProfiles(testProfile()), plans, zap.NewNop(),
		OrchestratorConfig{DefaultStrategy: "slow"}, WithStrategy(strategy))

	const callers = 20
	results := make([]*DayPlan, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = o.GetOrCreatePlan(context.Background(), "user-1", testDate)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("Caller %d failed: %v", i, errs[i])
		}
		if results[i].ID != results[0].ID {
			t.Errorf("Caller %d received plan %s, expected %s", i, results[i].ID, results[0].ID)
		}
	}
	if got := strategy.calls.Load(); got != 1 {
		t.Errorf("Expected exactly one generation, got %d", got)
	}
	if plans.Saves() != 1 {
		t.Errorf("Expected exactly one save, got %d", plans.Saves())
	}
	if results[0].Strategy != "slow" || results[0].FellBack {
		t.Errorf("Expected plan from slow without fallback, got %s (fell back: %v)", results[0].Strategy, results[0].FellBack)
	}
}

func TestOrchestrator_ReadyPlanIsReturnedUnchanged(t *testing.T) {
	strategy := &slowStrategy{name: "slow"}
	o := NewOrchestrator(newMemProfiles(testProfile()), newMemPlans(), nil,
		OrchestratorConfig{DefaultStrategy: "slow"}, WithStrategy(strategy))

	first, err := o.GetOrCreatePlan(context.Background(), "user-1", testDate)
	if err != nil {
		t.Fatalf("GetOrCreatePlan failed: %v", err)
	}
	second, err := o.GetOrCreatePlan(context.Background(), "user-1", testDate)
	if err != nil {
		t.Fatalf("GetOrCreatePlan failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("Expected the stored plan %s, got %s", first.ID, second.ID)
	}
	if got := strategy.calls.Load(); got != 1 {
		t.Errorf("Expected the strategy to run once, got %d", got)
	}
}

func TestOrchestrator_RegenerateReplaces(t *testing.T) {
	plans := newMemPlans()
	o := NewOrchestrator(newMemProfiles(testProfile()), plans, nil, OrchestratorConfig{})

	first, err := o.GetOrCreatePlan(context.Background(), "user-1", testDate)
	if err != nil {
		t.Fatalf("GetOrCreatePlan failed: %v", err)
	}
	second, err := o.Regenerate(context.Background(), "user-1", testDate)
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}

	if second.ID == first.ID {
		t.Error("Expected a new plan after regeneration")
	}
	stored, _ := plans.Get(context.Background(), "user-1", testDate)
	if stored.ID != second.ID {
		t.Errorf("Expected the stored plan to be replaced by %s, got %s", second.ID, stored.ID)
	}
	if len(plans.plans) != 1 {
		t.Errorf("Expected one plan for the key, got %d", len(plans.plans))
	}
	if first.Meals["breakfast"].Name == second.Meals["breakfast"].Name {
		t.Errorf("Expected regeneration to rotate breakfast, got %q twice", first.Meals["breakfast"].Name)
	}
}

func TestOrchestrator_RegenerationSupersedesInFlight(t *testing.T) {
	gate := &gateStrategy{started: make(chan struct{})}
	plans := newMemPlans()
	o := NewOrchestrator(newMemProfiles(testProfile()), plans, nil,
		OrchestratorConfig{DefaultStrategy: "gate", Timeout: 5 * time.Second}, WithStrategy(gate))

	type result struct {
		plan *DayPlan
		err  error
	}
	firstCh := make(chan result, 1)
	go func() {
		p, err := o.GetOrCreatePlan(context.Background(), "user-1", testDate)
		firstCh <- result{p, err}
	}()

	select {
	case <-gate.started:
	case <-time.After(2 * time.Second):
		t.Fatal("First generation never started")
	}

	regenerated, err := o.Regenerate(context.Background(), "user-1", testDate)
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}

	var first result
	select {
	case first = <-firstCh:
	case <-time.After(2 * time.Second):
		t.Fatal("First caller never returned")
	}
	if first.err != nil {
		t.Fatalf("Expected the first caller to receive the newer plan, got %v", first.err)
	}
	if first.plan.ID != regenerated.ID {
		t.Errorf("Expected both callers to receive %s, first got %s", regenerated.ID, first.plan.ID)
	}
	stored, _ := plans.Get(context.Background(), "user-1", testDate)
	if stored == nil || stored.ID != regenerated.ID {
		t.Errorf("Expected the latest plan to be stored")
	}
	if plans.Saves() != 1 {
		t.Errorf("Expected the superseded generation not to be saved, got %d saves", plans.Saves())
	}
}

func TestOrchestrator_TimeoutFallsBackToRuleBased(t *testing.T) {
	gen := &MockTextGenerator{content: validPlanJSON, delay: 2 * time.Second}
	reg := prometheus.NewRegistry()
	collectors := metrics.NewCollectors(reg)
	recorder := &memRecorder{}
	profiles := newMemProfiles(testProfile())
	settings := user.DefaultSettings("user-1")
	settings.AIProvider = "groq"
	profiles.settings["user-1"] = settings

	o := NewOrchestrator(profiles, newMemPlans(), zap.NewNop(),
		OrchestratorConfig{Timeout: 50 * time.Millisecond},
		WithStrategy(NewAIStrategy("groq", "llama", gen)),
		WithCollectors(collectors),
		WithRecorder(recorder),
	)

	start := time.Now()
	plan, err := o.GetOrCreatePlan(context.Background(), "user-1", testDate)
	if err != nil {
		t.Fatalf("Expected a fallback plan, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("Expected the timeout to bound generation, took %v", time.Since(start))
	}
	if plan.Strategy != StrategyRuleBased || !plan.FellBack {
		t.Errorf("Expected a rule-based fallback plan, got %s (fell back: %v)", plan.Strategy, plan.FellBack)
	}
	if err := plan.CheckTotals(); err != nil {
		t.Error(err)
	}

	if got := testutil.ToFloat64(collectors.Fallbacks.WithLabelValues("groq", OutcomeTimeout)); got != 1 {
		t.Errorf("Expected one timeout fallback, got %v", got)
	}
	if got := testutil.ToFloat64(collectors.StrategyRuns.WithLabelValues(StrategyRuleBased, OutcomeOK)); got != 1 {
		t.Errorf("Expected one successful rule-based run, got %v", got)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.metas) != 2 {
		t.Fatalf("Expected two recorded attempts, got %d", len(recorder.metas))
	}
	if recorder.metas[0].Outcome != OutcomeTimeout || recorder.metas[1].Outcome != OutcomeOK {
		t.Errorf("Unexpected outcomes %s, %s", recorder.metas[0].Outcome, recorder.metas[1].Outcome)
	}
}

func TestOrchestrator_UnregisteredStrategyFallsBack(t *testing.T) {
	o := NewOrchestrator(newMemProfiles(testProfile()), newMemPlans(), nil,
		OrchestratorConfig{DefaultStrategy: "gemini"})

	plan, err := o.GetOrCreatePlan(context.Background(), "user-1", testDate)
	if err != nil {
		t.Fatalf("GetOrCreatePlan failed: %v", err)
	}
	if plan.Strategy != StrategyRuleBased || !plan.FellBack {
		t.Errorf("Expected a fallback plan, got %s (fell back: %v)", plan.Strategy, plan.FellBack)
	}
}

func TestOrchestrator_Errors(t *testing.T) {
	invalid := testProfile()
	invalid.ID = "user-2"
	invalid.Age = 0

	t.Run("ProfileNotFound", func(t *testing.T) {
		o := NewOrchestrator(newMemProfiles(), newMemPlans(), nil, OrchestratorConfig{})
		_, err := o.GetOrCreatePlan(context.Background(), "missing", testDate)
		if !errors.Is(err, ErrProfileNotFound) {
			t.Errorf("Expected ErrProfileNotFound, got %v", err)
		}
	})

	t.Run("InvalidProfile", func(t *testing.T) {
		plans := newMemPlans()
		o := NewOrchestrator(newMemProfiles(invalid), plans, nil, OrchestratorConfig{})
		_, err := o.GetOrCreatePlan(context.Background(), "user-2", testDate)
		if !errors.Is(err, user.ErrInvalidProfile) {
			t.Errorf("Expected ErrInvalidProfile, got %v", err)
		}
		if plans.Saves() != 0 {
			t.Error("Expected nothing to be stored")
		}
	})

	t.Run("Persistence", func(t *testing.T) {
		plans := newMemPlans()
		plans.saveErr = errors.New("disk full")
		o := NewOrchestrator(newMemProfiles(testProfile()), plans, nil, OrchestratorConfig{})
		_, err := o.GetOrCreatePlan(context.Background(), "user-1", testDate)
		if !errors.Is(err, ErrPersistence) {
			t.Errorf("Expected ErrPersistence, got %v", err)
		}
	})

	t.Run("InvalidDate", func(t *testing.T) {
		o := NewOrchestrator(newMemProfiles(testProfile()), newMemPlans(), nil, OrchestratorConfig{})
		if _, err := o.GetOrCreatePlan(context.Background(), "user-1", "03/02/2026"); err == nil {
			t.Error("Expected an error for a malformed date")
		}
	})

	t.Run("KeyStateIsReleased", func(t *testing.T) {
		o := NewOrchestrator(newMemProfiles(testProfile()), newMemPlans(), nil, OrchestratorConfig{})
		if _, err := o.GetOrCreatePlan(context.Background(), "user-1", testDate); err != nil {
			t.Fatalf("GetOrCreatePlan failed: %v", err)
		}
		deadline := time.Now().Add(time.Second)
		for o.InFlight() != 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if n := o.InFlight(); n != 0 {
			t.Errorf("Expected no key state left, got %d", n)
		}
	})
}
