package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors are the Prometheus series of the engine. A nil *Collectors records nothing.
type Collectors struct {
	StrategyRuns      *prometheus.CounterVec
	Fallbacks         *prometheus.CounterVec
	GenerationSeconds *prometheus.HistogramVec
	Dispatches        *prometheus.CounterVec
	StreakUpdates     *prometheus.CounterVec
}

// NewCollectors creates the collectors and registers them with reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		StrategyRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diet_agent_plan_strategy_runs_total",
				Help: "Plan strategy executions by outcome",
			},
			[]string{"strategy", "outcome"},
		),
		Fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diet_agent_plan_fallbacks_total",
				Help: "Plans that fell back to the rule-based strategy",
			},
			[]string{"from", "reason"},
		),
		GenerationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "diet_agent_plan_generation_seconds",
				Help:    "Plan strategy latency",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"strategy"},
		),
		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diet_agent_notifications_total",
				Help: "Notification triggers by result",
			},
			[]string{"trigger", "result"},
		),
		StreakUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diet_agent_streak_updates_total",
				Help: "Streak transitions",
			},
			[]string{"type", "change"},
		),
	}
	reg.MustRegister(c.StrategyRuns, c.Fallbacks, c.GenerationSeconds, c.Dispatches, c.StreakUpdates)
	return c
}

// ObserveStrategy records one strategy execution.
func (c *Collectors) ObserveStrategy(strategy, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.StrategyRuns.WithLabelValues(strategy, outcome).Inc()
	c.GenerationSeconds.WithLabelValues(strategy).Observe(d.Seconds())
}

// Fallback records a switch to the rule-based strategy.
func (c *Collectors) Fallback(from, reason string) {
	if c == nil {
		return
	}
	c.Fallbacks.WithLabelValues(from, reason).Inc()
}

// Dispatch records the result of a notification trigger.
func (c *Collectors) Dispatch(trigger, result string) {
	if c == nil {
		return
	}
	c.Dispatches.WithLabelValues(trigger, result).Inc()
}

// StreakUpdate records a streak transition (started, extended, reset, unchanged, replayed).
func (c *Collectors) StreakUpdate(streakType, change string) {
	if c == nil {
		return
	}
	c.StreakUpdates.WithLabelValues(streakType, change).Inc()
}
