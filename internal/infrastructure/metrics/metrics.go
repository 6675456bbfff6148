// Package metrics exposes Prometheus metrics for the engine. The counters
// are fed by subscribing to the domain event bus, so the command and query
// handlers stay unaware of instrumentation.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

const (
	namespace = "brightpath"
	subsystem = "engine"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	answersRecorded *prometheus.CounterVec
	levelShifts     prometheus.Counter
	plansBuilt      prometheus.Counter
	planItems       prometheus.Counter
	slotsExhausted  prometheus.Counter
	statesScored    prometheus.Counter
	usersAtRisk     prometheus.Counter
	actionsIssued   *prometheus.CounterVec
	rewardsHeld     *prometheus.CounterVec
	personaSwitches *prometheus.CounterVec
}

// New creates the metrics set on its own registry, keeping the default Go
// collectors out of the scrape.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	auto := promauto.With(registry)

	return &Metrics{
		registry: registry,

		answersRecorded: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "answers_recorded_total",
			Help:      "Answers recorded into the mastery store, by result",
		}, []string{"result"}),

		levelShifts: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "mastery_level_shifts_total",
			Help:      "Answers that moved a skill across a mastery-level bound",
		}),

		plansBuilt: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "plans_built_total",
			Help:      "Question plans assembled",
		}),

		planItems: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "plan_items_total",
			Help:      "Items served across all plans",
		}),

		slotsExhausted: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "plan_slots_exhausted_total",
			Help:      "Requested plan slots omitted because no content could fill them",
		}),

		statesScored: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "behavioral_states_scored_total",
			Help:      "Behavioral state recomputations",
		}),

		usersAtRisk: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "users_at_risk_total",
			Help:      "Protective at-risk bundle activations",
		}),

		actionsIssued: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "actions_issued_total",
			Help:      "Adaptive actions issued by the policy engine, by type",
		}, []string{"type"}),

		rewardsHeld: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rewards_suppressed_total",
			Help:      "Reward actions withheld by an active cooldown, by type",
		}, []string{"type"}),

		personaSwitches: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "persona_switches_total",
			Help:      "Persona transitions, by target persona",
		}, []string{"to"}),
	}
}

// Handler returns the HTTP handler serving the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// EventSubscriber is the part of the event bus the metrics attach to.
type EventSubscriber interface {
	Subscribe(eventType shared.EventType, handler shared.EventHandler) error
}

// Attach subscribes the counters to the engine's domain events.
func (m *Metrics) Attach(bus EventSubscriber) error {
	subs := map[shared.EventType]shared.EventHandler{
		shared.EventAnswerRecorded: func(event shared.Event) error {
			result, _ := event.Payload()["result"].(string)
			m.answersRecorded.WithLabelValues(result).Inc()
			return nil
		},
		shared.EventLevelShift: func(event shared.Event) error {
			m.levelShifts.Inc()
			return nil
		},
		shared.EventPlanBuilt: func(event shared.Event) error {
			m.plansBuilt.Inc()
			count, _ := event.Payload()["item_count"].(int)
			m.planItems.Add(float64(count))
			if requested, ok := event.Payload()["requested"].(int); ok && requested > count {
				m.slotsExhausted.Add(float64(requested - count))
			}
			return nil
		},
		shared.EventStateRecomputed: func(event shared.Event) error {
			m.statesScored.Inc()
			return nil
		},
		shared.EventUserAtRisk: func(event shared.Event) error {
			m.usersAtRisk.Inc()
			return nil
		},
		shared.EventActionsIssued: func(event shared.Event) error {
			if types, ok := event.Payload()["action_types"].([]string); ok {
				for _, t := range types {
					m.actionsIssued.WithLabelValues(t).Inc()
				}
			}
			if held, ok := event.Payload()["suppressed"].([]string); ok {
				for _, t := range held {
					m.rewardsHeld.WithLabelValues(t).Inc()
				}
			}
			return nil
		},
		shared.EventPersonaSwitched: func(event shared.Event) error {
			to, _ := event.Payload()["to"].(string)
			m.personaSwitches.WithLabelValues(to).Inc()
			return nil
		},
	}

	for eventType, handler := range subs {
		if err := bus.Subscribe(eventType, handler); err != nil {
			return fmt.Errorf("metrics: subscribe %s: %w", eventType, err)
		}
	}
	return nil
}
