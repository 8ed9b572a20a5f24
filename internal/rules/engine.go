// Package rules evaluates an ordered list of independent predicate/action rules
// over a per-run context. Every matching rule fires; a failing rule is logged
// and skipped without affecting the rest of the pass.
package rules

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Rule outcomes reported to the Observer
const (
	OutcomeSkipped = "skipped"
	OutcomeFired   = "fired"
	OutcomeSilent  = "silent"
	OutcomeFailed  = "failed"
)

// Rule pairs a side-effect-free predicate with an action. Then may return nil
// when the predicate matched but nothing needs saying.
type Rule[C any, A any] struct {
	Name string
	When func(C) bool
	Then func(C) *A
}

// Observer receives one outcome per rule per pass; nil disables reporting
type Observer interface {
	ObserveRule(rule, outcome string)
}

// Engine is stateless between passes. Output order is declaration order.
type Engine[C any, A any] struct {
	rules    []Rule[C, A]
	observer Observer
	log      zerolog.Logger
}

// NewEngine creates an engine over a fixed rule list
func NewEngine[C any, A any](rules []Rule[C, A], observer Observer, log zerolog.Logger) *Engine[C, A] {
	return &Engine[C, A]{
		rules:    rules,
		observer: observer,
		log:      log.With().Str("component", "rule_engine").Logger(),
	}
}

// Rules returns the names of the configured rules in evaluation order
func (e *Engine[C, A]) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// Evaluate runs every rule against c and collects the produced alerts
func (e *Engine[C, A]) Evaluate(c C) []A {
	start := time.Now()
	out := make([]A, 0)
	failed := 0

	for _, rule := range e.rules {
		alert, outcome, err := e.apply(rule, c)
		e.observe(rule.Name, outcome)
		if err != nil {
			failed++
			e.log.Error().Err(err).Str("rule", rule.Name).Msg("Rule failed, skipping")
			continue
		}
		if alert != nil {
			out = append(out, *alert)
		}
	}

	e.log.Debug().
		Int("rules", len(e.rules)).
		Int("alerts", len(out)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Rule pass complete")

	return out
}

func (e *Engine[C, A]) apply(rule Rule[C, A], c C) (alert *A, outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			alert = nil
			outcome = OutcomeFailed
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if rule.When == nil || rule.Then == nil {
		return nil, OutcomeFailed, fmt.Errorf("rule %q is incomplete", rule.Name)
	}
	if !rule.When(c) {
		return nil, OutcomeSkipped, nil
	}
	alert = rule.Then(c)
	if alert == nil {
		return nil, OutcomeSilent, nil
	}
	return alert, OutcomeFired, nil
}

func (e *Engine[C, A]) observe(rule, outcome string) {
	if e.observer != nil {
		e.observer.ObserveRule(rule, outcome)
	}
}
