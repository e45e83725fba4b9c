package policy

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/haukened/httpbl/internal/httpbl/common/log"
	"github.com/haukened/httpbl/internal/httpbl/domain"
)

const errCheckerRequired = "checker is required"

// Thresholds decide when a listing is severe enough to deny.
type Thresholds struct {
	// Threat is the minimum threat score that denies.
	Threat int
	// TypeSeverity is the minimum raw type bitmask that denies. The default
	// of 2 covers suspicious visitors and above.
	TypeSeverity int
}

// DefaultThresholds are the thresholds used when none are configured.
var DefaultThresholds = Thresholds{Threat: 20, TypeSeverity: 2}

// Permits reports whether r is allowed. A result is denied only when both
// the threat score and the type bitmask reach their thresholds.
func (t Thresholds) Permits(r domain.LookupResult) bool {
	return !(int(r.ThreatScore) >= t.Threat && int(r.TypeBitmask) >= t.TypeSeverity)
}

// Checker is the lookup capability the evaluator depends on.
type Checker interface {
	Check(ctx context.Context, ip string) domain.LookupResult
}

// Options configures an Evaluator. A nil Thresholds selects DefaultThresholds.
type Options struct {
	Checker    Checker
	Thresholds *Thresholds
	Logger     log.Logger
}

// Evaluator reduces lookups to allow/deny decisions. Thresholds can be
// replaced at runtime; every Allow reads the thresholds current at call time.
type Evaluator struct {
	checker    Checker
	thresholds atomic.Pointer[Thresholds]
	logger     log.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(opts Options) (*Evaluator, error) {
	if opts.Checker == nil {
		return nil, errors.New(errCheckerRequired)
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	t := DefaultThresholds
	if opts.Thresholds != nil {
		t = *opts.Thresholds
	}
	e := &Evaluator{
		checker: opts.Checker,
		logger:  opts.Logger.With(map[string]any{"component": "policy"}),
	}
	e.thresholds.Store(&t)
	return e, nil
}

// Thresholds returns a copy of the thresholds in effect.
func (e *Evaluator) Thresholds() Thresholds {
	return *e.thresholds.Load()
}

// SetThresholds replaces the thresholds for subsequent decisions.
func (e *Evaluator) SetThresholds(t Thresholds) {
	e.thresholds.Store(&t)
	e.logger.Info(map[string]any{
		"threat":        t.Threat,
		"type_severity": t.TypeSeverity,
	}, "Policy thresholds updated")
}

// Permits applies the current thresholds to an already decoded result.
func (e *Evaluator) Permits(r domain.LookupResult) bool {
	return e.Thresholds().Permits(r)
}

// Allow looks ip up and reports whether it should be let through.
func (e *Evaluator) Allow(ctx context.Context, ip string) bool {
	res := e.checker.Check(ctx, ip)
	t := e.Thresholds()
	if t.Permits(res) {
		return true
	}
	e.logger.Info(map[string]any{
		"ip":              ip,
		"threat":          res.ThreatScore,
		"type":            res.TypeBitmask,
		"classifications": res.Labels(),
		"threshold":       t.Threat,
		"type_severity":   t.TypeSeverity,
	}, "Denied listed address")
	return false
}
