package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/txgraph/rollingmedian/internal/config"
	"github.com/txgraph/rollingmedian/pkg/types"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`

	// Window state carried by the emission that fired the alert, or the one
	// that resolved it once State is resolved.
	Seq          uint64    `json:"seq"`
	Median       float64   `json:"median"`
	Participants int       `json:"participants"`
	WindowLen    int       `json:"window_transactions"`
	Watermark    time.Time `json:"watermark"`
}

// observe copies the window state of em onto a.
func (a *Alert) observe(em types.Emission) {
	a.Seq = em.Seq
	a.Median = em.Median
	a.Participants = em.Participants
	a.WindowLen = em.WindowLen
	a.Watermark = em.Watermark
}

// Engine evaluates alert rules against emissions and delivers webhook
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []config.AlertRule
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: rule name
	lastFire map[string]time.Time // last fire time per rule (for cooldown)
	history  []*Alert             // recently resolved alerts

	client  *http.Client
	now     func() time.Time // injectable for deterministic tests
	wg      sync.WaitGroup
	deliver func(a *Alert)
}

// New creates an Engine from the alert configuration.
// An Engine with no rules is valid; Emit becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	e.deliver = e.deliverAll
	return e
}

// SetRules replaces the rule and webhook set. Active alerts for rules that no
// longer exist are dropped without a resolve notification.
func (e *Engine) SetRules(cfg config.AlertsConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = cfg.Rules
	e.webhooks = cfg.Webhooks

	keep := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		keep[r.Name] = true
	}
	for name := range e.active {
		if !keep[name] {
			delete(e.active, name)
		}
	}
}

// Emit implements stream.Sink. It never fails: delivery problems are logged.
func (e *Engine) Emit(_ context.Context, em types.Emission) error {
	e.Evaluate(em)
	return nil
}

// Evaluate tests all configured rules against em.
// Rules that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(em types.Emission) {
	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()
	if len(rules) == 0 {
		return
	}

	now := e.now()
	for _, rule := range rules {
		fires, value := evalCondition(rule.Condition, em)
		if fires {
			e.fire(rule, em, value, now)
		} else {
			e.resolve(rule, em, now)
		}
	}
}

func (e *Engine) fire(rule config.AlertRule, em types.Emission, value float64, now time.Time) {
	e.mu.Lock()
	if _, ok := e.active[rule.Name]; ok {
		e.mu.Unlock()
		return
	}
	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if last, ok := e.lastFire[rule.Name]; ok && now.Sub(last) < cooldown {
		e.mu.Unlock()
		return
	}

	sev := rule.Severity
	if sev == "" {
		sev = "warning"
	}
	a := &Alert{
		ID:       uuid.New().String(),
		RuleName: rule.Name,
		Severity: sev,
		Value:    value,
		Message: fmt.Sprintf("%s: %s (value %.2f) at seq %d",
			rule.Name, rule.Condition, value, em.Seq),
		FiredAt: now,
		State:   StateFiring,
	}
	a.observe(em)
	e.active[rule.Name] = a
	e.lastFire[rule.Name] = now
	alertCopy := *a
	e.mu.Unlock()

	slog.Warn("alert fired",
		"rule", rule.Name,
		"value", value,
		"severity", sev,
		"seq", em.Seq,
	)
	e.async(&alertCopy)
}

func (e *Engine) resolve(rule config.AlertRule, em types.Emission, now time.Time) {
	e.mu.Lock()
	a, ok := e.active[rule.Name]
	if !ok {
		e.mu.Unlock()
		return
	}
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	a.observe(em)
	delete(e.active, rule.Name)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	alertCopy := *a
	e.mu.Unlock()

	slog.Info("alert resolved", "rule", rule.Name, "seq", em.Seq, "median", em.Median)
	e.async(&alertCopy)
}

func (e *Engine) async(a *Alert) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(a)
	}()
}

// Wait blocks until in-flight webhook deliveries finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))
	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}
