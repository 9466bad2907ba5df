package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/guildwarden/warden/automod/action"
	"github.com/guildwarden/warden/automod/countstore"
	"github.com/guildwarden/warden/automod/event"
	"github.com/guildwarden/warden/automod/guildconfig"
	"github.com/guildwarden/warden/automod/rule"
	"github.com/guildwarden/warden/automod/rulestore"
	"github.com/guildwarden/warden/automod/status"
	"github.com/guildwarden/warden/automod/wordlist"

	"github.com/gammazero/workerpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("automod/engine")

// runtime for evaluating rule sets against gateway events, and dispatching the resulting moderation actions.
//
// Every field not marked optional must be set; ProcessEvent returns ErrEngineMisconfigured otherwise.
type Engine struct {
	Logger    *slog.Logger
	Configs   *guildconfig.Cache
	WordLists *wordlist.Store
	Rules     rulestore.Store
	Counters  countstore.CountStore
	Sink      action.Sink
	// runs the actions of fired rules (optional). When nil, actions run inline before ProcessEvent returns.
	Dispatcher *workerpool.WorkerPool
	// clock for time constraints (optional)
	Now func() time.Time
}

// ProcessEvent evaluates every applicable rule against one event.
//
// Failures scoped to a rule or to the guild's configuration are logged and counted, and don't fail the event. The returned error only reports a failure to load global rule sets.
func (e *Engine) ProcessEvent(ctx context.Context, evt event.Event) error {
	if err := e.checkFields(); err != nil {
		return err
	}
	return e.process(ctx, evt, e.Dispatcher)
}

var ErrEngineMisconfigured = errors.New("automod engine misconfigured")

func (e *Engine) checkFields() error {
	var missing []string
	if e.Logger == nil {
		missing = append(missing, "Logger")
	}
	if e.Configs == nil {
		missing = append(missing, "Configs")
	}
	if e.WordLists == nil {
		missing = append(missing, "WordLists")
	}
	if e.Rules == nil {
		missing = append(missing, "Rules")
	}
	if e.Counters == nil {
		missing = append(missing, "Counters")
	}
	if e.Sink == nil {
		missing = append(missing, "Sink")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrEngineMisconfigured, strings.Join(missing, ", "))
	}
	return nil
}

// counter events run their actions inline, on whichever goroutine applied the counter change
func (e *Engine) processCounterEvent(ctx context.Context, evt *event.Counter) error {
	return e.process(ctx, evt, nil)
}

func (e *Engine) process(ctx context.Context, evt event.Event, pool *workerpool.WorkerPool) (err error) {
	kind := string(evt.Kind())
	logger := e.Logger.With("kind", kind)
	if gid, ok := evt.GuildID().Get(); ok {
		logger = logger.With("guild", gid)
	}

	// similar to an HTTP server, we want to recover any panics from rule execution
	defer func() {
		if r := recover(); r != nil {
			logger.Error("automod event execution exception", "err", r)
			eventErrorCount.WithLabelValues(kind).Inc()
			err = fmt.Errorf("panic processing %s event: %v", kind, r)
		}
	}()

	if u, ok := evt.(*event.Unrecognized); ok {
		logger.Warn("skipping unrecognized event", "type", u.Type)
		eventSkipCount.WithLabelValues(kind).Inc()
		return nil
	}

	ctx, span := tracer.Start(ctx, "ProcessEvent", trace.WithAttributes(attribute.String("kind", kind)))
	defer span.End()

	start := time.Now()
	defer func() {
		eventProcessCount.WithLabelValues(kind).Inc()
		eventProcessDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	ec, sets, err := e.selectRuleSets(ctx, evt, logger)
	if err != nil {
		eventErrorCount.WithLabelValues(kind).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	fired := 0
	for _, rs := range sets {
		if !rs.Enabled {
			continue
		}
		for i := range rs.Rules {
			r := &rs.Rules[i]
			if !r.Enabled || !r.Trigger.Matches(evt.Kind()) {
				continue
			}
			c := e.newRuleContext(ctx, ec, rs, r)
			if !e.evaluateRule(c) {
				continue
			}
			fired++
			e.runRule(c, pool)
		}
	}
	span.SetAttributes(attribute.Int("rules_fired", fired))
	logger.Debug("processed event", "rule_sets", len(sets), "rules_fired", fired)
	return err
}

// selectRuleSets returns the global rule sets followed by the event's guild rule sets. Guild sets are skipped when the guild's configuration or rules can't be loaded.
func (e *Engine) selectRuleSets(ctx context.Context, evt event.Event, logger *slog.Logger) (*EventContext, []*rule.RuleSet, error) {
	var errs []error
	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}

	sets, err := e.Rules.GlobalRuleSets(ctx)
	if err != nil {
		logger.Error("failed to load global rule sets", "err", err)
		errs = append(errs, fmt.Errorf("loading global rule sets: %w", err))
		sets = nil
	}

	gid, ok := evt.GuildID().Get()
	if !ok {
		return newEventContext(evt, nil, e.WordLists.GlobalLists(), now), sets, errors.Join(errs...)
	}

	lists := e.WordLists.GuildLists(gid)
	cfg, err := e.Configs.Get(ctx, gid)
	if err != nil {
		logger.Warn("failed to load guild config, skipping guild rules", "err", err)
		guildConfigErrorCount.Inc()
		return newEventContext(evt, nil, lists, now), sets, errors.Join(errs...)
	}
	guildSets, err := e.Rules.GuildRuleSets(ctx, gid)
	if err != nil {
		logger.Warn("failed to load guild rule sets, skipping guild rules", "err", err)
		guildConfigErrorCount.Inc()
		return newEventContext(evt, cfg, lists, now), sets, errors.Join(errs...)
	}

	all := make([]*rule.RuleSet, 0, len(sets)+len(guildSets))
	all = append(all, sets...)
	all = append(all, guildSets...)
	return newEventContext(evt, cfg, lists, now), all, errors.Join(errs...)
}

// evaluateRule reports whether a rule fires. Errors and panics are scoped to the rule.
func (e *Engine) evaluateRule(c *RuleContext) (fire bool) {
	defer func() {
		if r := recover(); r != nil {
			c.Logger.Error("rule evaluation exception", "err", r)
			ruleErrorCount.Inc()
			fire = false
		}
	}()

	s := c.Eval(&c.Rule.Conditions)
	if c.Err != nil {
		c.Logger.Warn("rule evaluation failed", "err", c.Err)
		ruleErrorCount.Inc()
		ruleEvaluationCount.WithLabelValues("error").Inc()
		return false
	}
	ruleEvaluationCount.WithLabelValues(s.String()).Inc()
	switch s {
	case status.Met:
		return true
	case status.Unknown:
		return c.Rule.FireOnUnknown
	}
	return false
}

// runRule runs the actions of a fired rule, as one task on the pool when there is one.
func (e *Engine) runRule(c *RuleContext, pool *workerpool.WorkerPool) {
	ruleFiredCount.Inc()
	c.Logger.Info("rule fired", "actions", len(c.Rule.Actions))
	if len(c.Rule.Actions) == 0 {
		return
	}
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				c.Logger.Error("rule action exception", "err", r)
				ruleErrorCount.Inc()
			}
		}()
		c.runActions(c.Rule.Actions, "")
	}
	if pool == nil {
		task()
		return
	}
	// the event's context may be done before the task runs
	c.Ctx = context.WithoutCancel(c.Ctx)
	pool.Submit(task)
}

// Shutdown waits for every submitted action task to complete.
func (e *Engine) Shutdown() {
	if e.Dispatcher != nil {
		e.Dispatcher.StopWait()
	}
}
