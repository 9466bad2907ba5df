package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "automod_event_duration_sec",
	Help: "Total duration of automod event processing",
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_event_processed",
	Help: "Number of events processed",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_event_errors",
	Help: "Number of events which failed processing",
}, []string{"type"})

var eventSkipCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_event_skipped",
	Help: "Number of events skipped without evaluating rules",
}, []string{"type"})

var guildConfigErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_guild_config_errors",
	Help: "Number of events whose guild rules were skipped, because guild config or rules failed to load",
})

var ruleEvaluationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_rule_evaluations",
	Help: "Number of rule evaluations, by resulting status",
}, []string{"status"})

var ruleErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_rule_errors",
	Help: "Number of rules which failed evaluation or action execution",
})

var ruleFiredCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_rules_fired",
	Help: "Number of rules which fired",
})

var actionDispatchCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_actions_dispatched",
	Help: "Number of actions executed successfully",
}, []string{"kind"})

var actionErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_action_errors",
	Help: "Number of actions which failed to resolve or execute",
}, []string{"kind"})
