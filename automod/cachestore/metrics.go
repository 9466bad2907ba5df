package cachestore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ruleSetLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_rule_set_cache_lookups",
	Help: "Number of rule set cache lookups, by result",
}, []string{"result"})
