package action

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var actionsDeduped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_actions_deduped",
	Help: "Number of action dispatches skipped as duplicates",
}, []string{"kind"})
