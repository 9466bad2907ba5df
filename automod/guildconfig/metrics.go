package guildconfig

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_guildconfig_cache_hits",
	Help: "Number of cache hits for guild config lookups",
})

var cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_guildconfig_cache_misses",
	Help: "Number of cache misses for guild config lookups",
})

var requestsCoalesced = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_guildconfig_cache_coalesced",
	Help: "Number of guild config lookups which waited on an in-flight load",
})

var loadErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_guildconfig_cache_load_errors",
	Help: "Number of failed guild config loads from the durable store",
})
