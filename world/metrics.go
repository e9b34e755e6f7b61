package world

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "world_frames_total",
		Help: "The total number of completed ticks by world",
	}, []string{"world"})

	entityUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "world_entity_updates_total",
		Help: "The total number of machine updates by world",
	}, []string{"world"})

	entityPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "world_entity_panics_total",
		Help: "The total number of machine updates that panicked by world",
	}, []string{"world"})

	entitiesGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "world_entities",
		Help: "The number of entities currently spawned by world",
	}, []string{"world"})

	tickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "world_tick_duration_seconds",
		Help:    "Wall-clock time spent in Tick by world",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), //nolint:mnd
	}, []string{"world"})
)
