// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"bytes"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Metrics instruments ingestion. The registry is private to the
// ingester; the rendered exposition travels to the gateway through KV
// rather than over a scrape endpoint.
type Metrics struct {
	registry *prometheus.Registry

	FeedDuration        *prometheus.HistogramVec
	PageDuration        *prometheus.HistogramVec
	ActivitiesNonunique *prometheus.CounterVec
	InprogressIngests   prometheus.Gauge

	ActivitiesTotal     *prometheus.GaugeVec
	FeedActivitiesTotal *prometheus.GaugeVec
	AgeMinimum          *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		FeedDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "ingest_feed_duration_seconds",
			Help: "Time to fully rebuild one feed's index.",
		}, []string{"feed_unique_id", "status"}),
		PageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "ingest_page_duration_seconds",
			Help: "Time to process one feed page, by stage.",
		}, []string{"feed_unique_id", "stage"}),
		ActivitiesNonunique: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_activities_nonunique_total",
			Help: "Activities pushed to the backend, counting repeats across rebuilds.",
		}, []string{"feed_unique_id"}),
		InprogressIngests: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_inprogress_ingests_total",
			Help: "Feed rebuilds currently in progress.",
		}),
		ActivitiesTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "elasticsearch_activities_total",
			Help: "Activities in the backend, by whether they are searchable yet.",
		}, []string{"searchable"}),
		FeedActivitiesTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "elasticsearch_feed_activities_total",
			Help: "Activities in the backend per feed, by whether they are searchable yet.",
		}, []string{"feed_unique_id", "searchable"}),
		AgeMinimum: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "elasticsearch_activities_age_minimum_seconds",
			Help: "Seconds since the most recent verification activity was published.",
		}, []string{"verification"}),
	}
}

// Render encodes the registry in the text exposition format, which is
// what the gateway's metrics endpoint serves byte for byte.
func (m *Metrics) Render() ([]byte, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
