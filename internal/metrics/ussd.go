// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus instrumentation for the USSD path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request path metrics
	ussdRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ussd_requests_total",
		Help: "USSD webhook legs processed by outcome",
	}, []string{"outcome"}) // outcome=ok|error

	ussdRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ussd_request_duration_seconds",
		Help:    "End-to-end webhook leg latencies in seconds",
		Buckets: prometheus.DefBuckets,
	})

	ussdResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ussd_responses_total",
		Help: "USSD responses by kind",
	}, []string{"kind"}) // kind=con|end

	// Session store metrics
	sessionLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ussd_session_loads_total",
		Help: "Session store loads by outcome",
	}, []string{"outcome"}) // outcome=hit|miss|error

	// Business metrics
	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ussd_registrations_total",
		Help: "Registrations committed via the USSD flow",
	})

	smsSendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ussd_sms_send_total",
		Help: "SMS send attempts by outcome",
	}, []string{"outcome"}) // outcome=sent|failed

	stkPushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ussd_stk_push_total",
		Help: "STK push initiation attempts by outcome",
	}, []string{"outcome"}) // outcome=ok|failed

	// Tracking pipeline metrics
	trackingQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ussd_tracking_queue_depth",
		Help: "Events currently pending in the tracking queue",
	})

	trackingDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ussd_tracking_dropped_total",
		Help: "Tracking events dropped due to queue overflow",
	})

	trackingPersistTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ussd_tracking_persist_total",
		Help: "Tracking event persistence attempts by outcome",
	}, []string{"outcome"}) // outcome=ok|failed
)

func IncRequest(outcome string)        { ussdRequestsTotal.WithLabelValues(outcome).Inc() }
func ObserveRequestDuration(s float64) { ussdRequestDuration.Observe(s) }
func IncResponse(kind string)          { ussdResponsesTotal.WithLabelValues(kind).Inc() }
func IncSessionLoad(outcome string)    { sessionLoadsTotal.WithLabelValues(outcome).Inc() }
func IncRegistration()                 { registrationsTotal.Inc() }
func IncSMSSend(outcome string)        { smsSendTotal.WithLabelValues(outcome).Inc() }
func IncSTKPush(outcome string)        { stkPushTotal.WithLabelValues(outcome).Inc() }

func TrackingQueueDepth(n int)      { trackingQueueDepth.Set(float64(n)) }
func TrackingDropped()              { trackingDroppedTotal.Inc() }
func TrackingPersist(outcome string) { trackingPersistTotal.WithLabelValues(outcome).Inc() }
