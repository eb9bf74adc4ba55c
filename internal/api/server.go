// SPDX-License-Identifier: MIT

// Package api exposes the HTTP surface: the USSD gateway webhook, the
// payment confirmation callback, health and metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sarafrika/camp-ussd/internal/health"
	"github.com/sarafrika/camp-ussd/internal/session"
	"github.com/sarafrika/camp-ussd/internal/store"
	"github.com/sarafrika/camp-ussd/internal/tracking"
	"github.com/sarafrika/camp-ussd/internal/ussd"
)

// PaymentNotifier sends the payment-settled SMS. Nil disables the
// notification without disabling the callback.
type PaymentNotifier interface {
	SendPaymentConfirmation(ctx context.Context, phone, participantName, reference string, amount float64, organizerContact string) error
}

// Config carries the HTTP-layer settings.
type Config struct {
	ServiceName      string
	RateLimitRPM     int
	OrganizerContact string
}

// Server wires the menu engine, session store and data gateway to HTTP.
type Server struct {
	engine   *ussd.Engine
	sessions *session.Store
	gateway  store.Gateway
	tracker  *tracking.Tracker
	notifier PaymentNotifier
	health   *health.Manager
	conf     Config
	logger   zerolog.Logger
}

func NewServer(
	engine *ussd.Engine,
	sessions *session.Store,
	gateway store.Gateway,
	tracker *tracking.Tracker,
	notifier PaymentNotifier,
	healthMgr *health.Manager,
	conf Config,
	logger zerolog.Logger,
) *Server {
	if conf.ServiceName == "" {
		conf.ServiceName = "camp-ussd"
	}
	return &Server{
		engine:   engine,
		sessions: sessions,
		gateway:  gateway,
		tracker:  tracker,
		notifier: notifier,
		health:   healthMgr,
		conf:     conf,
		logger:   logger,
	}
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(OTelHTTP(s.conf.ServiceName))
	if s.conf.RateLimitRPM > 0 {
		r.Use(RateLimit(s.conf.RateLimitRPM, time.Minute))
	}

	r.Post("/ussd", s.handleUSSD)
	r.Post("/payments/confirmation", s.handlePaymentConfirmation)
	r.Get("/ussd/health", s.health.ServeHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
