// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sarafrika/camp-ussd/internal/log"
	"github.com/sarafrika/camp-ussd/internal/metrics"
	"github.com/sarafrika/camp-ussd/internal/session"
	"github.com/sarafrika/camp-ussd/internal/sms"
	"github.com/sarafrika/camp-ussd/internal/store"
	"github.com/sarafrika/camp-ussd/internal/tracking"
)

// failSafeResponse terminates the dialogue when the backend cannot serve it.
// The gateway only understands CON/END bodies on HTTP 200, so even hard
// faults answer 200.
const failSafeResponse = "END Sorry, we're experiencing technical difficulties. Please try again later."

func writeUSSD(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handleUSSD is the gateway webhook. One call per dialogue leg: load or
// create the session, run the menu engine, persist, answer CON or END.
func (s *Server) handleUSSD(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := r.ParseForm(); err != nil {
		metrics.IncRequest("error")
		writeUSSD(w, failSafeResponse)
		return
	}
	sessionID := r.PostFormValue("sessionId")
	phone := r.PostFormValue("phoneNumber")
	text := r.PostFormValue("text")

	ctx := log.ContextWithSessionID(r.Context(), sessionID)
	logger := log.WithComponentFromContext(ctx, "api")

	if sessionID == "" || phone == "" {
		logger.Warn().Str(log.FieldEvent, "ussd.bad_request").Msg("missing sessionId or phoneNumber")
		metrics.IncRequest("error")
		writeUSSD(w, failSafeResponse)
		return
	}

	sess, err := s.sessions.Load(ctx, sessionID)
	switch {
	case err != nil:
		metrics.IncSessionLoad("error")
		metrics.IncRequest("error")
		logger.Error().Err(err).Str(log.FieldEvent, "session.load_failed").Msg("session store unavailable")
		writeUSSD(w, failSafeResponse)
		return
	case sess == nil:
		metrics.IncSessionLoad("miss")
		sess = session.New(sessionID, phone)
		s.tracker.Session(tracking.SessionEvent{
			SessionID:   sessionID,
			PhoneNumber: phone,
			Type:        tracking.SessionCreated,
			NetworkCode: r.PostFormValue("networkCode"),
			ServiceCode: r.PostFormValue("serviceCode"),
		})
	default:
		metrics.IncSessionLoad("hit")
	}

	prevState := sess.CurrentState()
	response := s.engine.Process(ctx, sess, text)

	outcome := "ok"
	if strings.HasPrefix(response, "END") {
		s.tracker.Session(tracking.SessionEvent{
			SessionID:   sessionID,
			PhoneNumber: phone,
			Type:        tracking.SessionTerminated,
		})
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			// The TTL will reap it; nothing user-visible went wrong.
			logger.Warn().Err(err).Str(log.FieldEvent, "session.delete_failed").Msg("eager session delete failed")
		}
		metrics.IncResponse("end")
	} else {
		if err := s.sessions.Save(ctx, sess); err != nil {
			logger.Error().Err(err).Str(log.FieldEvent, "session.save_failed").Msg("session save failed")
			response = failSafeResponse
			outcome = "error"
			metrics.IncResponse("end")
		} else {
			metrics.IncResponse("con")
		}
	}

	elapsed := time.Since(start)
	s.tracker.Interaction(tracking.Interaction{
		SessionID:     sessionID,
		PhoneNumber:   phone,
		Type:          tracking.InteractionInput,
		CurrentState:  sess.CurrentState(),
		PreviousState: prevState,
		Input:         text,
		Response:      response,
		ProcessingMs:  elapsed.Milliseconds(),
	})
	metrics.IncRequest(outcome)
	metrics.ObserveRequestDuration(elapsed.Seconds())

	writeUSSD(w, response)

	logger.Info().
		Str(log.FieldEvent, "ussd.leg_processed").
		Str(log.FieldPhone, sms.MaskPhone(phone)).
		Str(log.FieldState, sess.CurrentState()).
		Dur("elapsed", elapsed).
		Msg("ussd leg processed")
}

// paymentConfirmation is the callback body posted by the payment provider
// once an STK push settles.
type paymentConfirmation struct {
	BillReference  string  `json:"bill_reference"`
	ReceiptNo      string  `json:"receipt_no"`
	AmountReceived float64 `json:"amount_received"`
	PaymentMethod  string  `json:"payment_method"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handlePaymentConfirmation marks the referenced order paid and notifies the
// participant. Marking is idempotent, so provider retries are safe.
func (s *Server) handlePaymentConfirmation(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	var conf paymentConfirmation
	if err := json.NewDecoder(r.Body).Decode(&conf); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if conf.BillReference == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bill_reference is required"})
		return
	}

	ctx := r.Context()
	order, err := s.gateway.OrderByReference(ctx, conf.BillReference)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn().
			Str(log.FieldReference, conf.BillReference).
			Str(log.FieldEvent, "payment.unknown_reference").
			Msg("payment confirmation for unknown reference")
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown reference"})
		return
	}
	if err != nil {
		logger.Error().Err(err).Str(log.FieldReference, conf.BillReference).Msg("order lookup failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if err := s.gateway.MarkOrderPaid(ctx, conf.BillReference, conf.ReceiptNo); err != nil {
		logger.Error().Err(err).Str(log.FieldReference, conf.BillReference).Msg("marking order paid failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	logger.Info().
		Str(log.FieldReference, conf.BillReference).
		Str("receipt_no", conf.ReceiptNo).
		Str("method", conf.PaymentMethod).
		Float64("amount", conf.AmountReceived).
		Str(log.FieldEvent, "payment.confirmed").
		Msg("order marked paid")

	// Confirmation SMS is best effort; the provider already got its ack.
	if s.notifier != nil {
		reg, err := s.gateway.RegistrationByUUID(ctx, order.Registration)
		if err != nil {
			logger.Error().Err(err).Str(log.FieldReference, conf.BillReference).Msg("registration lookup for payment SMS failed")
		} else {
			amount := conf.AmountReceived
			if amount <= 0 {
				amount = order.Amount
			}
			if err := s.notifier.SendPaymentConfirmation(ctx, reg.ParticipantPhone, reg.ParticipantName,
				conf.BillReference, amount, s.conf.OrganizerContact); err != nil {
				logger.Error().Err(err).Str(log.FieldReference, conf.BillReference).Msg("payment confirmation SMS failed")
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
