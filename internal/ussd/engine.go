// SPDX-License-Identifier: MIT

package ussd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sarafrika/camp-ussd/internal/log"
	"github.com/sarafrika/camp-ussd/internal/metrics"
	"github.com/sarafrika/camp-ussd/internal/session"
	"github.com/sarafrika/camp-ussd/internal/store"
	"github.com/sarafrika/camp-ussd/internal/tracking"
)

// Notifier sends templated SMS messages. Failures are logged and swallowed;
// the registration record, not the notification, is the success signal.
type Notifier interface {
	SendRegistrationConfirmation(ctx context.Context, phone, participantName, campName, reference string) error
	SendGuardianNotification(ctx context.Context, phone, participantName, campName, reference string) error
}

// PaymentInitiator triggers a mobile-money payment prompt on the caller's
// handset. Fire-and-forget from the engine's perspective.
type PaymentInitiator interface {
	InitiatePrompt(ctx context.Context, phone string, amount float64, reference string) error
}

// Config carries the engine's tunable business rules.
type Config struct {
	PageSize         int
	AgeMin           int
	AgeMax           int
	OrganizerContact string
}

// Terminal and prompt texts. Prompt re-renders must be byte-identical across
// legs, so they live here rather than being rebuilt ad hoc.
const (
	exitResponse            = "END Thank you for using Camp Sarafrika services!"
	cancelResponse          = "END Registration cancelled."
	registrationFailed      = "END Registration failed. Please try again later."
	invalidStateResponse    = "END Invalid session state. Please try again."
	campNotFoundResponse    = "END Camp not found."
	technicalDifficulties   = "END Sorry, we're experiencing technical difficulties. Please try again later."
	promptFullName          = "CON Enter participant's full name:\n\n0. Back"
	promptAge               = "CON Enter participant's age:\n\n0. Back"
	promptGuardianPhone     = "CON Enter guardian's phone number:\n\n0. Back"
	promptParticipantPhone  = "CON Enter participant's phone number:\n\n0. Back"
	promptInvalidPhone      = "CON Invalid phone number format. Please enter a valid Kenyan phone number:\n\n0. Back"
	promptNameTooShort      = "CON Name must be at least 2 characters long. Please try again:\n\n0. Back"
	promptAgeNotANumber     = "CON Invalid age. Please enter a valid number:\n\n0. Back"
	registrationSuccessTmpl = "END Registration successful!\n\nReference: %s\n\nPlease complete payment via M-Pesa.\nYou will receive SMS confirmations.\n\nThank you for choosing Camp Sarafrika!"
)

type handlerFunc func(ctx context.Context, sess *session.Session, input string) string

// Engine is the navigation state machine. One Engine serves all sessions;
// all per-caller state lives on the Session.
type Engine struct {
	gateway  store.Gateway
	notifier Notifier
	payments PaymentInitiator
	tracker  *tracking.Tracker
	conf     Config
	logger   zerolog.Logger
	handlers map[string]handlerFunc
}

// NewEngine builds the engine and its state dispatch table.
func NewEngine(gateway store.Gateway, notifier Notifier, payments PaymentInitiator, tracker *tracking.Tracker, conf Config, logger zerolog.Logger) *Engine {
	if conf.PageSize <= 0 {
		conf.PageSize = 3
	}
	if conf.AgeMin <= 0 {
		conf.AgeMin = 5
	}
	if conf.AgeMax <= 0 {
		conf.AgeMax = 18
	}
	if conf.OrganizerContact == "" {
		conf.OrganizerContact = "0712-345678"
	}

	e := &Engine{
		gateway:  gateway,
		notifier: notifier,
		payments: payments,
		tracker:  tracker,
		conf:     conf,
		logger:   logger,
	}
	e.handlers = map[string]handlerFunc{
		StateMainMenu:              e.handleMainMenu,
		StateSelectCamp:            e.handleCampSelection,
		StateSelectLocation:        e.handleLocationSelection,
		StateSelectActivity:        e.handleActivitySelection,
		StateEnterFullName:         e.handleFullName,
		StateEnterAge:              e.handleAge,
		StateEnterGuardianPhone:    e.handleGuardianPhone,
		StateEnterParticipantPhone: e.handleParticipantPhone,
		StateConfirmRegistration:   e.handleConfirmation,
		StateMyBookings:            e.handleBackOnly,
		StateHelp:                  e.handleHelpMenu,
		StateHelpMenu:              e.handleHelpMenu,
		StateHowToRegister:         e.handleBackOnly,
		StatePaymentInfo:           e.handleBackOnly,
		StateContactSupport:        e.handleBackOnly,
	}
	return e
}

// Process advances the session by one leg and returns the response text.
// The session is mutated in place; the caller persists it afterwards.
func (e *Engine) Process(ctx context.Context, sess *session.Session, text string) string {
	if strings.TrimSpace(text) == "" {
		sess.StateHistory.Reset()
		sess.ResetPagination()
		return renderMainMenu()
	}

	// The aggregator resends the whole input history on every leg; only the
	// last asterisk-delimited segment is new.
	parts := strings.Split(text, "*")
	input := strings.TrimSpace(parts[len(parts)-1])

	if input == "0" {
		return e.handleBack(ctx, sess, input)
	}

	state := sess.CurrentState()
	handler, ok := e.handlers[state]
	if !ok {
		e.logger.Error().
			Str(log.FieldSessionID, sess.SessionID).
			Str(log.FieldState, state).
			Msg("unmapped session state")
		return invalidStateResponse
	}

	e.logger.Debug().
		Str(log.FieldSessionID, sess.SessionID).
		Str(log.FieldState, state).
		Str(log.FieldInput, input).
		Msg("dispatching input")
	return handler(ctx, sess, input)
}

// handleBack interprets "0": previous page while inside a paginated list,
// otherwise pop the stack and re-render whatever is now on top. Re-render is
// always from scratch because list contents may have changed.
func (e *Engine) handleBack(ctx context.Context, sess *session.Session, input string) string {
	state := sess.CurrentState()
	if isPaginated(state) && sess.PaginationOffset > 0 {
		sess.RewindPagination(e.conf.PageSize)
		e.navigate(sess, state, state, tracking.NavPagination, input)
		return e.renderState(ctx, sess, state)
	}

	to := sess.Pop()
	if isPaginated(to) {
		sess.ResetPagination()
	}
	e.navigate(sess, state, to, tracking.NavBack, input)
	return e.renderState(ctx, sess, to)
}

// renderState produces the on-enter view for a state. Every back-reachable
// state must render idempotently from the session snapshot alone.
func (e *Engine) renderState(ctx context.Context, sess *session.Session, state string) string {
	switch state {
	case StateMainMenu:
		return renderMainMenu()
	case StateSelectCamp:
		return e.renderCampList(ctx, sess)
	case StateSelectLocation:
		return e.renderLocationList(ctx, sess)
	case StateSelectActivity:
		return e.renderActivityList(ctx, sess)
	case StateEnterFullName:
		return promptFullName
	case StateEnterAge:
		return promptAge
	case StateEnterGuardianPhone:
		return promptGuardianPhone
	case StateEnterParticipantPhone:
		return promptParticipantPhone
	case StateConfirmRegistration:
		return e.renderConfirmation(ctx, sess)
	case StateMyBookings:
		return e.renderMyBookings(ctx, sess)
	case StateHelp, StateHelpMenu:
		return renderHelpMenu()
	case StateHowToRegister:
		return renderHowToRegister()
	case StatePaymentInfo:
		return renderPaymentInfo()
	case StateContactSupport:
		return e.renderContactSupport()
	default:
		return renderMainMenu()
	}
}

func (e *Engine) push(sess *session.Session, to, input string) {
	from := sess.CurrentState()
	sess.Push(to)
	e.navigate(sess, from, to, tracking.NavForward, input)
}

func (e *Engine) navigate(sess *session.Session, from, to string, typ tracking.NavigationType, input string) {
	e.tracker.Navigation(tracking.Navigation{
		SessionID:   sess.SessionID,
		PhoneNumber: sess.PhoneNumber,
		FromState:   from,
		ToState:     to,
		Type:        typ,
		Input:       input,
	})
}

// withError re-renders a prompt with a leading error line. The prefix of the
// underlying render is preserved so an END stays an END.
func withError(message, rendered string) string {
	if rest, ok := strings.CutPrefix(rendered, "CON "); ok {
		return "CON " + message + "\n\n" + rest
	}
	return rendered
}

// campFromSession resolves the camp the caller selected earlier in the flow.
func (e *Engine) campFromSession(ctx context.Context, sess *session.Session) (*store.Camp, error) {
	id, err := uuid.Parse(sess.GetString(keyCampUUID))
	if err != nil {
		return nil, fmt.Errorf("ussd: session camp reference: %w", err)
	}
	return e.gateway.CampByUUID(ctx, id)
}

// commitRegistration is the single side-effecting terminal action of the
// flow. Any failure collapses to a generic terminal response without leaking
// detail to the caller.
func (e *Engine) commitRegistration(ctx context.Context, sess *session.Session) string {
	msg, err := e.register(ctx, sess)
	if err != nil {
		e.logger.Error().Err(err).
			Str(log.FieldSessionID, sess.SessionID).
			Msg("registration commit failed")
		e.tracker.Interaction(tracking.Interaction{
			SessionID:    sess.SessionID,
			PhoneNumber:  sess.PhoneNumber,
			Type:         tracking.InteractionError,
			CurrentState: sess.CurrentState(),
			ErrorMessage: err.Error(),
		})
		return registrationFailed
	}
	return msg
}

func (e *Engine) register(ctx context.Context, sess *session.Session) (string, error) {
	camp, err := e.campFromSession(ctx, sess)
	if err != nil {
		return "", err
	}

	age, _ := sess.GetInt(keyParticipantAge)
	reg := &store.Registration{
		CampUUID:         camp.UUID,
		ParticipantName:  sess.GetString(keyParticipantName),
		ParticipantAge:   age,
		ParticipantPhone: sess.GetString(keyParticipantPhone),
		GuardianPhone:    sess.GetString(keyGuardianPhone),
		CreatedBy:        "USSD_SYSTEM",
	}
	if err := e.gateway.CreateRegistration(ctx, reg); err != nil {
		return "", err
	}

	var amount float64
	var locationID uuid.UUID
	if s := sess.GetString(keyLocationUUID); s != "" {
		if id, perr := uuid.Parse(s); perr == nil {
			locationID = id
			loc, lerr := e.gateway.LocationByUUID(ctx, id)
			if lerr != nil {
				return "", lerr
			}
			amount = loc.Fee
		}
	}
	var activityID uuid.UUID
	if s := sess.GetString(keyActivityUUID); s != "" {
		if id, perr := uuid.Parse(s); perr == nil {
			activityID = id
		}
	}

	order := &store.Order{
		Registration: reg.UUID,
		ActivityUUID: activityID,
		LocationUUID: locationID,
		Amount:       amount,
	}
	var orderErr error
	for attempt := 0; attempt < 5; attempt++ {
		order.ReferenceCode = NewReferenceCode()
		orderErr = e.gateway.CreateOrder(ctx, order)
		if orderErr == nil || !errors.Is(orderErr, store.ErrDuplicateReference) {
			break
		}
	}
	if orderErr != nil {
		return "", orderErr
	}

	metrics.IncRegistration()
	e.logger.Info().
		Str(log.FieldSessionID, sess.SessionID).
		Str(log.FieldReference, order.ReferenceCode).
		Msg("registration created")

	e.sendNotifications(ctx, sess, camp.Name, order)

	return fmt.Sprintf(registrationSuccessTmpl, order.ReferenceCode), nil
}

// sendNotifications fires the confirmation SMS, the guardian SMS when the
// guardian's number differs, and the payment prompt. All failures are logged
// and swallowed; the caller has already been told it worked.
func (e *Engine) sendNotifications(ctx context.Context, sess *session.Session, campName string, order *store.Order) {
	participantPhone := sess.GetString(keyParticipantPhone)
	guardianPhone := sess.GetString(keyGuardianPhone)
	name := sess.GetString(keyParticipantName)

	if e.notifier != nil {
		if err := e.notifier.SendRegistrationConfirmation(ctx, participantPhone, name, campName, order.ReferenceCode); err != nil {
			e.logger.Warn().Err(err).
				Str(log.FieldReference, order.ReferenceCode).
				Msg("confirmation sms failed")
		}
		if guardianPhone != "" && guardianPhone != participantPhone {
			if err := e.notifier.SendGuardianNotification(ctx, guardianPhone, name, campName, order.ReferenceCode); err != nil {
				e.logger.Warn().Err(err).
					Str(log.FieldReference, order.ReferenceCode).
					Msg("guardian sms failed")
			}
		}
	}
	if e.payments != nil {
		if err := e.payments.InitiatePrompt(ctx, participantPhone, order.Amount, order.ReferenceCode); err != nil {
			e.logger.Warn().Err(err).
				Str(log.FieldReference, order.ReferenceCode).
				Msg("payment prompt failed")
		}
	}
}
