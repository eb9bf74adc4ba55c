// SPDX-License-Identifier: MIT

package ussd

import (
	"context"
	"strconv"

	"github.com/sarafrika/camp-ussd/internal/session"
	"github.com/sarafrika/camp-ussd/internal/tracking"
)

func (e *Engine) handleMainMenu(ctx context.Context, sess *session.Session, input string) string {
	switch input {
	case "1":
		e.push(sess, StateSelectCamp, input)
		sess.ResetPagination()
		return e.renderCampList(ctx, sess)
	case "2":
		e.push(sess, StateMyBookings, input)
		return e.renderMyBookings(ctx, sess)
	case "3":
		// Two pushes so backing out of the help menu lands on the help
		// landing state before the main menu, matching the recorded history
		// of older sessions.
		e.push(sess, StateHelp, input)
		e.push(sess, StateHelpMenu, input)
		return renderHelpMenu()
	case "4":
		return exitResponse
	default:
		e.trackValidationError(sess, input, "invalid main menu option")
		return withError("Invalid option. Please try again.", renderMainMenu())
	}
}

func (e *Engine) handleCampSelection(ctx context.Context, sess *session.Session, input string) string {
	names, err := e.gateway.DistinctCampNames(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("camp list fetch failed")
		return technicalDifficulties
	}

	if input == "99" {
		if len(names) > sess.PaginationOffset+e.conf.PageSize {
			sess.AdvancePagination(e.conf.PageSize)
			e.navigate(sess, StateSelectCamp, StateSelectCamp, tracking.NavPagination, input)
		}
		return e.renderCampList(ctx, sess)
	}

	n, err := strconv.Atoi(input)
	if err != nil {
		e.trackValidationError(sess, input, "camp selection not a number")
		return withError("Invalid input. Please enter a number.", e.renderCampList(ctx, sess))
	}
	if n < 1 || n > len(sess.CurrentMenuItems) {
		e.trackValidationError(sess, input, "camp selection out of range")
		return withError("Invalid selection. Please try again.", e.renderCampList(ctx, sess))
	}

	camp, err := e.gateway.CampByName(ctx, sess.CurrentMenuItems[n-1])
	if err != nil {
		return e.renderCampLookupFailure(sess, err)
	}
	sess.Put(keyCampUUID, camp.UUID.String())
	e.push(sess, StateSelectLocation, input)
	return e.renderLocationList(ctx, sess)
}

func (e *Engine) handleLocationSelection(ctx context.Context, sess *session.Session, input string) string {
	n, err := strconv.Atoi(input)
	if err != nil {
		e.trackValidationError(sess, input, "location selection not a number")
		return withError("Invalid input. Please enter a number.", e.renderLocationList(ctx, sess))
	}
	if n < 1 || n > len(sess.CurrentMenuItems) {
		e.trackValidationError(sess, input, "location selection out of range")
		return withError("Invalid selection. Please try again.", e.renderLocationList(ctx, sess))
	}

	sess.Put(keyLocationUUID, sess.CurrentMenuItems[n-1])
	e.push(sess, StateSelectActivity, input)
	sess.ResetPagination()
	return e.renderActivityList(ctx, sess)
}

func (e *Engine) handleActivitySelection(ctx context.Context, sess *session.Session, input string) string {
	if input == "99" {
		camp, err := e.campFromSession(ctx, sess)
		if err != nil {
			return e.renderCampLookupFailure(sess, err)
		}
		activities, err := e.gateway.ActivitiesByCamp(ctx, camp.UUID)
		if err != nil {
			e.logger.Error().Err(err).Msg("activity list fetch failed")
			return technicalDifficulties
		}
		if len(activities) > sess.PaginationOffset+e.conf.PageSize {
			sess.AdvancePagination(e.conf.PageSize)
			e.navigate(sess, StateSelectActivity, StateSelectActivity, tracking.NavPagination, input)
		}
		return e.renderActivityList(ctx, sess)
	}

	n, err := strconv.Atoi(input)
	if err != nil {
		e.trackValidationError(sess, input, "activity selection not a number")
		return withError("Invalid input. Please enter a number.", e.renderActivityList(ctx, sess))
	}
	if n < 1 || n > len(sess.CurrentMenuItems) {
		e.trackValidationError(sess, input, "activity selection out of range")
		return withError("Invalid selection. Please try again.", e.renderActivityList(ctx, sess))
	}

	sess.Put(keyActivityUUID, sess.CurrentMenuItems[n-1])
	e.push(sess, StateEnterFullName, input)
	return promptFullName
}

func (e *Engine) handleFullName(_ context.Context, sess *session.Session, input string) string {
	if len([]rune(input)) < 2 {
		e.trackValidationError(sess, input, "name too short")
		return promptNameTooShort
	}
	sess.Put(keyParticipantName, input)
	e.push(sess, StateEnterAge, input)
	return promptAge
}

func (e *Engine) handleAge(_ context.Context, sess *session.Session, input string) string {
	age, err := strconv.Atoi(input)
	if err != nil {
		e.trackValidationError(sess, input, "age not a number")
		return promptAgeNotANumber
	}
	if age < e.conf.AgeMin || age > e.conf.AgeMax {
		e.trackValidationError(sess, input, "age out of range")
		return e.promptAgeOutOfRange()
	}
	sess.Put(keyParticipantAge, age)
	// Every registrant within the accepted range is a minor, so guardian
	// details are always collected.
	e.push(sess, StateEnterGuardianPhone, input)
	return promptGuardianPhone
}

func (e *Engine) promptAgeOutOfRange() string {
	return "CON Age must be between " + strconv.Itoa(e.conf.AgeMin) + " and " +
		strconv.Itoa(e.conf.AgeMax) + " years. Please try again:\n\n0. Back"
}

func (e *Engine) handleGuardianPhone(_ context.Context, sess *session.Session, input string) string {
	if !ValidPhoneNumber(input) {
		e.trackValidationError(sess, input, "invalid guardian phone")
		return promptInvalidPhone
	}
	sess.Put(keyGuardianPhone, input)
	e.push(sess, StateEnterParticipantPhone, input)
	return promptParticipantPhone
}

func (e *Engine) handleParticipantPhone(ctx context.Context, sess *session.Session, input string) string {
	if !ValidPhoneNumber(input) {
		e.trackValidationError(sess, input, "invalid participant phone")
		return promptInvalidPhone
	}
	sess.Put(keyParticipantPhone, input)
	e.push(sess, StateConfirmRegistration, input)
	return e.renderConfirmation(ctx, sess)
}

func (e *Engine) handleConfirmation(ctx context.Context, sess *session.Session, input string) string {
	switch input {
	case "1":
		return e.commitRegistration(ctx, sess)
	case "2":
		return cancelResponse
	default:
		e.trackValidationError(sess, input, "invalid confirmation option")
		return withError("Invalid option. Please select 1 or 2.", e.renderConfirmation(ctx, sess))
	}
}

func (e *Engine) handleHelpMenu(_ context.Context, sess *session.Session, input string) string {
	switch input {
	case "1":
		e.push(sess, StateHowToRegister, input)
		return renderHowToRegister()
	case "2":
		e.push(sess, StatePaymentInfo, input)
		return renderPaymentInfo()
	case "3":
		e.push(sess, StateContactSupport, input)
		return e.renderContactSupport()
	default:
		e.trackValidationError(sess, input, "invalid help option")
		return withError("Invalid option. Please try again.", renderHelpMenu())
	}
}

// handleBackOnly serves leaf states that accept no forward input; anything
// typed there behaves like "0".
func (e *Engine) handleBackOnly(ctx context.Context, sess *session.Session, input string) string {
	return e.handleBack(ctx, sess, input)
}

func (e *Engine) trackValidationError(sess *session.Session, input, detail string) {
	e.tracker.Interaction(tracking.Interaction{
		SessionID:    sess.SessionID,
		PhoneNumber:  sess.PhoneNumber,
		Type:         tracking.InteractionValidationError,
		CurrentState: sess.CurrentState(),
		Input:        input,
		ErrorMessage: detail,
	})
}
