// SPDX-License-Identifier: MIT

package ussd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sarafrika/camp-ussd/internal/log"
	"github.com/sarafrika/camp-ussd/internal/session"
	"github.com/sarafrika/camp-ussd/internal/store"
)

func renderMainMenu() string {
	return NewResponse().
		AddLine("Welcome to Camp Sarafrika!").
		AddEmptyLine().
		AddMenuItem(1, "Register for a Camp", "").
		AddMenuItem(2, "My Bookings", "").
		AddMenuItem(3, "Help", "").
		AddMenuItem(4, "Exit", "").
		Build()
}

// renderCampList shows one page of camp names. Numbering is continuous
// across pages; the session's menu items keep a token for every item shown
// so far in this pagination run, so "7" on page three still selects item 7.
func (e *Engine) renderCampList(ctx context.Context, sess *session.Session) string {
	names, err := e.gateway.DistinctCampNames(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("camp list fetch failed")
		return technicalDifficulties
	}
	if len(names) == 0 {
		return "END No camps are open for registration right now. Please check back later."
	}

	offset := sess.PaginationOffset
	if offset >= len(names) {
		// The list shrank under the caller; start the pagination run over.
		offset = 0
		sess.PaginationOffset = 0
	}
	end := min(offset+e.conf.PageSize, len(names))
	sess.CurrentMenuItems = append([]string(nil), names[:end]...)

	b := NewResponse().AddLine("Select a camp:").AddEmptyLine()
	for i := offset; i < end; i++ {
		b.AddMenuItem(i+1, names[i], "")
	}
	if end < len(names) {
		b.AddMoreOption()
	}
	return b.AddBackOption().Build()
}

func (e *Engine) renderLocationList(ctx context.Context, sess *session.Session) string {
	camp, err := e.campFromSession(ctx, sess)
	if err != nil {
		return e.renderCampLookupFailure(sess, err)
	}
	if len(camp.Locations) == 0 {
		// Nothing to choose; fall through to the activity step.
		e.push(sess, StateSelectActivity, "")
		return e.renderActivityList(ctx, sess)
	}

	b := NewResponse().AddLine("Select Location:").AddEmptyLine()
	sess.CurrentMenuItems = nil
	for i, loc := range camp.Locations {
		b.AddMenuItem(i+1, loc.Name, fmt.Sprintf("KSH %.0f", loc.Fee))
		if loc.Dates != "" {
			b.AddLine("   Dates: " + loc.Dates)
		}
		sess.CurrentMenuItems = append(sess.CurrentMenuItems, loc.UUID.String())
	}
	return b.AddBackOption().Build()
}

// renderActivityList shows one page of the camp's activities, continuous
// numbering as for camps. Camps without activities skip straight to the name
// prompt.
func (e *Engine) renderActivityList(ctx context.Context, sess *session.Session) string {
	camp, err := e.campFromSession(ctx, sess)
	if err != nil {
		return e.renderCampLookupFailure(sess, err)
	}
	activities, err := e.gateway.ActivitiesByCamp(ctx, camp.UUID)
	if err != nil {
		e.logger.Error().Err(err).Msg("activity list fetch failed")
		return technicalDifficulties
	}
	if len(activities) == 0 {
		e.push(sess, StateEnterFullName, "")
		return promptFullName
	}

	offset := sess.PaginationOffset
	if offset >= len(activities) {
		offset = 0
		sess.PaginationOffset = 0
	}
	end := min(offset+e.conf.PageSize, len(activities))
	sess.CurrentMenuItems = sess.CurrentMenuItems[:0]
	for _, a := range activities[:end] {
		sess.CurrentMenuItems = append(sess.CurrentMenuItems, a.UUID.String())
	}

	b := NewResponse().AddLine("Select Activity:").AddEmptyLine()
	for i := offset; i < end; i++ {
		b.AddMenuItem(i+1, activities[i].Name, "")
	}
	if end < len(activities) {
		b.AddMoreOption()
	}
	return b.AddBackOption().Build()
}

func (e *Engine) renderConfirmation(ctx context.Context, sess *session.Session) string {
	camp, err := e.campFromSession(ctx, sess)
	if err != nil {
		return e.renderCampLookupFailure(sess, err)
	}

	locationName := ""
	dates := "Not specified"
	fee := 0.0
	if s := sess.GetString(keyLocationUUID); s != "" {
		if loc := e.locationByString(ctx, s); loc != nil {
			locationName = loc.Name
			fee = loc.Fee
			if loc.Dates != "" {
				dates = loc.Dates
			}
		}
	}
	if locationName == "" && len(camp.Locations) > 0 {
		locationName = camp.Locations[0].Name
		fee = camp.Locations[0].Fee
	}

	// Rendered raw: the summary must always end with the confirm options, so
	// the builder's drop-trailing-lines truncation cannot be used here.
	return fmt.Sprintf(
		"CON Registration Summary:\n\nCamp: %s\nLocation: %s\nDates: %s\nParticipant: %s\nAge: %s\nFee: KSH %.0f\n\n1. Confirm & Pay\n2. Cancel\n\n0. Back",
		camp.Name, locationName, dates,
		sess.GetString(keyParticipantName), sess.GetString(keyParticipantAge), fee)
}

func (e *Engine) renderMyBookings(ctx context.Context, sess *session.Session) string {
	regs, err := e.gateway.RegistrationsByPhone(ctx, sess.PhoneNumber)
	if err != nil {
		e.logger.Error().Err(err).Msg("bookings fetch failed")
		return technicalDifficulties
	}
	if len(regs) == 0 {
		return "END No bookings found for this number."
	}

	b := NewResponse().AddLine("Your Bookings:").AddEmptyLine()
	for i := 0; i < min(len(regs), 3); i++ {
		reg := regs[i]
		status := string(store.OrderPending)
		ref := "N/A"
		if orders, oerr := e.gateway.OrdersByRegistration(ctx, reg.UUID); oerr == nil && len(orders) > 0 {
			status = bookingStatus(orders[0].Status)
			ref = orders[0].ReferenceCode
		}
		campName := "Camp"
		if camp, cerr := e.gateway.CampByUUID(ctx, reg.CampUUID); cerr == nil {
			campName = camp.Name
		}
		b.AddMenuItem(i+1, campName, status)
		b.AddLine("   Ref: " + ref)
	}
	return b.AddBackOption().Build()
}

// bookingStatus maps order states to the caller-facing vocabulary.
func bookingStatus(s store.OrderStatus) string {
	if s == store.OrderPaid {
		return "CLEARED"
	}
	return string(s)
}

func renderHelpMenu() string {
	return "CON Help Menu:\n\n1. How to Register\n2. Payment Info\n3. Contact Support\n\n0. Back"
}

func renderHowToRegister() string {
	return "CON How to Register:\n\nSelect Register for a Camp, pick a camp, location and activity, enter your details, then confirm and pay.\n\n0. Back"
}

func renderPaymentInfo() string {
	return "CON Payment Info:\n\nPayments are made via M-Pesa. After confirming registration you will receive an STK prompt. Enter your PIN to complete.\n\n0. Back"
}

func (e *Engine) renderContactSupport() string {
	return fmt.Sprintf("CON Contact Support:\n\nFor help, call %s or email support.camp@sarafrika.com\n\n0. Back", e.conf.OrganizerContact)
}

// renderCampLookupFailure distinguishes "camp vanished" from infrastructure
// failure; both are terminal for the session.
func (e *Engine) renderCampLookupFailure(sess *session.Session, err error) string {
	e.logger.Error().Err(err).
		Str(log.FieldSessionID, sess.SessionID).
		Msg("selected camp lookup failed")
	if errors.Is(err, store.ErrNotFound) {
		return campNotFoundResponse
	}
	return technicalDifficulties
}

func (e *Engine) locationByString(ctx context.Context, s string) *store.Location {
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	loc, err := e.gateway.LocationByUUID(ctx, id)
	if err != nil {
		return nil
	}
	return loc
}
