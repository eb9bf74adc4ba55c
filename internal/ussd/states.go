// SPDX-License-Identifier: MIT

package ussd

// Menu state names, as stored on the session history stack. The wire values
// are stable because sessions serialized by earlier deployments may still be
// live in the store.
const (
	StateMainMenu              = "main_menu"
	StateSelectCamp            = "select_camp"
	StateSelectLocation        = "select_location"
	StateSelectActivity        = "select_activity"
	StateEnterFullName         = "enter_full_name"
	StateEnterAge              = "enter_age"
	StateEnterGuardianPhone    = "enter_guardian_phone"
	StateEnterParticipantPhone = "enter_participant_phone"
	StateConfirmRegistration   = "confirm_registration"
	StateMyBookings            = "my_bookings"
	StateHelp                  = "help"
	StateHelpMenu              = "help_menu"
	StateHowToRegister         = "how_to_register"
	StatePaymentInfo           = "payment_info"
	StateContactSupport        = "contact_support"
)

// Session data keys. Also wire-stable for the same reason.
const (
	keyCampUUID         = "selectedCampUuid"
	keyLocationUUID     = "selectedLocationId"
	keyActivityUUID     = "selectedActivityUuid"
	keyParticipantName  = "participantName"
	keyParticipantAge   = "participantAge"
	keyGuardianPhone    = "guardianPhone"
	keyParticipantPhone = "participantPhone"
)

// isPaginated reports whether a state renders a paginated list, which changes
// how input "0" is interpreted.
func isPaginated(state string) bool {
	return state == StateSelectCamp || state == StateSelectActivity
}
