// SPDX-License-Identifier: MIT

package ussd

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarafrika/camp-ussd/internal/session"
	"github.com/sarafrika/camp-ussd/internal/store"
	"github.com/sarafrika/camp-ussd/internal/tracking"
)

type fakeGateway struct {
	camps      []*store.Camp
	activities map[uuid.UUID][]store.Activity
	regs       []*store.Registration
	orders     []*store.Order

	listErr    error
	regErr     error
	dupsBefore int // CreateOrder returns ErrDuplicateReference this many times
}

func (f *fakeGateway) DistinctCampNames(context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	names := make([]string, 0, len(f.camps))
	for _, c := range f.camps {
		names = append(names, c.Name)
	}
	return names, nil
}

func (f *fakeGateway) CampByName(_ context.Context, name string) (*store.Camp, error) {
	for _, c := range f.camps {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeGateway) CampByUUID(_ context.Context, id uuid.UUID) (*store.Camp, error) {
	for _, c := range f.camps {
		if c.UUID == id {
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeGateway) ActivitiesByCamp(_ context.Context, campID uuid.UUID) ([]store.Activity, error) {
	return f.activities[campID], nil
}

func (f *fakeGateway) LocationByUUID(_ context.Context, id uuid.UUID) (*store.Location, error) {
	for _, c := range f.camps {
		for i := range c.Locations {
			if c.Locations[i].UUID == id {
				return &c.Locations[i], nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeGateway) CreateRegistration(_ context.Context, reg *store.Registration) error {
	if f.regErr != nil {
		return f.regErr
	}
	reg.UUID = uuid.New()
	f.regs = append(f.regs, reg)
	return nil
}

func (f *fakeGateway) RegistrationByUUID(_ context.Context, id uuid.UUID) (*store.Registration, error) {
	for _, r := range f.regs {
		if r.UUID == id {
			return r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeGateway) RegistrationsByPhone(_ context.Context, phone string) ([]store.Registration, error) {
	var out []store.Registration
	for _, r := range f.regs {
		if r.ParticipantPhone == phone {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeGateway) CreateOrder(_ context.Context, order *store.Order) error {
	if f.dupsBefore > 0 {
		f.dupsBefore--
		return store.ErrDuplicateReference
	}
	order.UUID = uuid.New()
	order.Status = store.OrderPending
	cp := *order
	f.orders = append(f.orders, &cp)
	return nil
}

func (f *fakeGateway) OrdersByRegistration(_ context.Context, regID uuid.UUID) ([]store.Order, error) {
	var out []store.Order
	for _, o := range f.orders {
		if o.Registration == regID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeGateway) OrderByReference(_ context.Context, ref string) (*store.Order, error) {
	for _, o := range f.orders {
		if o.ReferenceCode == ref {
			return o, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeGateway) MarkOrderPaid(_ context.Context, ref, paymentRef string) error {
	o, err := f.OrderByReference(context.Background(), ref)
	if err != nil {
		return err
	}
	o.Status = store.OrderPaid
	o.PaymentRef = paymentRef
	return nil
}

type fakeNotifier struct {
	confirmations int
	guardianNotes int
	lastReference string
}

func (f *fakeNotifier) SendRegistrationConfirmation(_ context.Context, _, _, _, ref string) error {
	f.confirmations++
	f.lastReference = ref
	return nil
}

func (f *fakeNotifier) SendGuardianNotification(_ context.Context, _, _, _, _ string) error {
	f.guardianNotes++
	return nil
}

type fakePayments struct {
	prompts int
	amount  float64
}

func (f *fakePayments) InitiatePrompt(_ context.Context, _ string, amount float64, _ string) error {
	f.prompts++
	f.amount = amount
	return nil
}

func testCampFixture() *fakeGateway {
	campID := uuid.New()
	camp := &store.Camp{
		UUID:     campID,
		Name:     "Acacia Camp",
		Category: "Adventure",
		Locations: []store.Location{
			{UUID: uuid.New(), CampUUID: campID, Name: "Karen", Fee: 5000, Dates: "Dec 1-5"},
			{UUID: uuid.New(), CampUUID: campID, Name: "Naivasha", Fee: 7500, Dates: "Dec 8-12"},
		},
	}
	return &fakeGateway{
		camps: []*store.Camp{camp},
		activities: map[uuid.UUID][]store.Activity{
			campID: {
				{UUID: uuid.New(), CampUUID: campID, Name: "Swimming"},
				{UUID: uuid.New(), CampUUID: campID, Name: "Archery"},
			},
		},
	}
}

func newTestEngine(gw *fakeGateway) (*Engine, *fakeNotifier, *fakePayments) {
	notifier := &fakeNotifier{}
	payments := &fakePayments{}
	tracker := tracking.NewTracker(zerolog.Nop())
	e := NewEngine(gw, notifier, payments, tracker, Config{}, zerolog.Nop())
	return e, notifier, payments
}

func newTestSession() *session.Session {
	return session.New("ATUid_1", "254712345678")
}

func TestEmptyInputRendersMainMenu(t *testing.T) {
	e, _, _ := newTestEngine(testCampFixture())
	sess := newTestSession()

	got := e.Process(context.Background(), sess, "")

	require.True(t, strings.HasPrefix(got, "CON Welcome to Camp Sarafrika!"))
	lines := strings.Split(got, "\n")
	var options []string
	for _, l := range lines {
		if len(l) > 1 && l[1] == '.' {
			options = append(options, l)
		}
	}
	require.Len(t, options, 4)
	assert.Equal(t, "4. Exit", options[3])
	assert.Equal(t, StateMainMenu, sess.CurrentState())
	assert.Equal(t, 1, sess.StateHistory.Depth())
}

func TestExitFromMainMenu(t *testing.T) {
	e, _, _ := newTestEngine(testCampFixture())
	sess := newTestSession()
	e.Process(context.Background(), sess, "")

	got := e.Process(context.Background(), sess, "4")

	assert.Equal(t, "END Thank you for using Camp Sarafrika services!", got)
	assert.Equal(t, 1, sess.StateHistory.Depth())
}

func TestInvalidMainMenuOption(t *testing.T) {
	e, _, _ := newTestEngine(testCampFixture())
	sess := newTestSession()
	e.Process(context.Background(), sess, "")

	got := e.Process(context.Background(), sess, "7")

	assert.True(t, strings.HasPrefix(got, "CON Invalid option. Please try again."))
	// No double protocol prefix in the re-rendered body.
	assert.Equal(t, 1, strings.Count(got, "CON "))
	assert.Equal(t, StateMainMenu, sess.CurrentState())
}

func TestAgeValidationRejectsOutOfRange(t *testing.T) {
	e, _, _ := newTestEngine(testCampFixture())
	sess := newTestSession()
	sess.Push(StateEnterAge)

	got := e.Process(context.Background(), sess, "1*...*3")

	assert.Contains(t, got, "Age must be between 5 and 18 years")
	assert.Equal(t, StateEnterAge, sess.CurrentState())

	got = e.Process(context.Background(), sess, "1*...*abc")
	assert.Contains(t, got, "Invalid age")
	assert.Equal(t, StateEnterAge, sess.CurrentState())
}

func TestConfigurableAgePolicy(t *testing.T) {
	gw := testCampFixture()
	tracker := tracking.NewTracker(zerolog.Nop())
	e := NewEngine(gw, &fakeNotifier{}, &fakePayments{}, tracker, Config{AgeMin: 8, AgeMax: 25}, zerolog.Nop())
	sess := newTestSession()
	sess.Push(StateEnterAge)

	got := e.Process(context.Background(), sess, "6")
	assert.Contains(t, got, "Age must be between 8 and 25 years")

	got = e.Process(context.Background(), sess, "21")
	assert.Equal(t, promptGuardianPhone, got)
	assert.Equal(t, StateEnterGuardianPhone, sess.CurrentState())
}

func TestPhoneValidation(t *testing.T) {
	e, _, _ := newTestEngine(testCampFixture())
	sess := newTestSession()
	sess.Push(StateEnterGuardianPhone)

	for _, bad := range []string{"12345", "0812345678", "25571234567", "+2547123456"} {
		got := e.Process(context.Background(), sess, bad)
		assert.Contains(t, got, "Invalid phone number format", bad)
		assert.Equal(t, StateEnterGuardianPhone, sess.CurrentState())
	}

	// Embedded spaces are tolerated.
	got := e.Process(context.Background(), sess, "0712 345 678")
	assert.Equal(t, promptParticipantPhone, got)
}

func TestHappyPathRegistration(t *testing.T) {
	gw := testCampFixture()
	e, notifier, payments := newTestEngine(gw)
	sess := newTestSession()
	ctx := context.Background()

	e.Process(ctx, sess, "")
	got := e.Process(ctx, sess, "1")
	assert.Contains(t, got, "Select a camp:")
	assert.Contains(t, got, "1. Acacia Camp")

	got = e.Process(ctx, sess, "1*1")
	assert.Contains(t, got, "Select Location:")
	assert.Contains(t, got, "1. Karen - KSH 5000")

	got = e.Process(ctx, sess, "1*1*2")
	assert.Contains(t, got, "Select Activity:")
	assert.Contains(t, got, "1. Swimming")

	got = e.Process(ctx, sess, "1*1*2*1")
	assert.Equal(t, promptFullName, got)

	got = e.Process(ctx, sess, "1*1*2*1*John Doe")
	assert.Equal(t, promptAge, got)

	got = e.Process(ctx, sess, "1*1*2*1*John Doe*16")
	assert.Equal(t, promptGuardianPhone, got)

	got = e.Process(ctx, sess, "1*1*2*1*John Doe*16*0722000000")
	assert.Equal(t, promptParticipantPhone, got)

	got = e.Process(ctx, sess, "1*1*2*1*John Doe*16*0722000000*0712345678")
	assert.Contains(t, got, "Registration Summary:")
	assert.Contains(t, got, "Camp: Acacia Camp")
	assert.Contains(t, got, "Location: Naivasha")
	assert.Contains(t, got, "Fee: KSH 7500")

	got = e.Process(ctx, sess, "1*1*2*1*John Doe*16*0722000000*0712345678*1")
	require.True(t, strings.HasPrefix(got, "END Registration successful!"))
	assert.Regexp(t, regexp.MustCompile(`Reference: CS-[A-Z0-9]{8}`), got)

	// Exactly one confirmation and one payment prompt.
	assert.Equal(t, 1, notifier.confirmations)
	assert.Equal(t, 1, notifier.guardianNotes)
	assert.Equal(t, 1, payments.prompts)
	assert.Equal(t, 7500.0, payments.amount)

	require.Len(t, gw.regs, 1)
	assert.Equal(t, "John Doe", gw.regs[0].ParticipantName)
	assert.Equal(t, 16, gw.regs[0].ParticipantAge)
	require.Len(t, gw.orders, 1)
	assert.Equal(t, 7500.0, gw.orders[0].Amount)
	assert.Equal(t, notifier.lastReference, gw.orders[0].ReferenceCode)
}

func TestGuardianSMSSkippedWhenSamePhone(t *testing.T) {
	gw := testCampFixture()
	e, notifier, _ := newTestEngine(gw)
	sess := newTestSession()
	ctx := context.Background()

	sess.Push(StateConfirmRegistration)
	sess.Put(keyCampUUID, gw.camps[0].UUID.String())
	sess.Put(keyLocationUUID, gw.camps[0].Locations[0].UUID.String())
	sess.Put(keyParticipantName, "John Doe")
	sess.Put(keyParticipantAge, 16)
	sess.Put(keyGuardianPhone, "0712345678")
	sess.Put(keyParticipantPhone, "0712345678")

	got := e.Process(ctx, sess, "1")
	require.True(t, strings.HasPrefix(got, "END Registration successful!"))
	assert.Equal(t, 1, notifier.confirmations)
	assert.Equal(t, 0, notifier.guardianNotes)
}

func TestRegistrationCancellation(t *testing.T) {
	gw := testCampFixture()
	e, _, _ := newTestEngine(gw)
	sess := newTestSession()
	sess.Push(StateConfirmRegistration)
	sess.Put(keyCampUUID, gw.camps[0].UUID.String())

	got := e.Process(context.Background(), sess, "2")
	assert.Equal(t, "END Registration cancelled.", got)
}

func TestRegistrationFailureIsGeneric(t *testing.T) {
	gw := testCampFixture()
	gw.regErr = errors.New("db gone")
	e, notifier, payments := newTestEngine(gw)
	sess := newTestSession()
	sess.Push(StateConfirmRegistration)
	sess.Put(keyCampUUID, gw.camps[0].UUID.String())

	got := e.Process(context.Background(), sess, "1")

	assert.Equal(t, "END Registration failed. Please try again later.", got)
	assert.Zero(t, notifier.confirmations)
	assert.Zero(t, payments.prompts)
}

func TestReferenceCodeRegeneratedOnCollision(t *testing.T) {
	gw := testCampFixture()
	gw.dupsBefore = 2
	e, _, _ := newTestEngine(gw)
	sess := newTestSession()
	sess.Push(StateConfirmRegistration)
	sess.Put(keyCampUUID, gw.camps[0].UUID.String())
	sess.Put(keyLocationUUID, gw.camps[0].Locations[0].UUID.String())
	sess.Put(keyParticipantName, "John Doe")
	sess.Put(keyParticipantAge, 12)
	sess.Put(keyParticipantPhone, "0712345678")

	got := e.Process(context.Background(), sess, "1")

	require.True(t, strings.HasPrefix(got, "END Registration successful!"))
	require.Len(t, gw.orders, 1)
	assert.Regexp(t, regexp.MustCompile(`^CS-[A-Z0-9]{8}$`), gw.orders[0].ReferenceCode)
}

func TestBackNavigation(t *testing.T) {
	e, _, _ := newTestEngine(testCampFixture())
	sess := newTestSession()
	ctx := context.Background()

	e.Process(ctx, sess, "")
	e.Process(ctx, sess, "1")
	require.Equal(t, StateSelectCamp, sess.CurrentState())

	got := e.Process(ctx, sess, "1*0")
	assert.True(t, strings.HasPrefix(got, "CON Welcome to Camp Sarafrika!"))
	assert.Equal(t, StateMainMenu, sess.CurrentState())

	// Popping the root is a no-op that re-renders the main menu.
	got = e.Process(ctx, sess, "1*0*0")
	assert.True(t, strings.HasPrefix(got, "CON Welcome to Camp Sarafrika!"))
	assert.Equal(t, 1, sess.StateHistory.Depth())
}

func manyCampsFixture(n int) *fakeGateway {
	gw := &fakeGateway{activities: map[uuid.UUID][]store.Activity{}}
	for i := 0; i < n; i++ {
		campID := uuid.New()
		gw.camps = append(gw.camps, &store.Camp{
			UUID: campID,
			Name: "Camp " + string(rune('A'+i)),
			Locations: []store.Location{
				{UUID: uuid.New(), CampUUID: campID, Name: "Karen", Fee: 1000},
			},
		})
	}
	return gw
}

func TestPaginationContinuousNumbering(t *testing.T) {
	e, _, _ := newTestEngine(manyCampsFixture(5))
	sess := newTestSession()
	ctx := context.Background()

	e.Process(ctx, sess, "")
	got := e.Process(ctx, sess, "1")
	assert.Contains(t, got, "1. Camp A")
	assert.Contains(t, got, "3. Camp C")
	assert.NotContains(t, got, "4. Camp D")
	assert.Contains(t, got, "99. More >>")

	got = e.Process(ctx, sess, "1*99")
	// Numbering continues across the page boundary.
	assert.Contains(t, got, "4. Camp D")
	assert.Contains(t, got, "5. Camp E")
	assert.NotContains(t, got, "1. Camp A")
	assert.NotContains(t, got, "99. More >>")

	// An item from the first page is still selectable by its original number.
	got = e.Process(ctx, sess, "1*99*2")
	assert.Contains(t, got, "Select Location:")
	assert.Equal(t, StateSelectLocation, sess.CurrentState())
}

func TestPaginationZeroMeansPreviousPage(t *testing.T) {
	e, _, _ := newTestEngine(manyCampsFixture(5))
	sess := newTestSession()
	ctx := context.Background()

	e.Process(ctx, sess, "")
	e.Process(ctx, sess, "1")
	e.Process(ctx, sess, "1*99")
	require.Equal(t, 3, sess.PaginationOffset)

	// On a later page "0" rewinds instead of leaving the list.
	got := e.Process(ctx, sess, "1*99*0")
	assert.Contains(t, got, "1. Camp A")
	assert.Equal(t, StateSelectCamp, sess.CurrentState())
	assert.Zero(t, sess.PaginationOffset)

	// At offset zero "0" goes back to the main menu.
	got = e.Process(ctx, sess, "1*99*0*0")
	assert.True(t, strings.HasPrefix(got, "CON Welcome to Camp Sarafrika!"))
	assert.Equal(t, StateMainMenu, sess.CurrentState())
}

func TestSameNumberSelectsSameEntityWithoutRerender(t *testing.T) {
	gw := manyCampsFixture(5)
	e, _, _ := newTestEngine(gw)
	sess := newTestSession()
	ctx := context.Background()

	e.Process(ctx, sess, "")
	e.Process(ctx, sess, "1")
	items := append([]string(nil), sess.CurrentMenuItems...)

	// A selection consults the rendered snapshot and does not mutate it.
	e.Process(ctx, sess, "1*2")
	assert.Equal(t, "Camp B", items[1])
	assert.Equal(t, gw.camps[1].UUID.String(), sess.GetString(keyCampUUID))
}

func TestUnknownStateIsTerminal(t *testing.T) {
	e, _, _ := newTestEngine(testCampFixture())
	sess := newTestSession()
	sess.Push("no_such_state")

	got := e.Process(context.Background(), sess, "1")
	assert.Equal(t, "END Invalid session state. Please try again.", got)
}

func TestHelpSubtree(t *testing.T) {
	e, _, _ := newTestEngine(testCampFixture())
	sess := newTestSession()
	ctx := context.Background()

	e.Process(ctx, sess, "")
	got := e.Process(ctx, sess, "3")
	assert.True(t, strings.HasPrefix(got, "CON Help Menu:"))
	assert.Equal(t, StateHelpMenu, sess.CurrentState())

	got = e.Process(ctx, sess, "3*2")
	assert.True(t, strings.HasPrefix(got, "CON Payment Info:"))
	assert.Equal(t, StatePaymentInfo, sess.CurrentState())

	got = e.Process(ctx, sess, "3*2*0")
	assert.True(t, strings.HasPrefix(got, "CON Help Menu:"))

	got = e.Process(ctx, sess, "3*2*0*3")
	assert.Contains(t, got, "0712-345678")
	assert.Contains(t, got, "support.camp@sarafrika.com")
}

func TestMyBookings(t *testing.T) {
	gw := testCampFixture()
	e, _, _ := newTestEngine(gw)
	ctx := context.Background()

	sess := newTestSession()
	e.Process(ctx, sess, "")
	got := e.Process(ctx, sess, "2")
	assert.Equal(t, "END No bookings found for this number.", got)

	reg := &store.Registration{CampUUID: gw.camps[0].UUID, ParticipantName: "John Doe", ParticipantPhone: "254712345678"}
	require.NoError(t, gw.CreateRegistration(ctx, reg))
	order := &store.Order{Registration: reg.UUID, Amount: 5000, ReferenceCode: "CS-REF00001"}
	require.NoError(t, gw.CreateOrder(ctx, order))
	require.NoError(t, gw.MarkOrderPaid(ctx, "CS-REF00001", "MPESA-1"))

	sess = newTestSession()
	e.Process(ctx, sess, "")
	got = e.Process(ctx, sess, "2")
	assert.Contains(t, got, "Your Bookings:")
	assert.Contains(t, got, "1. Acacia Camp - CLEARED")
	assert.Contains(t, got, "Ref: CS-REF00001")
}

func TestRenderIdempotence(t *testing.T) {
	gw := testCampFixture()
	e, _, _ := newTestEngine(gw)
	sess := newTestSession()
	ctx := context.Background()

	sess.Push(StateSelectCamp)
	sess.Put(keyCampUUID, gw.camps[0].UUID.String())
	sess.Put(keyLocationUUID, gw.camps[0].Locations[0].UUID.String())
	sess.Put(keyParticipantName, "John Doe")
	sess.Put(keyParticipantAge, 16)

	for _, state := range []string{
		StateMainMenu, StateSelectCamp, StateSelectLocation,
		StateConfirmRegistration, StateHelpMenu, StatePaymentInfo,
	} {
		first := e.renderState(ctx, sess, state)
		second := e.renderState(ctx, sess, state)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("state %s re-render differs (-first +second):\n%s", state, diff)
		}
	}
}
