package service

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/munreg/internal/docstore"
	"github.com/iliyamo/munreg/internal/mailer"
	"github.com/iliyamo/munreg/internal/model"
	"github.com/iliyamo/munreg/internal/repository"
	"github.com/iliyamo/munreg/internal/validation"
)

type seatFixture struct {
	svc        *SeatService
	store      docstore.Store
	committees *countingCommittees
	renderer   *stubRenderer
	uploader   *memUploader
	mail       *mailer.Console
	journal    *memJournal
	publisher  *memPublisher
	id         string
}

func newSeatFixture(t *testing.T) *seatFixture {
	t.Helper()
	store := docstore.NewMemory()
	f := &seatFixture{
		store:      store,
		committees: &countingCommittees{CommitteeRepo: repository.NewCommitteeRepo(store)},
		renderer:   &stubRenderer{},
		uploader:   &memUploader{},
		mail:       mailer.NewConsole(),
		journal:    &memJournal{},
		publisher:  &memPublisher{},
	}
	f.id = seedCommittee(store, model.Committee{
		Name:  "Security Council",
		Seats: 4,
		SeatsList: model.SeatList{
			{Name: "France", Available: true},
			{Name: "China", Available: true},
			{Name: "Chile", Available: false},
			{Name: "Kenya", Available: true},
		},
		IsDoubleSeat: true,
	})
	f.svc = NewSeatService(SeatDeps{
		Committees: f.committees,
		Rates:      &fixedRate{rate: 180},
		Journal:    f.journal,
		Renderer:   f.renderer,
		Uploader:   f.uploader,
		Sender:     f.mail,
		Publisher:  f.publisher,
	})
	f.svc.Now = func() time.Time { return time.UnixMilli(1700000000000).UTC() }
	return f
}

func (f *seatFixture) seats(t *testing.T) model.SeatList {
	c, err := f.committees.CommitteeRepo.Get(context.Background(), f.id)
	require.NoError(t, err)
	return c.SeatsList
}

func validRequest(id string) AssignRequest {
	return AssignRequest{
		CommitteeID:    id,
		SeatIndices:    []int{0, 3, 0},
		RecipientName:  "Ana María Ruiz",
		RecipientEmail: "ana@mun.org",
		Confirmed:      true,
	}
}

func TestAssignPreconditionsMakeNoRemoteCalls(t *testing.T) {
	f := newSeatFixture(t)
	cases := map[string]struct {
		mutate func(*AssignRequest)
		field  string
	}{
		"no seats": {func(r *AssignRequest) { r.SeatIndices = nil }, "seatIndices"},
		"no name":  {func(r *AssignRequest) { r.RecipientName = "  " }, "recipientName"},
		"no email": {func(r *AssignRequest) { r.RecipientEmail = "" }, "recipientEmail"},
		"no name before no email": {func(r *AssignRequest) {
			r.RecipientName, r.RecipientEmail = "", ""
		}, "recipientName"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest(f.id)
			tc.mutate(&req)
			_, err := f.svc.Assign(context.Background(), req)
			var verrs validation.Errors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tc.field, verrs[0].Field)
		})
	}
	assert.Zero(t, f.committees.calls)
	assert.Zero(t, f.renderer.calls)
	assert.Empty(t, f.mail.Sent())
	assert.Empty(t, f.journal.entries)
	assert.Empty(t, f.uploader.paths)
	assert.Empty(t, f.publisher.events)
}

func TestAssignRequiresConfirmation(t *testing.T) {
	f := newSeatFixture(t)
	req := validRequest(f.id)
	req.Confirmed = false

	_, err := f.svc.Assign(context.Background(), req)
	assert.True(t, errors.Is(err, ErrConfirmationRequired))
	var ce *ConfirmationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "Assign 2 seat(s) to Ana María Ruiz (ana@mun.org)?", ce.Prompt)
	assert.Zero(t, f.committees.calls)
}

func TestAssignMarksExactlySelectedSeats(t *testing.T) {
	f := newSeatFixture(t)
	before := f.seats(t)

	res, err := f.svc.Assign(context.Background(), validRequest(f.id))
	require.NoError(t, err)

	after := f.seats(t)
	for i := range after {
		if i == 0 || i == 3 {
			assert.False(t, after[i].Available, "seat %d", i)
			continue
		}
		assert.Equal(t, before[i].Available, after[i].Available, "seat %d", i)
	}
	st := after.Stats()
	assert.Equal(t, st.Total, st.Available+st.Occupied)
	assert.Equal(t, 1, st.Available)

	assert.Equal(t, uint64(2), res.Committee.Revision)
	assert.Equal(t, after, res.Committee.SeatsList)
	assert.Equal(t, []string{"Security Council - France", "Security Council - Kenya"}, res.Record.SeatsRequested)
	assert.Equal(t, "Ana", res.Record.UserFirstName)
	assert.Equal(t, "María Ruiz", res.Record.UserLastName)
	assert.Equal(t, 2, res.Record.Seats)
	assert.False(t, res.Record.UserIsFaculty)
	assert.Equal(t, "manual-Security Council-1700000000000", res.Record.TransactionID)
	assert.Equal(t, "https://files.test/assignments/Security-Council-1700000000000.pdf", res.ReceiptURL)
	assert.Equal(t, 180.0, f.renderer.rate)

	sent := f.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana@mun.org", sent[0].To)
	assert.Contains(t, sent[0].Text, "Seat assignment for Security Council")

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, []int{0, 3}, f.publisher.events[0].SeatIndices)

	require.Len(t, res.Steps, 7)
	for _, s := range res.Steps {
		assert.Equal(t, model.StepDone, s.Status, s.Name)
	}
	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, model.AssignmentCompleted, f.journal.entries[0].Status)
}

func TestAssignEmailFailureLeavesSeatsUntouched(t *testing.T) {
	f := newSeatFixture(t)
	f.mail.Err = errBoom
	before := f.seats(t)

	_, err := f.svc.Assign(context.Background(), validRequest(f.id))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBoom))

	var se *SagaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StepSendEmail, se.Failed)
	status := map[string]string{}
	for _, s := range se.Steps {
		status[s.Name] = s.Status
	}
	assert.Equal(t, model.StepDone, status[StepUploadReceipt])
	assert.Equal(t, model.StepFailed, status[StepSendEmail])
	assert.Equal(t, model.StepSkipped, status[StepPersistSeats])
	assert.Equal(t, model.StepSkipped, status[StepPublishEvent])

	assert.Equal(t, before, f.seats(t))
	assert.Len(t, f.uploader.paths, 1)
	assert.Empty(t, f.publisher.events)
	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, model.AssignmentFailed, f.journal.entries[0].Status)
	assert.Equal(t, StepSendEmail, f.journal.entries[0].FailedStep)
}

func TestAssignUploadFailureSendsNoEmail(t *testing.T) {
	f := newSeatFixture(t)
	f.uploader.err = errBoom

	_, err := f.svc.Assign(context.Background(), validRequest(f.id))
	var se *SagaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StepUploadReceipt, se.Failed)
	assert.Empty(t, f.mail.Sent())
}

func TestAssignPublishFailureDoesNotFail(t *testing.T) {
	f := newSeatFixture(t)
	f.publisher.err = errBoom

	res, err := f.svc.Assign(context.Background(), validRequest(f.id))
	require.NoError(t, err)
	assert.Equal(t, model.StepFailed, res.Steps[6].Status)
	assert.False(t, f.seats(t)[0].Available)
}

func TestAssignRejectsOccupiedOrUnknownSeats(t *testing.T) {
	f := newSeatFixture(t)
	for _, idx := range [][]int{{2}, {9}, {-1}} {
		req := validRequest(f.id)
		req.SeatIndices = idx
		_, err := f.svc.Assign(context.Background(), req)
		var verrs validation.Errors
		assert.True(t, errors.As(err, &verrs), "%v", idx)
	}
	assert.Zero(t, f.renderer.calls)
}

func TestAssignStaleRevisionBeforeSideEffects(t *testing.T) {
	f := newSeatFixture(t)
	stale := uint64(0)
	req := validRequest(f.id)
	req.ExpectedRevision = &stale

	_, err := f.svc.Assign(context.Background(), req)
	assert.True(t, errors.Is(err, ErrStaleRevision))
	assert.Zero(t, f.renderer.calls)
	assert.Empty(t, f.mail.Sent())
}

func TestAssignLosesRaceWithConcurrentWrite(t *testing.T) {
	f := newSeatFixture(t)
	// another operator toggles a seat between our read and our write
	f.uploader = &memUploader{}
	f.svc.uploader = uploaderFunc(func() {
		_, err := f.svc.Toggle(context.Background(), f.id, 1, nil)
		require.NoError(t, err)
	})

	_, err := f.svc.Assign(context.Background(), validRequest(f.id))
	assert.True(t, errors.Is(err, ErrStaleRevision))
	var se *SagaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StepPersistSeats, se.Failed)
	assert.True(t, f.seats(t)[0].Available)
	assert.False(t, f.seats(t)[1].Available)
}

type uploaderFunc func()

func (u uploaderFunc) Upload(_ context.Context, _ []byte, path, _ string) (string, error) {
	u()
	return "https://files.test/" + path, nil
}

func TestSetAllAndToggle(t *testing.T) {
	f := newSeatFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetAll(ctx, f.id, false, false, nil)
	assert.True(t, errors.Is(err, ErrConfirmationRequired))

	c, err := f.svc.SetAll(ctx, f.id, true, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Stats().Available)

	for i := 0; i < 2; i++ {
		c, err = f.svc.SetAll(ctx, f.id, false, true, &c.Revision)
		require.NoError(t, err)
		assert.Equal(t, 4, c.Stats().Occupied)
	}

	old := c.Revision
	c, err = f.svc.Toggle(ctx, f.id, 2, &old)
	require.NoError(t, err)
	assert.True(t, c.SeatsList[2].Available)
	assert.Equal(t, old+1, c.Revision)

	_, err = f.svc.Toggle(ctx, f.id, 2, &old)
	assert.True(t, errors.Is(err, ErrStaleRevision))

	_, err = f.svc.Toggle(ctx, f.id, 7, nil)
	var verrs validation.Errors
	assert.True(t, errors.As(err, &verrs))
}

func TestOverviewAndSearch(t *testing.T) {
	f := newSeatFixture(t)
	seedCommittee(f.store, model.Committee{Name: "WHO", Topic: "Pandemic response", Seats: 10})

	ov, err := f.svc.Overview(context.Background(), "pandemic")
	require.NoError(t, err)
	require.Len(t, ov.Committees, 1)
	assert.Equal(t, "WHO", ov.Committees[0].Name)
	assert.Equal(t, model.SeatStats{}, ov.Committees[0].Stats)
	assert.Equal(t, 2, ov.Stats.Committees)
	assert.Equal(t, 14, ov.Stats.Declared)
	assert.Equal(t, 4, ov.Stats.Total)
	assert.Equal(t, 3, ov.Stats.Available)

	st, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ov.Stats, st)

	c, _ := f.svc.Get(context.Background(), f.id)
	assert.Equal(t, []int{0, 1, 3}, SelectAllAvailable(c))
}
