package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/munreg/internal/mailer"
	"github.com/iliyamo/munreg/internal/metrics"
	"github.com/iliyamo/munreg/internal/model"
	"github.com/iliyamo/munreg/internal/queue"
	"github.com/iliyamo/munreg/internal/receipt"
	"github.com/iliyamo/munreg/internal/storage"
	"github.com/iliyamo/munreg/internal/telemetry"
)

// Saga step names, in execution order.
const (
	StepResolveSeats  = "resolve_seats"
	StepBuildRecord   = "build_record"
	StepRenderReceipt = "render_receipt"
	StepUploadReceipt = "upload_receipt"
	StepSendEmail     = "send_email"
	StepPersistSeats  = "persist_seats"
	StepPublishEvent  = "publish_event"
)

var sagaSteps = []string{
	StepResolveSeats, StepBuildRecord, StepRenderReceipt, StepUploadReceipt,
	StepSendEmail, StepPersistSeats, StepPublishEvent,
}

// CommitteeStore is the committee persistence the seat workflows need.
type CommitteeStore interface {
	List(ctx context.Context) ([]model.Committee, error)
	Get(ctx context.Context, id string) (model.Committee, error)
	ReplaceSeats(ctx context.Context, id string, revision uint64, seats model.SeatList) (uint64, error)
}

// RateSource returns the configured exchange rate.
type RateSource interface {
	Rate(ctx context.Context) (float64, error)
}

// Journal stores assignment outcomes.
type Journal interface {
	Record(ctx context.Context, a model.Assignment) (string, error)
}

// ReceiptRenderer renders a receipt PDF.
type ReceiptRenderer interface {
	Render(reg model.Registration, table receipt.PriceTable, rate float64, opts receipt.Options) (receipt.Receipt, error)
}

// EventPublisher announces completed assignments.
type EventPublisher interface {
	PublishSeatsAssigned(ctx context.Context, ev queue.SeatsAssignedEvent) error
}

// AssignRequest is an operator's manual seat assignment.
type AssignRequest struct {
	CommitteeID    string `json:"-"`
	SeatIndices    []int  `json:"seatIndices"`
	RecipientName  string `json:"recipientName"`
	RecipientEmail string `json:"recipientEmail"`
	Notes          string `json:"notes"`
	Confirmed      bool   `json:"confirmed"`
	// ExpectedRevision, when set, must match the stored committee revision.
	ExpectedRevision *uint64 `json:"expectedRevision,omitempty"`
}

// Prompt is the confirmation question for the request.
func (r AssignRequest) Prompt() string {
	return fmt.Sprintf("Assign %d seat(s) to %s (%s)?",
		len(model.UniqueIndexes(r.SeatIndices)), strings.TrimSpace(r.RecipientName), strings.TrimSpace(r.RecipientEmail))
}

func (r AssignRequest) check() error {
	switch {
	case len(r.SeatIndices) == 0:
		return invalid("seatIndices", "select at least one seat")
	case strings.TrimSpace(r.RecipientName) == "":
		return invalid("recipientName", "recipient name is required")
	case strings.TrimSpace(r.RecipientEmail) == "":
		return invalid("recipientEmail", "recipient email is required")
	case !r.Confirmed:
		return &ConfirmationError{Prompt: r.Prompt()}
	}
	return nil
}

// AssignResult is the outcome of a completed assignment.
type AssignResult struct {
	Committee    model.Committee    `json:"committee"`
	Record       model.Registration `json:"record"`
	ReceiptURL   string             `json:"receiptUrl"`
	AssignmentID string             `json:"assignmentId,omitempty"`
	Steps        []model.StepResult `json:"steps"`
}

// SeatService runs seat maintenance and the manual assignment workflow.
type SeatService struct {
	committees CommitteeStore
	rates      RateSource
	journal    Journal
	renderer   ReceiptRenderer
	uploader   storage.Uploader
	sender     mailer.Sender
	publisher  EventPublisher
	log        *logrus.Entry
	Now        func() time.Time
}

// SeatDeps groups the collaborators of SeatService. Publisher may be nil.
type SeatDeps struct {
	Committees CommitteeStore
	Rates      RateSource
	Journal    Journal
	Renderer   ReceiptRenderer
	Uploader   storage.Uploader
	Sender     mailer.Sender
	Publisher  EventPublisher
}

func NewSeatService(d SeatDeps) *SeatService {
	return &SeatService{
		committees: d.Committees,
		rates:      d.Rates,
		journal:    d.Journal,
		renderer:   d.Renderer,
		uploader:   d.Uploader,
		sender:     d.Sender,
		publisher:  d.Publisher,
		log:        logrus.WithField("component", "assignment"),
		Now:        time.Now,
	}
}

// saga executes steps in order and remembers each outcome.
type saga struct {
	steps  []model.StepResult
	failed string
	err    error
}

// run executes fn unless an earlier step failed. fn returns a detail for
// the journal.
func (s *saga) run(name string, fn func() (string, error)) {
	if s.err != nil {
		return
	}
	detail, err := fn()
	status := model.StepDone
	if err != nil {
		status = model.StepFailed
		detail = err.Error()
		s.failed, s.err = name, err
	}
	metrics.ObserveStep(name, status)
	s.steps = append(s.steps, model.StepResult{Name: name, Status: status, Detail: detail})
}

// record notes a step that does not stop the saga.
func (s *saga) record(name, status, detail string) {
	metrics.ObserveStep(name, status)
	s.steps = append(s.steps, model.StepResult{Name: name, Status: status, Detail: detail})
}

// report fills in every step that never ran.
func (s *saga) report() []model.StepResult {
	out := append([]model.StepResult(nil), s.steps...)
	for _, name := range sagaSteps[len(out):] {
		out = append(out, model.StepResult{Name: name, Status: model.StepSkipped})
	}
	return out
}

// Assign marks the selected seats as occupied on behalf of a recipient,
// renders and uploads a receipt, and emails it. Preconditions are checked
// before any remote call. Steps run strictly in order; a failed step stops
// the saga and is reported in a *SagaError. Email is sent before the seats
// are persisted and is never rolled back.
func (s *SeatService) Assign(ctx context.Context, req AssignRequest) (AssignResult, error) {
	if err := req.check(); err != nil {
		return AssignResult{}, err
	}
	c, err := s.committees.Get(ctx, req.CommitteeID)
	if err != nil {
		return AssignResult{}, err
	}
	if err := checkRevision(c, req.ExpectedRevision); err != nil {
		return AssignResult{}, err
	}
	idx := model.UniqueIndexes(req.SeatIndices)
	if err := c.SeatsList.RequireAvailable(idx); err != nil {
		return AssignResult{}, invalid("seatIndices", err.Error())
	}

	name := strings.TrimSpace(req.RecipientName)
	email := strings.TrimSpace(req.RecipientEmail)
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		notes = "Seat assignment for " + c.Name
	}
	now := s.Now()
	log := s.log.WithFields(logrus.Fields{"committee_id": c.ID, "seats": len(idx)})

	var (
		sg      saga
		labels  []string
		rec     model.Registration
		doc     receipt.Receipt
		path    string
		url     string
		updated = c
	)
	sg.run(StepResolveSeats, func() (string, error) {
		names, err := c.SeatsList.Labels(idx)
		if err != nil {
			return "", err
		}
		for _, n := range names {
			labels = append(labels, c.SeatLabel(n))
		}
		return strings.Join(names, ", "), nil
	})
	sg.run(StepBuildRecord, func() (string, error) {
		first, last := splitName(name)
		rec = model.Registration{
			UserFirstName:   first,
			UserLastName:    last,
			UserEmail:       email,
			UserInstitution: name,
			Seats:           len(labels),
			SeatsRequested:  labels,
			TransactionID:   "manual-" + c.Name + "-" + strconv.FormatInt(now.UnixMilli(), 10),
			CreatedAt:       now,
		}
		return rec.TransactionID, nil
	})
	sg.run(StepRenderReceipt, func() (string, error) {
		rate, err := s.rates.Rate(ctx)
		if err != nil {
			return "", errors.Wrap(err, "load exchange rate")
		}
		table := receipt.PriceTable{c.Name: c.IsDoubleSeat}
		doc, err = s.renderer.Render(rec, table, rate, receipt.Options{Title: receipt.AssignmentTitle, Notes: notes})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d page(s), total %.2f", doc.Pages, doc.Summary.Total), nil
	})
	sg.run(StepUploadReceipt, func() (string, error) {
		path = receipt.AssignmentFileName(c.Name, now)
		u, err := s.uploader.Upload(ctx, doc.PDF, path, "application/pdf")
		if err != nil {
			return "", errors.Wrap(err, "upload receipt")
		}
		url = u
		rec.ReceiptURL = u
		return u, nil
	})
	sg.run(StepSendEmail, func() (string, error) {
		msg := mailer.AssignmentMessage(name, email, labels, notes, url, doc.PDF, path)
		if err := s.sender.Send(ctx, msg); err != nil {
			return "", errors.Wrap(err, "send email")
		}
		return email, nil
	})
	sg.run(StepPersistSeats, func() (string, error) {
		seats, err := c.SeatsList.Assign(idx)
		if err != nil {
			return "", err
		}
		rev, err := s.committees.ReplaceSeats(ctx, c.ID, c.Revision, seats)
		if err != nil {
			return "", err
		}
		updated.SeatsList, updated.Revision = seats, rev
		return "revision " + strconv.FormatUint(rev, 10), nil
	})
	if sg.err == nil {
		s.publish(ctx, &sg, queue.SeatsAssignedEvent{
			CommitteeID:    c.ID,
			CommitteeName:  c.Name,
			SeatIndices:    idx,
			SeatLabels:     labels,
			RecipientName:  name,
			RecipientEmail: email,
			TransactionID:  rec.TransactionID,
			ReceiptURL:     url,
			Revision:       updated.Revision,
			AssignedBy:     telemetry.UserIDFrom(ctx),
			AssignedAt:     now.UTC().Format(time.RFC3339),
		}, log)
	}

	steps := sg.report()
	entry := model.Assignment{
		CommitteeID:    c.ID,
		CommitteeName:  c.Name,
		SeatIndices:    idx,
		SeatLabels:     labels,
		RecipientName:  name,
		RecipientEmail: email,
		TransactionID:  rec.TransactionID,
		ReceiptPath:    path,
		ReceiptURL:     url,
		Steps:          steps,
		Status:         model.AssignmentCompleted,
		OperatorID:     telemetry.UserIDFrom(ctx),
		CreatedAt:      now,
	}
	if sg.err != nil {
		entry.Status = model.AssignmentFailed
		entry.FailedStep = sg.failed
		entry.Error = sg.err.Error()
	}
	journalID := s.writeJournal(ctx, entry, log)

	if sg.err != nil {
		log.WithError(sg.err).WithField("step", sg.failed).Error("seat assignment failed")
		return AssignResult{}, &SagaError{Failed: sg.failed, Steps: steps, Err: sg.err}
	}
	log.WithField("transaction_id", rec.TransactionID).Info("seats assigned")
	return AssignResult{
		Committee:    updated,
		Record:       rec,
		ReceiptURL:   url,
		AssignmentID: journalID,
		Steps:        steps,
	}, nil
}

func (s *SeatService) publish(ctx context.Context, sg *saga, ev queue.SeatsAssignedEvent, log *logrus.Entry) {
	if s.publisher == nil {
		sg.record(StepPublishEvent, model.StepSkipped, "queue disabled")
		return
	}
	if err := s.publisher.PublishSeatsAssigned(ctx, ev); err != nil {
		log.WithError(err).Warn("seats.assigned not published")
		sg.record(StepPublishEvent, model.StepFailed, err.Error())
		return
	}
	sg.record(StepPublishEvent, model.StepDone, queue.DefaultQueue)
}

// writeJournal stores the outcome even when the request was cancelled.
// A journal failure is logged; it does not change the result.
func (s *SeatService) writeJournal(ctx context.Context, a model.Assignment, log *logrus.Entry) string {
	if s.journal == nil {
		return ""
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	id, err := s.journal.Record(jctx, a)
	if err != nil {
		log.WithError(err).Error("failed to journal assignment")
		return ""
	}
	return id
}

func checkRevision(c model.Committee, expected *uint64) error {
	if expected != nil && *expected != c.Revision {
		return errors.Wrapf(ErrStaleRevision, "committee %s is at revision %d, request was made from %d", c.ID, c.Revision, *expected)
	}
	return nil
}

// SetAll marks every seat of a committee available or occupied. The change
// is destructive, so it needs confirmation.
func (s *SeatService) SetAll(ctx context.Context, committeeID string, available, confirmed bool, expected *uint64) (model.Committee, error) {
	if !confirmed {
		state := "occupied"
		if available {
			state = "available"
		}
		return model.Committee{}, &ConfirmationError{Prompt: "Mark every seat of the committee as " + state + "?"}
	}
	c, err := s.committees.Get(ctx, committeeID)
	if err != nil {
		return model.Committee{}, err
	}
	if err := checkRevision(c, expected); err != nil {
		return model.Committee{}, err
	}
	return s.replace(ctx, c, c.SeatsList.WithAll(available))
}

// Toggle flips one seat.
func (s *SeatService) Toggle(ctx context.Context, committeeID string, index int, expected *uint64) (model.Committee, error) {
	c, err := s.committees.Get(ctx, committeeID)
	if err != nil {
		return model.Committee{}, err
	}
	if err := checkRevision(c, expected); err != nil {
		return model.Committee{}, err
	}
	seats, err := c.SeatsList.Toggle(index)
	if err != nil {
		return model.Committee{}, invalid("index", err.Error())
	}
	return s.replace(ctx, c, seats)
}

func (s *SeatService) replace(ctx context.Context, c model.Committee, seats model.SeatList) (model.Committee, error) {
	rev, err := s.committees.ReplaceSeats(ctx, c.ID, c.Revision, seats)
	if err != nil {
		return model.Committee{}, err
	}
	c.SeatsList, c.Revision = seats, rev
	return c, nil
}

// Get loads one committee.
func (s *SeatService) Get(ctx context.Context, id string) (model.Committee, error) {
	return s.committees.Get(ctx, id)
}

// SelectAllAvailable returns the positions an operator can assign.
func SelectAllAvailable(c model.Committee) []int { return c.SeatsList.AvailableIndexes() }

// Search keeps the committees matching term.
func Search(cs []model.Committee, term string) []model.Committee {
	out := make([]model.Committee, 0, len(cs))
	for _, c := range cs {
		if c.Matches(term) {
			out = append(out, c)
		}
	}
	return out
}

// CommitteeSummary is a committee with its derived seat statistics.
type CommitteeSummary struct {
	model.Committee
	Stats model.SeatStats `json:"stats"`
}

// Overview is the admin committee listing.
type Overview struct {
	Committees []CommitteeSummary   `json:"committees"`
	Stats      model.CommitteeStats `json:"stats"`
}

// Stats aggregates seat statistics over every committee.
func (s *SeatService) Stats(ctx context.Context) (model.CommitteeStats, error) {
	cs, err := s.committees.List(ctx)
	if err != nil {
		return model.CommitteeStats{}, err
	}
	return model.AggregateStats(cs), nil
}

// Overview lists committees matching term. The aggregate covers all of them.
func (s *SeatService) Overview(ctx context.Context, term string) (Overview, error) {
	cs, err := s.committees.List(ctx)
	if err != nil {
		return Overview{}, err
	}
	out := Overview{Stats: model.AggregateStats(cs), Committees: []CommitteeSummary{}}
	for _, c := range Search(cs, term) {
		out.Committees = append(out.Committees, CommitteeSummary{Committee: c, Stats: c.Stats()})
	}
	return out, nil
}
