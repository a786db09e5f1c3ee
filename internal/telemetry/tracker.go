// Package telemetry records one log document per remote call: which
// service and operation ran, how long it took, whether it failed and who
// asked for it.
package telemetry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/munreg/internal/docstore"
	"github.com/iliyamo/munreg/internal/metrics"
	"github.com/iliyamo/munreg/internal/model"
)

// Collection receives the request log documents.
const Collection = "firebase_request_logs"

// Services recorded by the tracker.
const (
	ServiceData = "datastore"
	ServiceAuth = "auth"
)

// Options name the call being tracked.
type Options struct {
	Service   string
	Operation string
	Metadata  map[string]any
}

// Tracker writes request logs to a sink store. The sink must not itself be
// tracked.
type Tracker struct {
	sink docstore.Store
	ip   *IPResolver
	log  *logrus.Entry
	Now  func() time.Time
	// WriteTimeout bounds each log write.
	WriteTimeout time.Duration
}

// NewTracker returns a tracker writing to sink. ip may be nil.
func NewTracker(sink docstore.Store, ip *IPResolver) *Tracker {
	return &Tracker{
		sink:         sink,
		ip:           ip,
		log:          logrus.WithField("component", "telemetry"),
		Now:          time.Now,
		WriteTimeout: 5 * time.Second,
	}
}

// Track runs fn and records exactly one log entry for it. The error of fn
// is returned unchanged. A nil tracker only runs fn.
func Track[T any](ctx context.Context, t *Tracker, opts Options, fn func(context.Context) (T, error)) (T, error) {
	if t == nil {
		return fn(ctx)
	}
	start := t.Now()
	v, err := fn(ctx)
	t.record(ctx, opts, start, err)
	return v, err
}

// Do is Track for calls without a result.
func (t *Tracker) Do(ctx context.Context, opts Options, fn func(context.Context) error) error {
	_, err := Track(ctx, t, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (t *Tracker) record(ctx context.Context, opts Options, start time.Time, callErr error) {
	elapsed := t.Now().Sub(start)
	entry := model.RequestLog{
		Service:    opts.Service,
		Operation:  opts.Operation,
		Status:     model.StatusSuccess,
		DurationMs: elapsed.Milliseconds(),
		Metadata:   opts.Metadata,
		CreatedAt:  t.Now().UTC().Truncate(time.Second),
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	if callErr != nil {
		entry.Status = model.StatusError
		msg := callErr.Error()
		if msg == "" {
			msg = "unknown error"
		}
		entry.ErrorMessage = &msg
	}
	metrics.ObserveRemote(entry.Service, entry.Operation, entry.Status, elapsed)

	client := ClientFrom(ctx)
	entry.UserAgent = client.UserAgent
	entry.PagePath = client.Path
	ip := client.IP
	if ip == "" {
		ip = t.ip.Resolve(ctx)
	}
	if ip != "" {
		entry.IPAddress = &ip
	}
	if uid := UserIDFrom(ctx); uid != "" {
		entry.UserID = &uid
	}

	data, err := docstore.Encode(entry)
	if err != nil {
		t.log.WithError(err).Warn("encode request log")
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.WriteTimeout)
	defer cancel()
	if _, err := t.sink.Add(wctx, Collection, data); err != nil {
		t.log.WithError(err).WithFields(logrus.Fields{
			"service":   opts.Service,
			"operation": opts.Operation,
		}).Warn("failed to write request log")
	}
}
