package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/munreg/internal/docstore"
	"github.com/iliyamo/munreg/internal/model"
	"github.com/iliyamo/munreg/internal/queue"
	"github.com/iliyamo/munreg/internal/receipt"
	"github.com/iliyamo/munreg/internal/repository"
	"github.com/iliyamo/munreg/internal/utils"
)

// countingCommittees counts every call reaching the store.
type countingCommittees struct {
	*repository.CommitteeRepo
	calls int
}

func (c *countingCommittees) List(ctx context.Context) ([]model.Committee, error) {
	c.calls++
	return c.CommitteeRepo.List(ctx)
}

func (c *countingCommittees) Get(ctx context.Context, id string) (model.Committee, error) {
	c.calls++
	return c.CommitteeRepo.Get(ctx, id)
}

func (c *countingCommittees) ReplaceSeats(ctx context.Context, id string, rev uint64, seats model.SeatList) (uint64, error) {
	c.calls++
	return c.CommitteeRepo.ReplaceSeats(ctx, id, rev, seats)
}

type fixedRate struct {
	rate float64
	err  error
}

func (f *fixedRate) Rate(context.Context) (float64, error) { return f.rate, f.err }

func (f *fixedRate) SetRate(_ context.Context, r float64) error {
	f.rate = r
	return nil
}

type memJournal struct{ entries []model.Assignment }

func (j *memJournal) Record(_ context.Context, a model.Assignment) (string, error) {
	j.entries = append(j.entries, a)
	return "j" + string(rune('0'+len(j.entries))), nil
}

type stubRenderer struct {
	calls int
	last  model.Registration
	rate  float64
	err   error
}

func (r *stubRenderer) Render(reg model.Registration, table receipt.PriceTable, rate float64, _ receipt.Options) (receipt.Receipt, error) {
	r.calls++
	r.last, r.rate = reg, rate
	if r.err != nil {
		return receipt.Receipt{}, r.err
	}
	return receipt.Receipt{PDF: []byte("%PDF-stub"), Pages: 1, Summary: receipt.Quote(reg, table, rate)}, nil
}

type memUploader struct {
	paths []string
	err   error
}

func (u *memUploader) Upload(_ context.Context, _ []byte, path, _ string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.paths = append(u.paths, path)
	return "https://files.test/" + path, nil
}

type memPublisher struct {
	events []queue.SeatsAssignedEvent
	err    error
}

func (p *memPublisher) PublishSeatsAssigned(_ context.Context, ev queue.SeatsAssignedEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

// memAccounts is an in-memory AccountStore.
type memAccounts struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.Account
}

func newMemAccounts() *memAccounts { return &memAccounts{byID: map[uint64]model.Account{}} }

func (m *memAccounts) Create(_ context.Context, email, password, name string, cost int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = repository.NormalizeEmail(email)
	for _, a := range m.byID {
		if a.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	m.nextID++
	m.byID[m.nextID] = model.Account{ID: m.nextID, Email: email, PasswordHash: hash, DisplayName: strings.TrimSpace(name), IsActive: true, CreatedAt: time.Now()}
	return m.nextID, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == repository.NormalizeEmail(email) {
			return a, nil
		}
	}
	return model.Account{}, sql.ErrNoRows
}

func (m *memAccounts) GetByID(_ context.Context, id uint64) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return model.Account{}, sql.ErrNoRows
	}
	return a, nil
}

func (m *memAccounts) SetPassword(_ context.Context, id uint64, pw string, cost int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	hash, err := utils.HashPassword(pw, cost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	m.byID[id] = a
	return nil
}

func (m *memAccounts) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

type memToken struct {
	user    uint64
	exp     time.Time
	revoked bool
	used    bool
}

// memTokens is an in-memory TokenStore.
type memTokens struct {
	mu      sync.Mutex
	refresh map[string]*memToken
	resets  map[string]*memToken
}

func newMemTokens() *memTokens {
	return &memTokens{refresh: map[string]*memToken{}, resets: map[string]*memToken{}}
}

func (m *memTokens) StoreRefresh(_ context.Context, uid uint64, h string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[h] = &memToken{user: uid, exp: exp}
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, h string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.refresh[h]
	if !ok || t.revoked || time.Now().After(t.exp) {
		return 0, sql.ErrNoRows
	}
	return t.user, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, h string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.refresh[h]; ok {
		t.revoked = true
	}
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, uid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.refresh {
		if t.user == uid {
			t.revoked = true
		}
	}
	return nil
}

func (m *memTokens) StoreReset(_ context.Context, uid uint64, h string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[h] = &memToken{user: uid, exp: exp}
	return nil
}

func (m *memTokens) ConsumeReset(_ context.Context, h string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.resets[h]
	if !ok || t.used || time.Now().After(t.exp) {
		return 0, sql.ErrNoRows
	}
	t.used = true
	return t.user, nil
}

var errBoom = errors.New("boom")

func seedCommittee(store docstore.Store, c model.Committee) string {
	id, err := repository.NewCommitteeRepo(store).Create(context.Background(), c)
	if err != nil {
		panic(err)
	}
	return id
}
