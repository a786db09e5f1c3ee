package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/munreg/internal/config"
	"github.com/iliyamo/munreg/internal/docstore"
	"github.com/iliyamo/munreg/internal/mailer"
	"github.com/iliyamo/munreg/internal/model"
	"github.com/iliyamo/munreg/internal/storage"
	"github.com/iliyamo/munreg/internal/telemetry"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		JWTSecret:   "s",
		DefaultRate: 180,
		Storage:     config.StorageConfig{Driver: "local", LocalDir: t.TempDir(), PublicBaseURL: "http://localhost:8080"},
		Mail:        config.MailConfig{Driver: "console"},
		Telemetry:   config.TelemetryConfig{Enabled: true},
	}
}

func TestBuildTracksDataCalls(t *testing.T) {
	raw := docstore.NewMemory()
	a, err := Build(testConfig(t), nil, raw)
	require.NoError(t, err)
	assert.Nil(t, a.Publisher)
	assert.Nil(t, a.Accounts)
	assert.NoError(t, a.Close())

	ctx := context.Background()
	_, err = a.Committees.Create(ctx, model.Committee{Name: "GA", Seats: 1, SeatsList: model.SeatList{{Name: "Peru", Available: true}}})
	require.NoError(t, err)
	ov, err := a.Seats.Overview(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, ov.Stats.Available)

	page, err := a.RequestLogs.Page(ctx, 10, "", "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	for _, l := range page.Items {
		assert.Equal(t, telemetry.ServiceData, l.Service)
	}

	// profile-only delete when no accounts table is wired
	assert.NoError(t, a.Users.Delete(ctx, "42"))
}

func TestBuildWithoutTelemetry(t *testing.T) {
	cfg := testConfig(t)
	cfg.Telemetry.Enabled = false
	raw := docstore.NewMemory()
	a, err := Build(cfg, nil, raw)
	require.NoError(t, err)
	assert.Nil(t, a.Tracker)

	_, err = a.Seats.Stats(context.Background())
	require.NoError(t, err)
	logs, err := raw.GetAll(context.Background(), telemetry.Collection)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestDrivers(t *testing.T) {
	up, err := NewUploader(config.StorageConfig{Driver: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &storage.Local{}, up)

	up, err = NewUploader(config.StorageConfig{Driver: "supabase", SupabaseURL: "https://x.supabase.co", SupabaseKey: "k", Bucket: "pdfs"})
	require.NoError(t, err)
	assert.IsType(t, &storage.Supabase{}, up)

	_, err = NewUploader(config.StorageConfig{Driver: "supabase"})
	assert.Error(t, err)
	_, err = NewUploader(config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)

	assert.IsType(t, &mailer.Console{}, NewSender(config.MailConfig{Driver: "console"}))
	assert.IsType(t, &mailer.Console{}, NewSender(config.MailConfig{Driver: "sendgrid"}))
	assert.IsType(t, &mailer.Sendgrid{}, NewSender(config.MailConfig{Driver: "sendgrid", SendgridKey: "SG.x"}))
}
