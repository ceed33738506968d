package runtime

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/fintrack/internal/clock"
	"github.com/manav03panchal/fintrack/internal/config"
	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/model"
	"github.com/manav03panchal/fintrack/internal/parser"
	"github.com/manav03panchal/fintrack/internal/state"
)

var now = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func memoryConfig() *config.RuntimeConfig {
	cfg := config.DefaultRuntimeConfig()
	cfg.Storage.Path = MemoryPath
	cfg.Notify.Console = false
	return cfg
}

func fileConfig(t *testing.T) *config.RuntimeConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultRuntimeConfig()
	cfg.Storage.Path = filepath.Join(dir, "data", "fintrack.db")
	cfg.Storage.KVPath = filepath.Join(dir, "kv")
	cfg.Notify.Console = false
	return cfg
}

// =============================================================================
// Context lifecycle
// =============================================================================

func TestNewInMemory(t *testing.T) {
	ctx, err := NewWithConfig(memoryConfig(), Options{Clock: clock.NewManual(now)})
	require.NoError(t, err)
	require.NotNil(t, ctx.KV)
	assert.Nil(t, ctx.Queue)
	assert.Equal(t, 0, ctx.Channel.Len())

	require.NoError(t, ctx.Boot(context.Background()))
	assert.Equal(t, state.StatusReady, ctx.State.Status())
	assert.Equal(t, "USD", ctx.State.Snapshot().Currency)

	require.NoError(t, ctx.Close())
	assert.Equal(t, state.StatusShutdown, ctx.State.Status())
}

func TestMobileVariantDefaults(t *testing.T) {
	cfg := memoryConfig()
	cfg.Variant = config.VariantMobile

	ctx, err := NewWithConfig(cfg, Options{Clock: clock.NewManual(now)})
	require.NoError(t, err)
	defer ctx.Close()

	require.NoError(t, ctx.Boot(context.Background()))
	assert.Equal(t, "INR", ctx.State.Snapshot().Currency)
}

func TestDBPathOverride(t *testing.T) {
	cfg := fileConfig(t)
	ctx, err := NewWithConfig(cfg, Options{DBPath: MemoryPath})
	require.NoError(t, err)
	defer ctx.Close()

	assert.Equal(t, MemoryPath, ctx.Config.Storage.Path)
	require.NoError(t, ctx.Boot(context.Background()))
}

func TestFileBackendPersists(t *testing.T) {
	cfg := fileConfig(t)
	bg := context.Background()

	first, err := NewWithConfig(cfg, Options{Clock: clock.NewManual(now)})
	require.NoError(t, err)
	require.NoError(t, first.Boot(bg))

	tx, err := first.State.AddTransaction(bg, model.Transaction{
		Description: "Rent",
		Amount:      900,
		Type:        model.TxExpense,
		Category:    "Housing",
		Date:        "2024-03-01",
	})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewWithConfig(cfg, Options{Clock: clock.NewManual(now)})
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.Boot(bg))

	txs := second.State.Snapshot().Transactions
	require.Len(t, txs, 1)
	assert.Equal(t, tx.ID, txs[0].ID)
	assert.Equal(t, "Rent", txs[0].Description)
}

func TestSnapshotBackendPersists(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Storage.Backend = config.BackendSnapshot
	bg := context.Background()

	first, err := NewWithConfig(cfg, Options{Clock: clock.NewManual(now)})
	require.NoError(t, err)
	require.NoError(t, first.Boot(bg))
	require.NoError(t, first.State.ChangeCurrency(bg, "eur"))
	require.NoError(t, first.Close())

	second, err := NewWithConfig(cfg, Options{Clock: clock.NewManual(now)})
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.Boot(bg))
	assert.Equal(t, "EUR", second.State.Snapshot().Currency)
}

// =============================================================================
// Delivery channels
// =============================================================================

func TestWebhookChannels(t *testing.T) {
	cfg := memoryConfig()
	cfg.Notify.Webhooks = []config.WebhookConfig{
		{Name: "ok", Type: "discord", URL: "https://discord.example.com/api/webhooks/1"},
		{Name: "bad", Type: "slack", URL: "http://10.0.0.1/hook"},
	}

	ctx, err := NewWithConfig(cfg, Options{})
	require.NoError(t, err)
	defer ctx.Close()

	require.NotNil(t, ctx.Queue)
	assert.Equal(t, 1, ctx.Channel.Len())

	ctx.StartDelivery()
	assert.Equal(t, 0, ctx.Queue.Pending())
}

func TestConsoleReminder(t *testing.T) {
	cfg := memoryConfig()
	cfg.Notify.Console = true
	var out bytes.Buffer
	clk := clock.NewManual(now)
	bg := context.Background()

	ctx, err := NewWithConfig(cfg, Options{Clock: clk, Console: &out})
	require.NoError(t, err)
	defer ctx.Close()
	require.NoError(t, ctx.Boot(bg))

	_, err = ctx.State.AddNotification(bg, model.Notification{
		Time:       "09:30",
		Message:    "Log expenses",
		Recurrence: model.RecurDaily,
		Enabled:    true,
	})
	require.NoError(t, err)

	clk.Advance(30 * time.Minute)
	assert.Contains(t, out.String(), "Log expenses")
}

// =============================================================================
// Error description
// =============================================================================

func TestDescribe(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		d := Describe(nil)
		assert.Equal(t, ExitOK, d.ExitCode)
	})

	t.Run("user error", func(t *testing.T) {
		d := Describe(errors.NewUserError("amount must be positive", "Use a number like 12.50"))
		assert.Equal(t, "user", d.Category)
		assert.Equal(t, "Use a number like 12.50", d.Suggestion)
		assert.Equal(t, ExitUser, d.ExitCode)
	})

	t.Run("write error", func(t *testing.T) {
		d := Describe(errors.NewWriteError("upsert", "transaction", "t1", errors.ErrStorageUnavailable))
		assert.Equal(t, "write", d.Category)
		assert.Equal(t, ExitStorage, d.ExitCode)
		assert.NotEmpty(t, d.Suggestion)
	})

	t.Run("lifecycle", func(t *testing.T) {
		d := Describe(errors.ErrNotBooted)
		assert.Equal(t, "lifecycle", d.Category)
		assert.Equal(t, ExitOther, d.ExitCode)
	})

	t.Run("parse error", func(t *testing.T) {
		d := Describe(parser.NewAmountError("abc"))
		assert.Equal(t, "user", d.Category)
		assert.Contains(t, d.Suggestion, "12.50")
		assert.NotContains(t, d.Suggestion, d.Message)
	})
}

func TestFormatError(t *testing.T) {
	msg := FormatError(errors.ErrNotFound)
	assert.Contains(t, msg, "not found")
	assert.Contains(t, msg, "fintrack tx ls")
}

func TestNewStorageUnavailable(t *testing.T) {
	cfg := fileConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg.Storage.Path = filepath.Join(blocker, "fintrack.db")

	_, err := NewWithConfig(cfg, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
}
