package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/app"
	"github.com/wondertwin-ai/twin-qwikbasket/internal/catalog"
	"github.com/wondertwin-ai/twin-qwikbasket/internal/client"
	"github.com/wondertwin-ai/twin-qwikbasket/internal/config"
)

func newAppClient(t *testing.T) *client.Client {
	t.Helper()
	cfg := config.Default()
	cfg.Latency = 0
	cfg.EnvFile = ""
	a, err := app.Build(&cfg, app.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	srv := httptest.NewServer(a.Twin)
	t.Cleanup(srv.Close)
	return client.New(srv.URL)
}

func TestAdminHealthAndReset(t *testing.T) {
	cl := newAppClient(t)
	ctx := context.Background()

	require.NoError(t, cl.Health(ctx))
	require.NoError(t, cl.Offers().Delete(ctx, "1"))
	_, ok, err := cl.Offers().Get(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cl.Reset(ctx))
	_, ok, err = cl.Offers().Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAdminSeedFromFile(t *testing.T) {
	cl := newAppClient(t)
	ctx := context.Background()

	data, err := json.Marshal(catalog.State{
		Offers: []catalog.Offer{{ID: "o1", Title: "Monsoon Sale", Status: catalog.OfferActive}},
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	require.NoError(t, cl.Seed(ctx, path))
	offers, err := cl.Offers().List(ctx)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "Monsoon Sale", offers[0].Title)

	raw, err := cl.State(ctx)
	require.NoError(t, err)
	var st catalog.State
	require.NoError(t, json.Unmarshal(raw, &st))
	assert.Empty(t, st.Products)

	assert.Error(t, cl.Seed(ctx, filepath.Join(t.TempDir(), "missing.json")))
	assert.Error(t, cl.LoadState(ctx, []byte("{not json")))
}

func TestAdminOpFaults(t *testing.T) {
	cl := newAppClient(t)
	ctx := context.Background()

	require.NoError(t, cl.InjectOpFault(ctx, "orders.list", 0))
	_, err := cl.Orders().List(ctx)
	assert.True(t, errors.Is(err, catalog.ErrStoreOperationFailed))
	_, err = cl.Orders().List(ctx)
	assert.True(t, errors.Is(err, catalog.ErrStoreOperationFailed))

	require.NoError(t, cl.ClearOpFault(ctx, "orders.list"))
	orders, err := cl.Orders().List(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 5)
}

func TestAdminConfigAndOTPCodes(t *testing.T) {
	cl := newAppClient(t)
	ctx := context.Background()

	cfg, err := cl.UpdateConfig(ctx, map[string]any{"require_session": true, "latency": "0s"})
	require.NoError(t, err)
	assert.Equal(t, true, cfg["require_session"])

	_, err = cl.Products().List(ctx)
	assert.Error(t, err)

	require.NoError(t, cl.RequestOTP(ctx, "+91 98765-43210"))
	codes, err := cl.OTPCodes(ctx, "+919876543210")
	require.NoError(t, err)
	require.Len(t, codes, 1)
	_, err = cl.VerifyOTP(ctx, "+919876543210", codes[0].Code)
	require.NoError(t, err)

	products, err := cl.Products().List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 5)

	_, err = cl.UpdateConfig(ctx, map[string]any{"port": 1})
	assert.Error(t, err)
}
