package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, h *harness) *Registry {
	t.Helper()
	next := 0
	registry, err := NewRegistry(RegistryDeps{
		NewController: func(id string) (*Controller, error) {
			return NewController(Deps{
				SessionID: id,
				Tokens:    h.tokens,
				Payments:  h.payments,
				Deadlines: h.store,
				Clock:     h.clock.Now,
				Settings:  Settings{TickInterval: time.Millisecond},
			})
		},
		SessionTTL: time.Hour,
		Clock:      h.clock.Now,
		IDGenerator: func() string {
			next++
			return fmt.Sprintf("S%02d", next)
		},
	})
	require.NoError(t, err)
	t.Cleanup(registry.CloseAll)
	return registry
}

func TestRegistryCreateGetRemove(t *testing.T) {
	h := newHarness()
	registry := newTestRegistry(t, h)

	id, ctrl, err := registry.Create(context.Background(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "S01", id)
	assert.Equal(t, id, ctrl.ID())
	assert.Equal(t, PhaseDataEntry, ctrl.Phase())
	assert.Equal(t, id, ctrl.Snapshot().SessionID)

	got, err := registry.Get(id)
	require.NoError(t, err)
	assert.Same(t, ctrl, got)

	assert.True(t, registry.Remove(id))
	assert.False(t, registry.Remove(id))
	_, err = registry.Get(id)
	assert.ErrorIs(t, err, ErrCheckoutSessionNotFound)

	_, err = ctrl.SubmitDataEntry(context.Background(), DataEntry{})
	assert.ErrorIs(t, err, ErrCheckoutClosed)
}

func TestRegistryKeepsErrorSessions(t *testing.T) {
	h := newHarness()
	registry := newTestRegistry(t, h)

	id, ctrl, err := registry.Create(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, PhaseError, ctrl.Phase())
	_, err = registry.Get(id)
	assert.NoError(t, err)
}

func TestRegistrySweepDropsIdleAndFinishedSessions(t *testing.T) {
	h := newHarness()
	registry := newTestRegistry(t, h)
	ctx := context.Background()

	idleID, _, err := registry.Create(ctx, "tok-idle")
	require.NoError(t, err)

	h.clock.Advance(50 * time.Minute)
	doneID, done, err := registry.Create(ctx, "tok-done")
	require.NoError(t, err)
	_, err = done.SubmitDataEntry(ctx, DataEntry{Name: "Maria Silva", Phone: "11987654321", TaxID: validCPF})
	require.NoError(t, err)
	_, err = done.ResolveUpsell(ctx, false)
	require.NoError(t, err)
	_, err = done.SubmitPayment(ctx, validCard())
	require.NoError(t, err)

	liveID, _, err := registry.Create(ctx, "tok-live")
	require.NoError(t, err)

	h.clock.Advance(15 * time.Minute)
	require.Eventually(t, done.Finished, time.Second, time.Millisecond)

	removed := registry.Sweep(ctx, h.clock.Now())
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, registry.Len())

	_, err = registry.Get(idleID)
	assert.ErrorIs(t, err, ErrCheckoutSessionNotFound)
	_, err = registry.Get(doneID)
	assert.ErrorIs(t, err, ErrCheckoutSessionNotFound)
	_, err = registry.Get(liveID)
	assert.NoError(t, err)
}

func TestRegistryPropagatesFactoryErrors(t *testing.T) {
	boom := errors.New("boom")
	registry, err := NewRegistry(RegistryDeps{
		NewController: func(string) (*Controller, error) { return nil, boom },
	})
	require.NoError(t, err)

	_, _, err = registry.Create(context.Background(), "tok")
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, registry.Len())

	_, err = NewRegistry(RegistryDeps{})
	assert.Error(t, err)
}

func TestRegistryRunStopsWithContext(t *testing.T) {
	h := newHarness()
	registry := newTestRegistry(t, h)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- registry.Run(ctx, time.Millisecond) }()
	cancel()
	assert.NoError(t, <-errCh)
}
