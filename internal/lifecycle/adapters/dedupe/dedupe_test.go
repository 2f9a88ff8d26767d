package dedupe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"signflow/internal/lifecycle/ports/mocks"
	"signflow/pkg/platform/circuit"
)

func TestMemoryDeduperClaimsOncePerTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewMemoryDeduper()
	d.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := d.Claim(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.Claim(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	now = now.Add(time.Minute)
	afterExpiry, err := d.Claim(ctx, "evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, afterExpiry)
}

func TestMemoryDeduperPrunesExpiredClaims(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewMemoryDeduper()
	d.now = func() time.Time { return now }

	_, _ = d.Claim(context.Background(), "a", time.Second)
	now = now.Add(time.Hour)
	_, _ = d.Claim(context.Background(), "b", time.Second)
	assert.Len(t, d.claims, 1)
}

func TestFallbackDeduperUsesPrimaryWhenHealthy(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := mocks.NewMockDeduper(ctrl)
	primary.EXPECT().Claim(gomock.Any(), "k", time.Minute).Return(false, nil)

	d := NewFallbackDeduper(primary, NewMemoryDeduper(), nil, nil)
	first, err := d.Claim(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, first, "primary answer is trusted")
}

func TestFallbackDeduperSwitchesWhileOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := mocks.NewMockDeduper(ctrl)
	breaker := circuit.New("webhook-dedupe", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(2))
	d := NewFallbackDeduper(primary, NewMemoryDeduper(), breaker, nil)
	ctx := context.Background()

	primary.EXPECT().Claim(gomock.Any(), "k", time.Minute).Return(false, errors.New("redis down"))
	first, err := d.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
	assert.True(t, breaker.IsOpen())

	// primary recovered but the breaker is still open: the fallback remembers k
	primary.EXPECT().Claim(gomock.Any(), "k", time.Minute).Return(true, nil)
	again, err := d.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	primary.EXPECT().Claim(gomock.Any(), "other", time.Minute).Return(true, nil)
	_, err = d.Claim(ctx, "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, breaker.IsOpen())

	primary.EXPECT().Claim(gomock.Any(), "k", time.Minute).Return(true, nil)
	fromPrimary, err := d.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, fromPrimary)
}
