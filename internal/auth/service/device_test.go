package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/spendlyzer/auth/internal/auth/service"
	"github.com/stretchr/testify/require"
)

func TestTrustDeviceCapEvictsOldest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")

	var firstID string
	for i := 0; i < service.DefaultMaxDevices; i++ {
		d, token, err := e.devices.Trust(ctx, nil, user.ID, testDevice())
		require.NoError(t, err)
		require.NotEmpty(t, token)
		if i == 0 {
			firstID = d.ID
		}
		time.Sleep(2 * time.Millisecond) // distinct last_used_at ordering
	}

	// One over the cap evicts the least recently used device.
	_, _, err := e.devices.Trust(ctx, nil, user.ID, otherDevice())
	require.NoError(t, err)

	views, err := e.devices.List(ctx, user.ID, nil)
	require.NoError(t, err)
	require.Len(t, views, service.DefaultMaxDevices)
	for _, v := range views {
		require.NotEqual(t, firstID, v.ID)
	}
}

func TestRedeemExpiredDeviceIsLazyDeactivated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")

	e.devices.DeviceTTL = time.Millisecond
	_, token, err := e.devices.Trust(ctx, nil, user.ID, testDevice())
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, err = e.devices.Redeem(ctx, user.ID, token, testDevice())
	require.ErrorIs(t, err, service.ErrDeviceNotTrusted)

	// The expiry was applied at lookup: the device no longer lists.
	views, err := e.devices.List(ctx, user.ID, nil)
	require.NoError(t, err)
	require.Empty(t, views)
}

func TestRedeemBumpsLastUsed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")
	created, token, err := e.devices.Trust(ctx, nil, user.ID, testDevice())
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	redeemed, err := e.devices.Redeem(ctx, user.ID, token, testDevice())
	require.NoError(t, err)
	require.Equal(t, created.ID, redeemed.ID)
	require.True(t, redeemed.LastUsedAt.After(created.LastUsedAt))
}

func TestRedeemUnknownToken(t *testing.T) {
	e := newEnv(t)

	user := e.signupUser(t, "alice")
	_, err := e.devices.Redeem(context.Background(), user.ID, "not-a-real-token", testDevice())
	require.ErrorIs(t, err, service.ErrDeviceNotTrusted)
}

func TestRevokeDeviceCrossUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alice := e.signupUser(t, "alice")
	mallory := e.signupUser(t, "mallory")

	d, _, err := e.devices.Trust(ctx, nil, alice.ID, testDevice())
	require.NoError(t, err)

	require.ErrorIs(t, e.devices.Revoke(ctx, mallory.ID, d.ID), service.ErrDeviceNotFound)
	require.NoError(t, e.devices.Revoke(ctx, alice.ID, d.ID))
}

func TestRevokeAllDevices(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")
	for i := 0; i < 3; i++ {
		_, _, err := e.devices.Trust(ctx, nil, user.ID, testDevice())
		require.NoError(t, err)
	}

	count, err := e.devices.RevokeAll(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	views, err := e.devices.List(ctx, user.ID, nil)
	require.NoError(t, err)
	require.Empty(t, views)
}
