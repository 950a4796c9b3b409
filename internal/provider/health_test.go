// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package provider_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot-ai/postpilot/internal/provider"
)

func TestNewHealthTracker_RejectsNonPositiveCooldown(t *testing.T) {
	_, err := provider.NewHealthTracker(0)
	require.Error(t, err)

	_, err = provider.NewHealthTracker(-time.Second)
	require.Error(t, err)
}

func TestHealthTracker_StartsHealthy(t *testing.T) {
	h, err := provider.NewHealthTracker(30 * time.Second)
	require.NoError(t, err)
	assert.True(t, h.IsHealthy())

	m := h.HealthMetrics()
	assert.True(t, m.Available)
	assert.Zero(t, m.FailureCount)
	assert.Nil(t, m.LastFailureAt)
}

func TestHealthTracker_FailureAndCooldown(t *testing.T) {
	h, err := provider.NewHealthTracker(30 * time.Second)
	require.NoError(t, err)

	now := time.Now()
	h.SetNowFunc(func() time.Time { return now })

	h.RecordFailure()
	assert.False(t, h.IsHealthy())

	m := h.HealthMetrics()
	assert.False(t, m.Available)
	assert.EqualValues(t, 1, m.FailureCount)
	require.NotNil(t, m.CooldownUntil)
	assert.Equal(t, now.Add(30*time.Second), *m.CooldownUntil)

	// Cooldown elapsed: eligible for retry again.
	now = now.Add(31 * time.Second)
	assert.True(t, h.IsHealthy())
}

func TestHealthTracker_SuccessClearsUnhealthy(t *testing.T) {
	h, err := provider.NewHealthTracker(30 * time.Second)
	require.NoError(t, err)

	h.RecordFailure()
	h.RecordSuccess()
	assert.True(t, h.IsHealthy())

	// Failure count is cumulative across recoveries.
	m := h.HealthMetrics()
	assert.EqualValues(t, 1, m.FailureCount)
	assert.Nil(t, m.CooldownUntil)
}
