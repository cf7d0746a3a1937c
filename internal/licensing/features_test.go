package licensing_test

import (
	"testing"

	"license-backend/internal/licensing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeaturesForType(t *testing.T) {
	features, err := licensing.FeaturesForType("premium")
	require.NoError(t, err)
	assert.Contains(t, features, "sales")
	assert.Contains(t, features, "reports")

	trial, err := licensing.FeaturesForType("trial")
	require.NoError(t, err)
	assert.NotEmpty(t, trial)

	_, err = licensing.FeaturesForType("platinum")
	assert.ErrorIs(t, err, licensing.ErrInvalidLicense)
}

func TestHasFeature(t *testing.T) {
	status := activeStatus()
	assert.True(t, status.HasFeature("sales"))
	assert.False(t, status.HasFeature("backup"))

	status.Activated = false
	assert.False(t, status.HasFeature("sales"), "deactivated licenses grant nothing")

	assert.False(t, licensing.Status{Activated: true}.HasFeature("sales"))
}
