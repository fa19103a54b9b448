package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionExpiryPermanent(t *testing.T) {
	expiry, err := retentionExpiry("permanent", time.Now())
	require.NoError(t, err)
	assert.Nil(t, expiry)
}

func TestRetentionExpiryDays(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	expiry, err := retentionExpiry("days-30", now)
	require.NoError(t, err)
	require.NotNil(t, expiry)
	assert.Equal(t, now.AddDate(0, 0, 30), *expiry)
}

func TestRetentionExpiryRejectsBadPolicies(t *testing.T) {
	for _, policy := range []string{"days-0", "days--5", "days-abc", "weeks-2", "forever"} {
		_, err := retentionExpiry(policy, time.Now())
		assert.Error(t, err, policy)
	}
}
