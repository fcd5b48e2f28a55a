package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMatchesExactly(t *testing.T) {
	reason, err := ParseOutboxDLQErrorReason("max_attempts")
	require.NoError(t, err)
	assert.Equal(t, OutboxDLQReasonMaxAttempts, reason)

	_, err = ParseOutboxDLQErrorReason("MAX_ATTEMPTS")
	assert.EqualError(t, err, `invalid dlq error reason "MAX_ATTEMPTS"`)
}

func TestParseTenantTypeNormalizes(t *testing.T) {
	tt, err := ParseTenantType("  supplier ")
	require.NoError(t, err)
	assert.Equal(t, TenantTypeSupplier, tt)

	_, err = ParseTenantType("vendor")
	assert.Error(t, err)
}

func TestEventTypesAreValid(t *testing.T) {
	for _, et := range validOutboxEventTypes {
		assert.True(t, et.IsValid(), et)
		parsed, err := ParseOutboxEventType(string(et))
		require.NoError(t, err)
		assert.Equal(t, et, parsed)
	}
	assert.False(t, OutboxEventType("order_created").IsValid())
}
