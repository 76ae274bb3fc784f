package tool

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUIDV7(t *testing.T) {
	id, err := uuid.Parse(GenerateUUIDV7())
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), id.Version())
}

func TestDateString(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	require.Equal(t, "2025-01-01", DateString(time.Date(2025, 1, 2, 8, 0, 0, 0, loc)))
	require.Equal(t, "2025-01-02", FixedClock(time.Date(2025, 1, 2, 9, 0, 0, 0, loc))().Format(time.DateOnly))
}
