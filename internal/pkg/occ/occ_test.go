package occ

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAt(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	sym, err := FormatAt("AFRM", "03/21", "C", 40.5, now)
	require.NoError(t, err)
	assert.Equal(t, "AFRM250321C00040500", sym)

	sym, err = FormatAt("spy", "6/20", "p", 420, now)
	require.NoError(t, err)
	assert.Equal(t, "SPY250620P00420000", sym)
}

func TestFormatAtRejectsBadInput(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := FormatAt("", "03/21", "C", 40, now)
	assert.Error(t, err)

	_, err = FormatAt("AFRM", "June 2025", "C", 40, now)
	assert.Error(t, err)

	_, err = FormatAt("AFRM", "03/21", "X", 40, now)
	assert.Error(t, err)

	_, err = FormatAt("AFRM", "03/21", "C", 0, now)
	assert.Error(t, err)
}

func TestNearestFriday(t *testing.T) {
	// Tuesday -> same week Friday.
	assert.Equal(t, "06/20", NearestFriday(time.Date(2025, 6, 17, 10, 0, 0, 0, time.UTC)))
	// Friday stays put.
	assert.Equal(t, "06/20", NearestFriday(time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC)))
	// Saturday rolls to next week.
	assert.Equal(t, "06/27", NearestFriday(time.Date(2025, 6, 21, 10, 0, 0, 0, time.UTC)))
}
