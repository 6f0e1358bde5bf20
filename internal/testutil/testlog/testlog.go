package testlog

import (
	"testing"

	"github.com/rs/zerolog"
)

// Start returns a logger wired to t, so log output shows up only for
// failing tests or under -v.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
}
