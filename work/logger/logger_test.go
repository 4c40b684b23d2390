package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelInfo, ParseLevel("INFO"))
	assert.Equal(t, LevelWarn, ParseLevel("Warning"))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestLevelRoundTrip(t *testing.T) {
	for _, l := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		assert.Equal(t, l, ParseLevel(l.String()))
	}
}

func TestSetLevel(t *testing.T) {
	l := New("DEBUG")
	assert.Equal(t, "DEBUG", l.GetLevel())
	l.SetLevel("ERROR")
	assert.Equal(t, "ERROR", l.GetLevel())
}

func TestPackageSetLevelTakesLevelName(t *testing.T) {
	defer SetLevel("info")
	SetLevel("error")
	assert.Equal(t, "ERROR", std.GetLevel())
	SetLevel("warning")
	assert.Equal(t, "WARN", std.GetLevel())
}
