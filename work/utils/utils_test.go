package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentIDDeterministic(t *testing.T) {
	a := ContentID("TF1", "http://host/live/1.ts")
	b := ContentID("TF1", "http://host/live/1.ts")
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)

	assert.NotEqual(t, a, ContentID("TF1", "http://host/live/2.ts"))
	assert.NotEqual(t, a, ContentID("TF2", "http://host/live/1.ts"))
}

func TestObfuscateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://host/live/user/pass/1.ts", "http://host/***"},
		{"http://host/get.php?username=u&password=p", "http://host/***?***"},
		{"http://host", "http://host"},
		{"http://host/path#frag", "http://host/***#***"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ObfuscateURL(tt.in), tt.in)
	}
}

func TestLogURL(t *testing.T) {
	raw := "http://host/live/user/pass/1.ts"
	assert.Equal(t, raw, LogURL(false, raw))
	assert.Equal(t, "http://host/***", LogURL(true, raw))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"FR | TF1", "FR_TF1"},
		{"News, Weather & Sport", "News_Weather_Sport"},
		{`The "Best" Channel`, "The_Best_Channel"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), tt.in)
	}
}
