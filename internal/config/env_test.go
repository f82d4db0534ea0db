// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		envValue string
		envSet   bool
		want     string
	}{
		{name: "environment variable set", key: "TEST_TC_STRING", envValue: "from-env", envSet: true, want: "from-env"},
		{name: "environment variable not set", key: "TEST_TC_STRING_UNSET", want: "default"},
		{name: "environment variable empty string", key: "TEST_TC_STRING_EMPTY", envValue: "", envSet: true, want: "default"},
		{name: "sensitive variable", key: "TEST_TC_API_KEY", envValue: "secret123", envSet: true, want: "secret123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv(tt.key, tt.envValue)
			}
			if got := ParseString(tt.key, "default"); got != tt.want {
				t.Errorf("ParseString() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true}, {"1", true}, {"YES", true},
		{"false", false}, {"0", false}, {"no", false},
		{"maybe", true}, // invalid falls back to default
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_TC_BOOL", tt.value)
			if got := ParseBool("TEST_TC_BOOL", true); got != tt.want {
				t.Errorf("ParseBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	t.Setenv("TEST_TC_DUR", "750ms")
	if got := ParseDuration("TEST_TC_DUR", time.Second); got != 750*time.Millisecond {
		t.Errorf("ParseDuration() = %v, want 750ms", got)
	}
	t.Setenv("TEST_TC_DUR", "soon")
	if got := ParseDuration("TEST_TC_DUR", time.Second); got != time.Second {
		t.Errorf("ParseDuration() with invalid value = %v, want default", got)
	}
}

func TestParseFloat(t *testing.T) {
	t.Setenv("TEST_TC_FLOAT", "0.25")
	if got := ParseFloat("TEST_TC_FLOAT", 1); got != 0.25 {
		t.Errorf("ParseFloat() = %v, want 0.25", got)
	}
	t.Setenv("TEST_TC_FLOAT", "abc")
	if got := ParseFloat("TEST_TC_FLOAT", 1); got != 1 {
		t.Errorf("ParseFloat() with invalid value = %v, want default", got)
	}
}

func TestParseList(t *testing.T) {
	t.Setenv("TEST_TC_LIST", "piper  --model en_US")
	got := ParseList("TEST_TC_LIST", nil)
	if len(got) != 3 || got[0] != "piper" || got[2] != "en_US" {
		t.Errorf("ParseList() = %q", got)
	}
	t.Setenv("TEST_TC_LIST", "   ")
	if got := ParseList("TEST_TC_LIST", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Errorf("ParseList() with blank value = %q, want default", got)
	}
}
