package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		err   bool
	}{
		{"2026-10-01", time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC), false},
		{"2026-10-31T23:59:59Z", time.Date(2026, time.October, 31, 23, 59, 59, 0, time.UTC), false},
		{"2026-10-01T09:00:00+09:00", time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC), false},
		{"October", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tt := range tests {
		got, err := parseTime(tt.input)
		if tt.err {
			if err == nil {
				t.Errorf("parseTime(%q): expected error, got %v", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseTime(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseTime(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestReadBallot(t *testing.T) {
	ballot, err := readBallot(strings.NewReader(`{"favoriteAdaptations":["a"],"userInfo":{"gender":"male","age":20}}`), "-")
	if err != nil {
		t.Fatalf("readBallot error: %v", err)
	}
	if len(ballot.FavoriteAdaptations) != 1 || ballot.UserInfo.Age != 20 {
		t.Fatalf("unexpected ballot: %+v", ballot)
	}

	if _, err := readBallot(strings.NewReader(`{"favourites":[]}`), "-"); err == nil {
		t.Fatalf("unknown fields must be rejected")
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "mangavote dev") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}
