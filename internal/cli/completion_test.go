package cli

import (
	"fmt"
	"testing"
)

func TestSplitRemotePath(t *testing.T) {
	tests := []struct {
		in, dir, base string
	}{
		{"", "/", ""},
		{"/", "/", ""},
		{"/music/", "/music/", ""},
		{"/music/ta", "/music/", "ta"},
		{"talk", "/", "talk"},
	}
	for _, tt := range tests {
		dir, base := splitRemotePath(tt.in)
		if dir != tt.dir || base != tt.base {
			t.Errorf("splitRemotePath(%q) = %q, %q; want %q, %q", tt.in, dir, base, tt.dir, tt.base)
		}
	}
}

func TestFilterRemoteEntries(t *testing.T) {
	entries := []remoteEntry{
		{name: "talk.mp3"},
		{name: "talk.txt"},
		{name: "takes", dir: true},
		{name: "other.wav"},
	}
	got := filterRemoteEntries("nas", "/music/", "ta", entries)
	want := []string{"nas:/music/talk.mp3", "nas:/music/takes/"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("filterRemoteEntries() = %v, want %v", got, want)
	}

	many := make([]remoteEntry, 40)
	for i := range many {
		many[i] = remoteEntry{name: fmt.Sprintf("ep%02d.m4a", i)}
	}
	if got := filterRemoteEntries("nas", "/", "", many); len(got) != maxCompletions {
		t.Errorf("completions = %d, want %d", len(got), maxCompletions)
	}
	if got := filterRemoteEntries("nas", "/", "", many[:1]); got[0] != "nas:/ep00.m4a" {
		t.Errorf("root completion = %q", got[0])
	}
}

func TestUnescapeShellPath(t *testing.T) {
	if got := unescapeShellPath(`/My\ Show\ \(2024\)/a.mp3`); got != "/My Show (2024)/a.mp3" {
		t.Errorf("unescapeShellPath() = %q", got)
	}
}
