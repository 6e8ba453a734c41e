package provision_test

import (
	"strings"
	"testing"

	"github.com/Hazard-House/openclaw/internal/provision"
)

func TestNormalizeAgentID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Helper", "helper"},
		{"  My   Bot  ", "my-bot"},
		{"My\tBot", "my-bot"},
		{"Research/Analyst #2", "research-analyst-2"},
		{"snake_case-ok", "snake_case-ok"},
		{"--edge--", "edge"},
		{"Émile", "mile"},
		{"main", "main"},
		{"", ""},
		{"!!!", ""},
		{"日本", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := provision.NormalizeAgentID(tt.in); got != tt.want {
				t.Errorf("NormalizeAgentID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeAgentID_WhitespaceIndependent(t *testing.T) {
	want := provision.NormalizeAgentID("My Bot")
	for _, in := range []string{"My Bot", "  My   Bot  ", "My\n\nBot", "\tMy Bot\t"} {
		if got := provision.NormalizeAgentID(provision.SanitizeName(in)); got != want {
			t.Errorf("NormalizeAgentID(SanitizeName(%q)) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeAgentID_Length(t *testing.T) {
	got := provision.NormalizeAgentID(strings.Repeat("a", 100))
	if len(got) != provision.MaxAgentIDLength {
		t.Errorf("len = %d, want %d", len(got), provision.MaxAgentIDLength)
	}

	// Truncation never leaves a trailing dash.
	got = provision.NormalizeAgentID(strings.Repeat("a", 63) + " b")
	if strings.HasSuffix(got, "-") {
		t.Errorf("NormalizeAgentID left trailing dash: %q", got)
	}
}

func TestSanitizeName(t *testing.T) {
	if got := provision.SanitizeName("  Ada \t Lovelace \n"); got != "Ada Lovelace" {
		t.Errorf("SanitizeName() = %q, want %q", got, "Ada Lovelace")
	}
}
