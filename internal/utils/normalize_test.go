package utils

import "testing"

func TestNormalizeContent(t *testing.T) {
	cases := map[string]string{
		"  Hello,   WORLD!! ": "hello world",
		"spam":                "spam",
		"a  b\tc":             "a b c",
		"":                    "",
	}
	for input, want := range cases {
		if got := NormalizeContent(input); got != want {
			t.Fatalf("NormalizeContent(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestInviteCodes(t *testing.T) {
	codes := InviteCodes("join us https://discord.gg/abc123 or discord.com/invite/xyz")
	if len(codes) != 2 || codes[0] != "abc123" || codes[1] != "xyz" {
		t.Fatalf("unexpected codes %v", codes)
	}
	if codes := InviteCodes("no links here"); codes != nil {
		t.Fatalf("expected nil, got %v", codes)
	}
}

func TestContainsLink(t *testing.T) {
	if !ContainsLink("see https://example.com") {
		t.Fatalf("expected link detection")
	}
	if ContainsLink("plain text") {
		t.Fatalf("unexpected link detection")
	}
}
