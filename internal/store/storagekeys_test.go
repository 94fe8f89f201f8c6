package store

import "testing"

func TestStorageKey(t *testing.T) {
	if got := StorageKey("sess", "auth_creds"); got != "sess:auth_creds" {
		t.Errorf("got %q", got)
	}
	if got := StorageKey("sess", KeyName("pre-key", "42")); got != "sess:pre-key-42" {
		t.Errorf("got %q", got)
	}
	if got := SessionPrefix("sess"); got != "sess:" {
		t.Errorf("got %q", got)
	}
}

func TestValidateSessionID(t *testing.T) {
	if err := ValidateSessionID("user-15551234567_1"); err != nil {
		t.Errorf("valid id rejected: %v", err)
	}
	if err := ValidateSessionID(""); err == nil {
		t.Error("empty id accepted")
	}
	if err := ValidateSessionID("a:b"); err == nil {
		t.Error("id with ':' accepted")
	}
}

func TestEscapeLike(t *testing.T) {
	cases := map[string]string{
		"plain":  "plain",
		"a%b":    `a\%b`,
		"a_b":    `a\_b`,
		`a\b`:    `a\\b`,
		`a\%_b`: `a\\\%\_b`,
	}
	for in, want := range cases {
		if got := escapeLike(in); got != want {
			t.Errorf("escapeLike(%q): got %q, want %q", in, got, want)
		}
	}
}
