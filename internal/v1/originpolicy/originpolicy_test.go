package originpolicy

import "testing"

func TestNoWhitelistAdmitsEverything(t *testing.T) {
	p := New(nil)
	if !p.Allow("https://anything.example") {
		t.Fatal("empty policy should admit all origins")
	}
	if !p.Allow("") {
		t.Fatal("empty policy should admit a missing origin")
	}
}

func TestWildcardAdmitsAll(t *testing.T) {
	p := New([]string{"*"})
	if !p.Allow("https://anything.example") {
		t.Fatal("* entry should admit all origins")
	}
}

func TestExactOriginMatchWithDefaultPorts(t *testing.T) {
	p := New([]string{"https://example.com"})

	cases := map[string]bool{
		"https://example.com":     true,
		"https://example.com:443": true,
		"http://example.com":      false,
		"https://sub.example.com": false,
	}
	for origin, want := range cases {
		if got := p.Allow(origin); got != want {
			t.Errorf("Allow(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestDNSSuffixWildcard(t *testing.T) {
	p := New([]string{"*.example.com"})

	cases := map[string]bool{
		"https://a.example.com": true,
		"https://example.com":   true,
		"https://evil.com":      false,
	}
	for origin, want := range cases {
		if got := p.Allow(origin); got != want {
			t.Errorf("Allow(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestHostPortEntry(t *testing.T) {
	p := New([]string{"example.com:8443"})

	if !p.Allow("https://example.com:8443") {
		t.Fatal("expected exact host:port match to be admitted")
	}
	if p.Allow("https://example.com:443") {
		t.Fatal("expected mismatched port to be rejected")
	}
	if p.Allow("https://example.com") {
		t.Fatal("expected default-port origin to be rejected when entry pins 8443")
	}
}

func TestBareHostIgnoresPort(t *testing.T) {
	p := New([]string{"example.com"})

	if !p.Allow("https://example.com:9999") {
		t.Fatal("bare host entry should ignore port")
	}
	if p.Allow("https://other.com") {
		t.Fatal("bare host entry should not match a different host")
	}
}

func TestMissingOriginRejectedWhenWhitelistConfigured(t *testing.T) {
	p := New([]string{"https://good.example"})
	if p.Allow("") {
		t.Fatal("missing Origin with a configured whitelist should be rejected")
	}
}

func TestConfigured(t *testing.T) {
	if New(nil).Configured() {
		t.Fatal("nil entries should report unconfigured")
	}
	if !New([]string{"*"}).Configured() {
		t.Fatal("non-empty entries should report configured")
	}
}

func TestParseOriginsEnv(t *testing.T) {
	got := ParseOriginsEnv(" https://a.example , *.b.example ,,")
	want := []string{"https://a.example", "*.b.example"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
