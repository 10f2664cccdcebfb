package wsadapter

import "testing"

func TestOriginsAllowsExactMatch(t *testing.T) {
	o := Origins{Allowed: []string{"https://example.com"}}
	if !o.allows("https://example.com") {
		t.Fatal("expected exact origin match to be allowed")
	}
	if o.allows("https://evil.example.com") {
		t.Fatal("expected unrelated origin to be rejected")
	}
}

func TestOriginsAllowsLocalhost(t *testing.T) {
	o := Origins{AllowLocalhost: true}
	for _, origin := range []string{"http://localhost:3000", "http://127.0.0.1:8080"} {
		if !o.allows(origin) {
			t.Fatalf("expected %s to be allowed as localhost", origin)
		}
	}
	if o.allows("http://example.com") {
		t.Fatal("expected non-localhost origin to be rejected when only localhost is allowed")
	}
}

func TestOriginsAllowsPrivateSubnet(t *testing.T) {
	o := Origins{PrivateSubnets: []string{"10.0.0.0/8"}}
	if !o.allows("http://10.1.2.3:8080") {
		t.Fatal("expected origin inside the private subnet to be allowed")
	}
	if o.allows("http://8.8.8.8") {
		t.Fatal("expected origin outside the private subnet to be rejected")
	}
}

func TestOriginsRejectsByDefault(t *testing.T) {
	o := Origins{}
	if o.allows("https://anything.example") {
		t.Fatal("expected an empty Origins to allow nothing")
	}
}

func TestIsLocalhostOriginRejectsMalformedURL(t *testing.T) {
	if isLocalhostOrigin("://not-a-url") {
		t.Fatal("expected malformed origin to be rejected, not treated as localhost")
	}
}

func TestIsPrivateOriginIgnoresInvalidCIDR(t *testing.T) {
	if isPrivateOrigin("http://10.0.0.1", []string{"not-a-cidr"}) {
		t.Fatal("expected an invalid CIDR entry to be skipped, not matched")
	}
}
