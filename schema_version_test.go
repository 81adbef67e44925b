package client

import "testing"

func TestSchemaVersionEqualAndCompatible(t *testing.T) {
	v1 := SchemaVersion{Major: 1, Minor: 2, Patch: 3}
	v2 := SchemaVersion{Major: 1, Minor: 2, Patch: 3}
	v3 := SchemaVersion{Major: 1, Minor: 9, Patch: 0}
	v4 := SchemaVersion{Major: 2, Minor: 0, Patch: 0}

	if !v1.Equal(v2) {
		t.Fatal("expected equal versions to be Equal")
	}
	if v1.Equal(v3) {
		t.Fatal("expected differing minor versions not to be Equal")
	}
	if !v1.IsCompatible(v3) {
		t.Fatal("expected same-major versions to be compatible")
	}
	if v1.IsCompatible(v4) {
		t.Fatal("expected differing-major versions not to be compatible")
	}
}

func TestSchemaVersionString(t *testing.T) {
	v := SchemaVersion{Major: 1, Minor: 2, Patch: 3}
	if got, want := v.String(), "1.2.3"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestNegotiateVersionNoServerVersion(t *testing.T) {
	ok, note := negotiateVersion(SchemaVersion{Major: 1}, nil)
	if !ok {
		t.Fatal("expected absent server version to be accepted")
	}
	if note == "" {
		t.Fatal("expected a warning note when server version is unknown")
	}
}

func TestNegotiateVersionEqual(t *testing.T) {
	v := SchemaVersion{Major: 1, Minor: 0, Patch: 0}
	ok, note := negotiateVersion(v, &v)
	if !ok || note != "" {
		t.Fatalf("expected equal versions accepted silently, got ok=%v note=%q", ok, note)
	}
}

func TestNegotiateVersionCompatibleButUnequal(t *testing.T) {
	current := SchemaVersion{Major: 1, Minor: 0, Patch: 0}
	server := SchemaVersion{Major: 1, Minor: 5, Patch: 2}
	ok, note := negotiateVersion(current, &server)
	if !ok {
		t.Fatal("expected same-major versions to be accepted")
	}
	if note == "" {
		t.Fatal("expected an informational note for compatible-but-unequal versions")
	}
}

func TestNegotiateVersionIncompatible(t *testing.T) {
	current := SchemaVersion{Major: 1, Minor: 0, Patch: 0}
	server := SchemaVersion{Major: 2, Minor: 0, Patch: 0}
	ok, note := negotiateVersion(current, &server)
	if ok {
		t.Fatal("expected differing-major versions to be rejected")
	}
	if note == "" {
		t.Fatal("expected a rejection note")
	}
}
