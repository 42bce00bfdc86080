package auth

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseRole(t *testing.T) {
	for _, in := range []string{"user", "ADMIN", " cse_expert "} {
		if _, err := ParseRole(in); err != nil {
			t.Fatalf("ParseRole(%q): %v", in, err)
		}
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestParseAccessLevel(t *testing.T) {
	l, err := ParseAccessLevel("Limited")
	if err != nil || l != AccessLimited {
		t.Fatalf("unexpected result: %q, %v", l, err)
	}
	if _, err := ParseAccessLevel("partial"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestAccessMap_GetDefaultsToNone(t *testing.T) {
	m := AccessMap{"u1": AccessFull, "u2": AccessLevel("bogus")}
	if m.Get("u1") != AccessFull {
		t.Fatalf("expected full")
	}
	if m.Get("missing") != AccessNone {
		t.Fatalf("expected none for absent record")
	}
	if m.Get("u2") != AccessNone {
		t.Fatalf("expected none for invalid stored value")
	}
	var nilMap AccessMap
	if nilMap.Get("x") != AccessNone {
		t.Fatalf("expected none from nil map")
	}
}

func TestAccessMap_Clone(t *testing.T) {
	m := AccessMap{"u1": AccessFull}
	c := m.Clone()
	c["u1"] = AccessNone
	if m.Get("u1") != AccessFull {
		t.Fatalf("clone aliased original")
	}
}

func TestSameAs(t *testing.T) {
	name := "Ada"
	other := "Grace"
	a := &Identity{ID: "1", Email: "a@x.com", DisplayName: &name}
	b := &Identity{ID: "1", Email: "a@x.com", DisplayName: &name}
	c := &Identity{ID: "1", Email: "a@x.com", DisplayName: &other}
	if !SameAs(a, b) || SameAs(a, c) || SameAs(a, nil) || !SameAs(nil, nil) {
		t.Fatalf("unexpected SameAs results")
	}
}

func TestIdentity_Name(t *testing.T) {
	if (Identity{Email: "e@x.com"}).Name() != "e@x.com" {
		t.Fatalf("expected email fallback")
	}
	n := "Eve"
	if (Identity{Email: "e@x.com", DisplayName: &n}).Name() != "Eve" {
		t.Fatalf("expected display name")
	}
}

func TestIsAccessDenial(t *testing.T) {
	if !IsAccessDenial(fmt.Errorf("wrap: %w", ErrRoleTransport)) {
		t.Fatalf("role transport must render as denial")
	}
	if IsAccessDenial(ErrWriteTransport) || IsAccessDenial(errors.New("x")) {
		t.Fatalf("unexpected denial classification")
	}
}
