package gatekeeper

import (
	"context"
	"testing"
)

func noopHandler(_ context.Context, _ *RequestContext) (Response, error) {
	return Response{}, nil
}

func TestRegistryRejectsDuplicateRoute(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	a := NewEndpoint("widgets", "", GET, noopHandler, []Characteristic{PublicUnownedData})
	b := NewEndpoint("widgets", "", GET, noopHandler, []Characteristic{PublicUnownedData})

	if err := reg.Register(a); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := reg.Register(b); err == nil {
		t.Fatalf("expected duplicate (path, verb) registration to fail")
	}
}

func TestRegistryAllowsSamePathDifferentVerb(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	get := NewEndpoint("widgets", "", GET, noopHandler, []Characteristic{PublicUnownedData})
	post := NewEndpoint("widgets", "", POST, noopHandler, []Characteristic{PublicUnownedData})

	if err := reg.Register(get); err != nil {
		t.Fatalf("register get: %v", err)
	}
	if err := reg.Register(post); err != nil {
		t.Fatalf("register post: %v", err)
	}
}

func TestRegistryRejectsOwnedDataWithoutPredicate(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	for _, c := range []Characteristic{PrivateOwnedData, PublicOwnedData} {
		e := NewEndpoint("accounts", string(c), GET, noopHandler, []Characteristic{c})
		if err := reg.Register(e); err == nil {
			t.Fatalf("expected %s endpoint without an ownership predicate to be rejected", c)
		}
	}
}

func TestRegistryAcceptsOwnedDataWithPredicate(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	e := NewEndpoint("accounts", "", GET, noopHandler,
		[]Characteristic{PrivateOwnedData},
		WithOwnershipPredicate(func(context.Context, *RequestContext) bool { return true }))
	if err := reg.Register(e); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestRegisterPanicsAfterFreeze(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.Register(NewEndpoint("widgets", "", GET, noopHandler, []Characteristic{PublicUnownedData})); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.freeze(); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected Register to panic once the registry is frozen")
		}
	}()
	_ = reg.Register(NewEndpoint("gadgets", "", GET, noopHandler, []Characteristic{PublicUnownedData}))
}

func TestFreezeRejectsEmptyRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.freeze(); err == nil {
		t.Fatalf("expected freeze to fail with no registered endpoints")
	}
}

func TestCanonicalPathCollapsesSlashes(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                "/",
		"/widgets/":       "/widgets",
		"widgets//update": "/widgets/update",
		"/widgets/:id":    "/widgets/:id",
		"///a///b///c//":  "/a/b/c",
	}
	for method, want := range cases {
		if got := CanonicalPath("", method); got != want {
			t.Fatalf("CanonicalPath(%q): got %q, want %q", method, got, want)
		}
	}
}
