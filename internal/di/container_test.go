package di

import "testing"

type greeter struct{ name string }

func TestContainer_LazyFactoryBuildsOnce(t *testing.T) {
	c := NewContainer()
	c.Register("name", "gno")

	calls := 0
	tok := NewToken[*greeter]("greeter")
	RegisterToken(c, tok, func(sr ServiceRegistry) *greeter {
		calls++
		return &greeter{name: sr.Get("name").(string)}
	})

	a := GetToken(c, tok)
	b := GetToken(c, tok)

	if a != b {
		t.Error("expected the same instance on repeated Get")
	}
	if calls != 1 {
		t.Errorf("factory calls = %d, want 1", calls)
	}
	if a.name != "gno" {
		t.Errorf("name = %s, want gno", a.name)
	}
}

func TestContainer_UnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown service")
		}
	}()
	NewContainer().Get("missing")
}

type namer interface{ Name() string }

func TestContainer_OptionalNilService(t *testing.T) {
	c := NewContainer()
	tok := NewToken[namer]("optional")
	RegisterToken(c, tok, func(ServiceRegistry) namer { return nil })

	if got := GetToken(c, tok); got != nil {
		t.Errorf("GetToken = %v, want nil", got)
	}
}
