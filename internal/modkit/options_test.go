package modkit

import "testing"

func TestWithName(t *testing.T) {
	t.Parallel()
	var c buildCfg
	WithName("etl")(&c)
	if c.name != "etl" {
		t.Fatalf("expected name=etl got=%q", c.name)
	}
}

func TestWithPorts_GenericStoresConcreteType(t *testing.T) {
	t.Parallel()

	type Ports struct {
		Hello string
		N     int
	}

	var c buildCfg
	WithPorts(Ports{Hello: "world", N: 7})(&c)

	ps, ok := c.ports.(Ports)
	if !ok {
		t.Fatalf("expected ports of type Ports got %T", c.ports)
	}
	if ps.Hello != "world" || ps.N != 7 {
		t.Fatalf("unexpected ports value: %+v", ps)
	}
}

func TestWithPorts_LastWins(t *testing.T) {
	t.Parallel()

	var c buildCfg
	WithPorts(1)(&c)
	WithPorts("two")(&c)
	if s, ok := c.ports.(string); !ok || s != "two" {
		t.Fatalf("expected last ports to win, got %#v", c.ports)
	}
}
