package module

import (
	"context"
	"testing"
	"time"

	phttp "moviesync/internal/platform/net/http"
	kit "moviesync/internal/platform/testkit"
)

// Leaser stands in for a port interface such as a checkpoint store
type Leaser interface {
	Acquire(ctx context.Context, owner string, ttl time.Duration) (bool, error)
}

type leaser struct{ holder string }

func (l *leaser) Acquire(_ context.Context, owner string, _ time.Duration) (bool, error) {
	if l.holder != "" && l.holder != owner {
		return false, nil
	}
	l.holder = owner
	return true, nil
}

type bundleModule struct {
	name  string
	ports any
}

func (m bundleModule) Name() string             { return m.name }
func (m bundleModule) Ports() PortSet           { return m.ports }
func (m bundleModule) MountRoutes(phttp.Router) {}

func TestPortsOf(t *testing.T) {
	t.Parallel()

	type Ports struct {
		Key   string
		Store Leaser
	}
	type hidden struct {
		store Leaser
	}
	l := &leaser{}

	cases := []struct {
		name  string
		ports any
		ok    bool
	}{
		{"nil bundle", nil, false},
		{"direct value", Leaser(l), true},
		{"exported field", Ports{Key: "postgresql_films", Store: l}, true},
		{"nil exported field", Ports{Key: "postgresql_films"}, false},
		{"unexported field", hidden{store: l}, false},
		{"non-struct bundle", 42, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := PortsOf[Leaser](bundleModule{name: "checkpoint", ports: tc.ports})
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != Leaser(l) {
				t.Fatalf("got %v, want the bundled leaser", got)
			}
		})
	}
}

func TestPortsOf_WholeBundle(t *testing.T) {
	t.Parallel()

	type Ports struct{ Store Leaser }
	m := bundleModule{name: "checkpoint", ports: Ports{Store: &leaser{holder: "a"}}}

	p := MustPortsOf[Ports](m)
	ok, err := p.Store.Acquire(context.Background(), "b", time.Minute)
	if err != nil || ok {
		t.Fatalf("acquire by non-holder: ok=%v err=%v", ok, err)
	}
}

func TestMustPortsOf_PanicsWithModuleName(t *testing.T) {
	t.Parallel()

	m := bundleModule{name: "deadletter"}
	defer func() {
		msg, _ := recover().(string)
		kit.MustContain(t, msg, "deadletter")
		kit.MustContain(t, msg, "requested port not found")
	}()
	_ = MustPortsOf[Leaser](m)
	t.Fatal("MustPortsOf did not panic")
}
