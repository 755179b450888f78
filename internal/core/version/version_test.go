package version

import (
	"strings"
	"testing"
)

func TestInfo_Defaults(t *testing.T) {
	b := Info()
	if b.Service != Service || b.Version != "dev" || b.Go == "" {
		t.Fatalf("unexpected build %+v", b)
	}
	if !strings.HasPrefix(b.String(), "moviesync-etl dev (") {
		t.Fatalf("String() = %q", b.String())
	}
}
