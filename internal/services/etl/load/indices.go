package load

import (
	"embed"
	"encoding/json"

	perr "moviesync/internal/platform/errors"
	"moviesync/internal/services/etl/domain"

	"gopkg.in/yaml.v3"
)

//go:embed indices/*.yaml
var indexFS embed.FS

// Definition returns the create-index body for name as JSON
func Definition(name string) ([]byte, error) {
	raw, err := indexFS.ReadFile("indices/" + name + ".yaml")
	if err != nil {
		return nil, perr.NotFoundf("no index definition for %q", name)
	}
	var v map[string]any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "index %s: decode yaml", name)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "index %s: encode json", name)
	}
	return b, nil
}

// MustDefinitions loads the body of every destination index or panics
func MustDefinitions() map[string][]byte {
	out := make(map[string][]byte, len(domain.Indices))
	for _, name := range domain.Indices {
		b, err := Definition(name)
		if err != nil {
			panic(err)
		}
		out[name] = b
	}
	return out
}
