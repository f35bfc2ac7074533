// Package backend is the registry through which weight providers plug
// their loaded networks into the pipeline. The core never parses weight
// files; a provider registers a loader (usually from an init function in a
// build-tagged package) that returns ready-to-call model handles.
package backend

import (
	"fmt"

	"github.com/stablegen/stablegen/pipeline"
)

// Loader builds the three model handles from a model directory.
type Loader func(dir string) (pipeline.Models, error)

var backends = make(map[string]Loader)

// Register installs a named loader. It panics if the name is taken.
func Register(name string, loader Loader) {
	if _, ok := backends[name]; ok {
		panic("backend: backend already registered: " + name)
	}
	backends[name] = loader
}

// Load tries each registered loader until one succeeds.
func Load(dir string) (pipeline.Models, error) {
	if len(backends) == 0 {
		return pipeline.Models{}, fmt.Errorf("backend: no weight backend compiled in")
	}

	var errs []error
	for name, loader := range backends {
		models, err := loader(dir)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		return models, nil
	}
	return pipeline.Models{}, fmt.Errorf("backend: no backend could load %s: %v", dir, errs)
}
