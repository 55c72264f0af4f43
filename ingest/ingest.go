// Package ingest holds the Main structs behind the bdk subcommands. Each
// Main is a flag-taggable struct with a Run method; the cmd package binds
// them to cobra via commandeer.
package ingest

import (
	"log"
	"os"
	"sync"

	"github.com/biograph/bdk/bronze"
	"github.com/biograph/bdk/catalog"
	"github.com/biograph/bdk/resource"
	"github.com/pkg/errors"
)

var registerOnce sync.Once

// openCatalog opens the cache at dir and registers the built-in resources.
// Registration happens once per process regardless of how many Mains run.
func openCatalog(dir string, logger *log.Logger) (*bronze.Bronze, error) {
	br, err := bronze.New(dir, bronze.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	var regErr error
	registerOnce.Do(func() {
		regErr = catalog.Register(br, logger)
	})
	if regErr != nil {
		br.Close()
		return nil, regErr
	}
	return br, nil
}

// selectDatasets resolves the resource/dataset selection flags against the
// registry. Empty selectors mean "all".
func selectDatasets(resourceName, datasetName string) ([]*resource.Dataset, error) {
	var names []string
	if resourceName == "" {
		names = resource.Names()
	} else {
		names = []string{resourceName}
	}
	var out []*resource.Dataset
	for _, rn := range names {
		r, ok := resource.Get(rn)
		if !ok {
			return nil, errors.Errorf("unknown resource %q", rn)
		}
		if datasetName == "" {
			out = append(out, r.Datasets()...)
			continue
		}
		d, ok := r.Dataset(datasetName)
		if !ok {
			return nil, errors.Errorf("resource %q has no dataset %q", rn, datasetName)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, errors.New("no datasets selected")
	}
	return out, nil
}

func newLogger() *log.Logger {
	return log.New(os.Stderr, "", log.LstdFlags)
}
