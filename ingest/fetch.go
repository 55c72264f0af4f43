package ingest

import (
	"context"

	"github.com/biograph/bdk/resource"
	"github.com/pkg/errors"
)

// FetchMain refreshes the bronze cache for the selected datasets without
// mapping anything.
type FetchMain struct {
	CacheDir string `help:"Bronze cache directory."`
	Resource string `help:"Resource to fetch (empty fetches every resource)."`
	Dataset  string `help:"Dataset within the resource (empty fetches all of it)."`
	Force    bool   `help:"Bypass change detection and refetch."`
}

// NewFetchMain returns a FetchMain with default values.
func NewFetchMain() *FetchMain {
	return &FetchMain{CacheDir: "bronze"}
}

// Run ensures every selected dataset's cache entry is current.
func (m *FetchMain) Run() error {
	logger := newLogger()
	br, err := openCatalog(m.CacheDir, logger)
	if err != nil {
		return err
	}
	defer br.Close()

	datasets, err := selectDatasets(m.Resource, m.Dataset)
	if err != nil {
		return err
	}
	var opts []resource.RunOption
	if m.Force {
		opts = append(opts, resource.ForceRefresh())
	}
	ctx := context.Background()
	for _, d := range datasets {
		entry, err := d.Ensure(ctx, opts...)
		if err != nil {
			return errors.Wrapf(err, "fetching %s/%s", d.Resource, d.Name)
		}
		logger.Printf("%s/%s: %d rows in %d files (key %s)", d.Resource, d.Name, entry.Rows, len(entry.Files), entry.Key)
	}
	return nil
}
