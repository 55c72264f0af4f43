package ingest

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/biograph/bdk/resource"
	"github.com/pkg/errors"
)

// RunMain maps the selected datasets through their schemas and writes the
// resulting entities as JSON lines.
type RunMain struct {
	CacheDir string `help:"Bronze cache directory."`
	Resource string `help:"Resource to run (empty runs every resource)."`
	Dataset  string `help:"Dataset within the resource (empty runs all of it)."`
	Limit    int    `help:"Stop after this many entities per dataset (0 means no limit)."`
	Strict   bool   `help:"Fail on mapping errors instead of dropping records."`
	Force    bool   `help:"Bypass change detection and refetch."`

	stdout io.Writer
}

// NewRunMain returns a RunMain with default values.
func NewRunMain() *RunMain {
	return &RunMain{CacheDir: "bronze", stdout: os.Stdout}
}

// Run streams entities from every selected dataset.
func (m *RunMain) Run() error {
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
	if m.Strict {
		opts = append(opts, resource.Strict())
	}
	enc := json.NewEncoder(m.stdout)
	ctx := context.Background()
	for _, d := range datasets {
		if err := m.runOne(ctx, d, enc, opts); err != nil {
			return errors.Wrapf(err, "running %s/%s", d.Resource, d.Name)
		}
	}
	return nil
}

func (m *RunMain) runOne(ctx context.Context, d *resource.Dataset, enc *json.Encoder, opts []resource.RunOption) error {
	stream, err := d.Entities(ctx, opts...)
	if err != nil {
		return err
	}
	defer stream.Close()

	n := 0
	for {
		ent, err := stream.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := enc.Encode(ent); err != nil {
			return err
		}
		n++
		if m.Limit > 0 && n >= m.Limit {
			return nil
		}
	}
}
