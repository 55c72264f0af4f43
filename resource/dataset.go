package resource

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/biograph/bdk"
	"github.com/biograph/bdk/bronze"
	"github.com/pkg/errors"
)

// Dataset binds one declaration to a compiled entity schema and a bronze
// cache. It is the unit of ingestion: Rows streams filtered, transformed
// records; Entities maps them through the schema. A Dataset is shared
// read-only after registration; per-run behavior comes in through RunOptions.
type Dataset struct {
	Resource string
	Name     string
	Decl     *Decl
	Builder  *bdk.EntityBuilder
	Bronze   *bronze.Bronze
	Logger   *log.Logger

	filters   []compiledFilter
	transform RowTransform
	idFields  []string
}

// RunOption adjusts a single Ensure/Rows/Entities call. Options never touch
// the dataset or its builder, so concurrent runs with different settings are
// safe.
type RunOption func(*runConfig)

type runConfig struct {
	force  bool
	strict bool
}

// ForceRefresh bypasses change detection for this call and refetches the
// source body.
func ForceRefresh() RunOption {
	return func(c *runConfig) { c.force = true }
}

// Strict surfaces mapping failures as errors for this call instead of
// degrading them to absent values.
func Strict() RunOption {
	return func(c *runConfig) { c.strict = true }
}

func runOptions(opts []RunOption) runConfig {
	var c runConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// NewDataset compiles the declaration's filters and resolves its transform.
func NewDataset(resourceName, name string, decl *Decl, builder *bdk.EntityBuilder, br *bronze.Bronze, logger *log.Logger) (*Dataset, error) {
	if err := decl.Validate(); err != nil {
		return nil, errors.Wrapf(err, "dataset %s/%s", resourceName, name)
	}
	filters, err := compileFilters(decl.Filters)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s/%s", resourceName, name)
	}
	transform, err := lookupTransform(decl.Transform)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s/%s", resourceName, name)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Dataset{
		Resource:  resourceName,
		Name:      name,
		Decl:      decl,
		Builder:   builder,
		Bronze:    br,
		Logger:    logger,
		filters:   filters,
		transform: transform,
		idFields:  identifierFields(builder),
	}, nil
}

// identifierFields lists the raw fields the schema's identifier specs read,
// in spec order. Used to report which fields were empty when a row drops.
func identifierFields(b *bdk.EntityBuilder) []string {
	if b == nil || b.Identifiers == nil {
		return nil
	}
	seen := map[string]bool{}
	var fields []string
	for _, spec := range b.Identifiers.Specs {
		f := spec.Value.Field()
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		fields = append(fields, f)
	}
	return fields
}

// Spec is the dataset's bronze fetch/convert spec.
func (d *Dataset) Spec() bronze.Spec {
	return d.Decl.Spec(d.Resource, d.Name)
}

func (d *Dataset) spec(cfg runConfig) bronze.Spec {
	s := d.Spec()
	s.ForceRefresh = cfg.force
	return s
}

// Ensure makes the dataset's cache entry current without reading it.
func (d *Dataset) Ensure(ctx context.Context, opts ...RunOption) (*bronze.Entry, error) {
	if d.Bronze == nil {
		return nil, errors.Errorf("dataset %s/%s has no cache configured", d.Resource, d.Name)
	}
	return d.Bronze.Ensure(ctx, d.spec(runOptions(opts)))
}

// Rows streams the dataset's cached records with filters and the declared
// transform applied. The caller owns the returned source.
func (d *Dataset) Rows(ctx context.Context, opts ...RunOption) (bdk.RecordSource, error) {
	if d.Bronze == nil {
		return nil, errors.Errorf("dataset %s/%s has no cache configured", d.Resource, d.Name)
	}
	src, err := d.Bronze.Open(ctx, d.spec(runOptions(opts)))
	if err != nil {
		return nil, err
	}
	return &filteredRows{d: d, src: src}, nil
}

// filteredRows applies the dataset's filters, subfield normalization and
// transform on top of the raw cache stream.
type filteredRows struct {
	d   *Dataset
	src bdk.RecordSource
}

func (f *filteredRows) Record() (bdk.Row, error) {
	for {
		row, err := f.src.Record()
		if err != nil {
			return nil, err
		}
		if !f.match(row) {
			continue
		}
		f.normalize(row)
		if f.d.transform != nil {
			row = f.d.transform(row)
			if row == nil {
				continue
			}
		}
		return row, nil
	}
}

func (f *filteredRows) Close() error { return f.src.Close() }

func (f *filteredRows) match(row bdk.Row) bool {
	for _, c := range f.d.filters {
		if !c.Match(row) {
			return false
		}
	}
	return true
}

// normalize rewrites declared subfield separators to the schema default so
// downstream Split pipelines see one delimiter.
func (f *filteredRows) normalize(row bdk.Row) {
	for field, sep := range f.d.Decl.SubfieldSeparator {
		if sep == "" || sep == bdk.StandardDelimiter {
			continue
		}
		if v, ok := row[field]; ok {
			row[field] = strings.ReplaceAll(v, sep, bdk.StandardDelimiter)
		}
	}
}

// EntityStream yields mapped entities one at a time. Next returns io.EOF
// when the dataset is exhausted.
type EntityStream struct {
	d       *Dataset
	src     bdk.RecordSource
	strict  bool
	read    int64
	built   int64
	dropped int64
}

// Entities opens the dataset and maps every surviving row through the
// schema. Rows the schema drops (no identifiers) are logged with their row
// context and counted, not errors, unless the run is strict.
func (d *Dataset) Entities(ctx context.Context, opts ...RunOption) (*EntityStream, error) {
	if d.Builder == nil {
		return nil, errors.Errorf("dataset %s/%s has no schema", d.Resource, d.Name)
	}
	cfg := runOptions(opts)
	src, err := d.Rows(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &EntityStream{d: d, src: src, strict: cfg.strict}, nil
}

// Next returns the next mapped entity, io.EOF at end of data.
func (s *EntityStream) Next() (*bdk.Entity, error) {
	for {
		row, err := s.src.Record()
		if err == io.EOF {
			if s.dropped > 0 {
				s.d.Logger.Printf("%s/%s: %d rows read, %d entities, %d dropped",
					s.d.Resource, s.d.Name, s.read, s.built, s.dropped)
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		s.read++
		ent, err := s.build(row)
		if err != nil {
			return nil, errors.Wrapf(err, "%s/%s row %d", s.d.Resource, s.d.Name, s.read)
		}
		if ent == nil {
			s.dropped++
			s.d.Logger.Printf("%s/%s: dropping row %d, no identifiers resolved (%s)",
				s.d.Resource, s.d.Name, s.read, rowContext(row, s.d.idFields))
			continue
		}
		s.built++
		return ent, nil
	}
}

func (s *EntityStream) build(row bdk.Row) (*bdk.Entity, error) {
	if s.strict {
		return s.d.Builder.BuildStrict(row)
	}
	return s.d.Builder.Build(row)
}

// rowContext renders a dropped row's identifying fields for the log. When
// the schema names no identifier fields, the first few row fields stand in
// so the log line still pins down the row.
func rowContext(row bdk.Row, fields []string) string {
	if len(fields) == 0 {
		for f := range row {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		if len(fields) > 4 {
			fields = fields[:4]
		}
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%q", f, row[f]))
	}
	return strings.Join(parts, " ")
}

// Stats reports rows read, entities built and rows dropped so far.
func (s *EntityStream) Stats() (read, built, dropped int64) {
	return s.read, s.built, s.dropped
}

// Close releases the underlying stream.
func (s *EntityStream) Close() error { return s.src.Close() }

// Resource groups the datasets of one upstream source.
type Resource struct {
	Name     string
	Meta     Metadata
	datasets map[string]*Dataset
	order    []string
}

// NewResource builds an empty resource.
func NewResource(name string, meta Metadata) *Resource {
	return &Resource{Name: name, Meta: meta, datasets: map[string]*Dataset{}}
}

// Add registers a dataset under its name. Adding a duplicate name panics.
func (r *Resource) Add(d *Dataset) *Resource {
	if _, ok := r.datasets[d.Name]; ok {
		panic(errors.Errorf("resource %s: dataset %q added twice", r.Name, d.Name))
	}
	r.datasets[d.Name] = d
	r.order = append(r.order, d.Name)
	return r
}

// Dataset looks up a dataset by name.
func (r *Resource) Dataset(name string) (*Dataset, bool) {
	d, ok := r.datasets[name]
	return d, ok
}

// Datasets returns the resource's datasets in registration order.
func (r *Resource) Datasets() []*Dataset {
	out := make([]*Dataset, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.datasets[n])
	}
	return out
}
