package bronze

import (
	"context"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/biograph/bdk"
	bdkcsv "github.com/biograph/bdk/csv"
	"github.com/biograph/bdk/excel"
	bdkjson "github.com/biograph/bdk/json"
	bdkxml "github.com/biograph/bdk/xml"
	"github.com/pkg/errors"
)

// Bronze is the change-detected, content-addressed cache substrate. One
// instance is shared by every dataset pipeline in a process; the only shared
// mutable state is the cache directory and the meta store, both safe for
// concurrent use.
type Bronze struct {
	dir    string
	meta   MetaStore
	http   Fetcher
	s3     Fetcher
	logger *log.Logger
}

// Option configures a Bronze under construction.
type Option func(*Bronze)

// WithMetaStore replaces the default bolt-backed meta store.
func WithMetaStore(ms MetaStore) Option {
	return func(b *Bronze) { b.meta = ms }
}

// WithHTTPFetcher replaces the default HTTP fetcher (tests inject a fake).
func WithHTTPFetcher(f Fetcher) Option {
	return func(b *Bronze) { b.http = f }
}

// WithS3Fetcher enables s3:// URLs.
func WithS3Fetcher(f Fetcher) Option {
	return func(b *Bronze) { b.s3 = f }
}

// WithLogger sets the logger handed to fetchers and conversion.
func WithLogger(l *log.Logger) Option {
	return func(b *Bronze) { b.logger = l }
}

// New opens the cache rooted at dir, creating it if needed.
func New(dir string, opts ...Option) (*Bronze, error) {
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0755); err != nil {
		return nil, errors.Wrap(err, "creating cache directory")
	}
	b := &Bronze{dir: dir}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	if b.http == nil {
		b.http = NewHTTPFetcher(b.logger)
	}
	if b.meta == nil {
		ms, err := OpenBoltStore(filepath.Join(dir, "bronze-meta.db"))
		if err != nil {
			return nil, err
		}
		b.meta = ms
	}
	return b, nil
}

// Close releases the meta store.
func (b *Bronze) Close() error {
	return b.meta.Close()
}

// Entry describes one materialized cache entry.
type Entry struct {
	Key     string
	Files   []string
	Columns []string
	Rows    int64
}

func entryFromMeta(m *Meta) *Entry {
	return &Entry{Key: m.Key, Files: m.Files, Columns: m.Columns, Rows: m.Rows}
}

// Ensure makes the spec's converted cache entry current and returns it.
// When the remote is unchanged and the entry is intact, no body is
// downloaded; with force_refresh unset and fresh validators, the only
// network traffic is the change check itself.
func (b *Bronze) Ensure(ctx context.Context, spec Spec) (*Entry, error) {
	if spec.Format == "rda" {
		return nil, &bdk.UnsupportedFormatError{Format: spec.Format, URL: spec.URL}
	}
	key := spec.Key()

	var prev *Meta
	if !spec.ForceRefresh {
		m, err := b.meta.Get(key)
		if err != nil {
			return nil, err
		}
		if m != nil && b.entryIntact(m) {
			prev = m
		}
	}

	fetcher, err := b.fetcherFor(spec.URL)
	if err != nil {
		return nil, err
	}
	fetched, err := fetcher.FetchIfChanged(ctx, spec, prev, filepath.Join(b.dir, "tmp"))
	if err != nil {
		return nil, err
	}
	if fetched == nil {
		if prev == nil {
			// nothing cached to reuse: the server answered not-modified to
			// an unconditional request
			return nil, &bdk.DownloadError{
				URL:      spec.URL,
				Attempts: 1,
				Err:      errors.New("remote reported unchanged but no prior cache entry exists"),
			}
		}
		b.logger.Printf("bronze: %s unchanged, reusing %s", spec.URL, key)
		return entryFromMeta(prev), nil
	}
	defer os.Remove(fetched.Path)

	files, cols, rows, err := b.convert(spec, key, fetched.Path)
	if err != nil {
		return nil, err
	}
	m := &Meta{
		Key:          key,
		URL:          spec.URL,
		ETag:         fetched.ETag,
		LastModified: fetched.LastModified,
		Checksum:     fetched.Checksum,
		Files:        files,
		Columns:      cols,
		Rows:         rows,
		FetchedAt:    time.Now().UTC(),
	}
	if err := b.meta.Put(m); err != nil {
		return nil, err
	}
	b.logger.Printf("bronze: cached %s as %s (%d rows, %d files)", spec.URL, key, rows, len(files))
	return entryFromMeta(m), nil
}

// Open ensures the entry and returns a record stream over it.
func (b *Bronze) Open(ctx context.Context, spec Spec) (bdk.RecordSource, error) {
	entry, err := b.Ensure(ctx, spec)
	if err != nil {
		return nil, err
	}
	files := append([]string(nil), entry.Files...)
	return &multiRows{files: files}, nil
}

func (b *Bronze) entryIntact(m *Meta) bool {
	if len(m.Files) == 0 {
		return false
	}
	for _, f := range m.Files {
		if _, err := os.Stat(f); err != nil {
			return false
		}
	}
	return true
}

func (b *Bronze) fetcherFor(raw string) (Fetcher, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing url %s", raw)
	}
	switch u.Scheme {
	case "http", "https":
		return b.http, nil
	case "s3":
		if b.s3 == nil {
			return nil, errors.Errorf("s3 url %s but no s3 fetcher configured", raw)
		}
		return b.s3, nil
	default:
		return nil, errors.Errorf("unsupported url scheme %q in %s", u.Scheme, raw)
	}
}

// convert decodes the raw artifact into the columnar cache, one file per
// partition value (or a single file when unpartitioned).
func (b *Bronze) convert(spec Spec, key, rawPath string) (files []string, cols []string, rows int64, err error) {
	rc, err := openDecompressed(rawPath, spec.Compression)
	if err != nil {
		return nil, nil, 0, err
	}
	defer rc.Close()

	src, err := newFormatSource(rc, spec)
	if err != nil {
		return nil, nil, 0, err
	}
	defer src.Close()

	// The Parquet schema needs the column set before the first row is
	// written: declared field mapping wins, then the source's own header,
	// then the keys of the first record.
	var pending []bdk.Row
	cols = mappedColumns(spec)
	if cols == nil {
		if c, ok := src.(interface{ Columns() []string }); ok {
			cols = append([]string(nil), c.Columns()...)
			sort.Strings(cols)
		}
	}
	if cols == nil {
		first, rerr := src.Record()
		if rerr != nil && rerr != io.EOF {
			return nil, nil, 0, rerr
		}
		for c := range first {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		if rerr != io.EOF {
			pending = append(pending, first)
		}
	}

	base := filepath.Join(b.dir, spec.subdir())
	writers := map[string]*parquetWriter{}
	defer func() {
		if err != nil {
			for _, w := range writers {
				w.Abort()
			}
		}
	}()

	writerFor := func(rec bdk.Row) (*parquetWriter, error) {
		name := key + ".parquet"
		if len(spec.PartitionBy) > 0 {
			vals := make([]string, len(spec.PartitionBy))
			for i, f := range spec.PartitionBy {
				vals[i] = sanitize(rec[f])
			}
			name = filepath.Join(key, strings.Join(vals, "__")+".parquet")
		}
		path := filepath.Join(base, name)
		if w, ok := writers[path]; ok {
			return w, nil
		}
		w, werr := newParquetWriter(path, cols)
		if werr != nil {
			return nil, werr
		}
		writers[path] = w
		return w, nil
	}

	write := func(rec bdk.Row) error {
		w, werr := writerFor(rec)
		if werr != nil {
			return werr
		}
		if werr := w.Write(rec); werr != nil {
			return werr
		}
		rows++
		return nil
	}

	for _, rec := range pending {
		if err = write(rec); err != nil {
			return nil, nil, 0, err
		}
	}
	for {
		rec, rerr := src.Record()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			err = rerr
			return nil, nil, 0, err
		}
		if err = write(rec); err != nil {
			return nil, nil, 0, err
		}
	}

	if len(writers) == 0 && len(cols) > 0 {
		// a source with a header but no rows still materializes an (empty)
		// entry, so the next run can reuse it on a not-modified answer
		path := filepath.Join(base, key+".parquet")
		w, werr := newParquetWriter(path, cols)
		if werr != nil {
			err = werr
			return nil, nil, 0, err
		}
		writers[path] = w
	}
	for path, w := range writers {
		if cerr := w.Close(); cerr != nil {
			err = cerr
			delete(writers, path) // already cleaned up by Close
			return nil, nil, 0, err
		}
		files = append(files, path)
	}
	writers = nil
	sort.Strings(files)
	return files, cols, rows, nil
}

func mappedColumns(spec Spec) []string {
	if len(spec.FieldMapping) == 0 {
		return nil
	}
	cols := make([]string, 0, len(spec.FieldMapping))
	for c := range spec.FieldMapping {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func newFormatSource(r io.Reader, spec Spec) (bdk.RecordSource, error) {
	switch spec.Format {
	case "tsv", "csv":
		sep := spec.Separator
		if sep == "" {
			if spec.Format == "tsv" {
				sep = "\t"
			} else {
				sep = ","
			}
		}
		var opts []bdkcsv.Option
		opts = append(opts, bdkcsv.Comma([]rune(sep)[0]), bdkcsv.Name(spec.URL))
		if fm := indexMapping(spec); fm != nil {
			opts = append(opts, bdkcsv.FieldMapping(fm))
		}
		return bdkcsv.NewSource(r, opts...)
	case "excel":
		var opts []excel.Option
		opts = append(opts, excel.Name(spec.URL))
		if spec.Sheet != "" {
			opts = append(opts, excel.Sheet(spec.Sheet))
		}
		if fm := indexMapping(spec); fm != nil {
			opts = append(opts, excel.FieldMapping(fm))
		}
		return excel.NewSource(r, opts...)
	case "json":
		var opts []bdkjson.Option
		opts = append(opts, bdkjson.Name(spec.URL))
		if pm := pathMapping(spec); pm != nil {
			opts = append(opts, bdkjson.Paths(pm))
		}
		return bdkjson.NewSource(r, opts...)
	case "xml":
		if spec.RecordTag == "" {
			return nil, errors.Errorf("xml source %s needs a record_tag", spec.URL)
		}
		var opts []bdkxml.Option
		opts = append(opts, bdkxml.Name(spec.URL))
		if pm := pathMapping(spec); pm != nil {
			opts = append(opts, bdkxml.Paths(pm))
		}
		return bdkxml.NewSource(r, spec.RecordTag, opts...)
	default:
		return nil, errors.Errorf("unsupported format %q for %s", spec.Format, spec.URL)
	}
}

func indexMapping(spec Spec) map[string]int {
	if len(spec.FieldMapping) == 0 {
		return nil
	}
	fm := make(map[string]int, len(spec.FieldMapping))
	for name, ref := range spec.FieldMapping {
		if ref.HasIndex {
			fm[name] = ref.Index
		}
	}
	if len(fm) == 0 {
		return nil
	}
	return fm
}

func pathMapping(spec Spec) map[string]string {
	if len(spec.FieldMapping) == 0 {
		return nil
	}
	pm := make(map[string]string, len(spec.FieldMapping))
	for name, ref := range spec.FieldMapping {
		if !ref.HasIndex && ref.Path != "" {
			pm[name] = ref.Path
		}
	}
	if len(pm) == 0 {
		return nil
	}
	return pm
}
