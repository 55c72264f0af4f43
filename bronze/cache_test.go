package bronze

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/biograph/bdk"
)

// tsvServer serves one TSV document with an ETag and counts full downloads
// versus 304 responses.
type tsvServer struct {
	mu          sync.Mutex
	body        string
	etag        string
	full        int
	notModified int
}

func (s *tsvServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Header.Get("If-None-Match") == s.etag {
		s.notModified++
		w.WriteHeader(http.StatusNotModified)
		return
	}
	s.full++
	w.Header().Set("ETag", s.etag)
	io.WriteString(w, s.body)
}

func newTestCache(t *testing.T, srv *httptest.Server) *Bronze {
	t.Helper()
	b, err := New(t.TempDir(),
		WithLogger(log.New(io.Discard, "", 0)),
		WithHTTPFetcher(&HTTPFetcher{
			Client:  srv.Client(),
			Retries: 1,
			Logger:  log.New(io.Discard, "", 0),
		}))
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func readAll(t *testing.T, src bdk.RecordSource) []bdk.Row {
	t.Helper()
	defer src.Close()
	var rows []bdk.Row
	for {
		rec, err := src.Record()
		if err == io.EOF {
			return rows
		}
		if err != nil {
			t.Fatalf("reading records: %v", err)
		}
		rows = append(rows, rec)
	}
}

func TestEnsureSecondRunSkipsBody(t *testing.T) {
	ts := &tsvServer{
		body: "accession\torganism\nP12345\t9606\nQ67890\t10090\n",
		etag: `"r1"`,
	}
	srv := httptest.NewServer(ts)
	defer srv.Close()
	b := newTestCache(t, srv)

	spec := Spec{
		Resource: "uniprot", Dataset: "proteins",
		URL: srv.URL, Format: "tsv",
		CheckETag: true, CheckLastModified: true,
	}
	ctx := context.Background()

	entry, err := b.Ensure(ctx, spec)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if entry.Rows != 2 {
		t.Fatalf("expected 2 rows, got %d", entry.Rows)
	}
	wantCols := []string{"accession", "organism"}
	if strings.Join(entry.Columns, ",") != strings.Join(wantCols, ",") {
		t.Fatalf("columns: got %v, want %v", entry.Columns, wantCols)
	}

	again, err := b.Ensure(ctx, spec)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if again.Key != entry.Key {
		t.Fatalf("key changed across unchanged runs: %s vs %s", again.Key, entry.Key)
	}
	if ts.full != 1 || ts.notModified != 1 {
		t.Fatalf("expected 1 download + 1 revalidation, got %d/%d", ts.full, ts.notModified)
	}

	rows := readAll(t, mustOpen(t, b, ctx, spec))
	if len(rows) != 2 {
		t.Fatalf("expected 2 records, got %d", len(rows))
	}
	if rows[0]["accession"] != "P12345" || rows[0]["organism"] != "9606" {
		t.Fatalf("unexpected first record: %v", rows[0])
	}
	// Open revalidated once more, never downloading.
	if ts.full != 1 {
		t.Fatalf("open must not redownload, got %d downloads", ts.full)
	}
}

func mustOpen(t *testing.T, b *Bronze, ctx context.Context, spec Spec) bdk.RecordSource {
	t.Helper()
	src, err := b.Open(ctx, spec)
	if err != nil {
		t.Fatalf("opening entry: %v", err)
	}
	return src
}

func TestEnsureForceRefresh(t *testing.T) {
	ts := &tsvServer{body: "a\tb\n1\t2\n", etag: `"r1"`}
	srv := httptest.NewServer(ts)
	defer srv.Close()
	b := newTestCache(t, srv)

	spec := Spec{Resource: "r", Dataset: "d", URL: srv.URL, Format: "tsv", CheckETag: true}
	ctx := context.Background()
	if _, err := b.Ensure(ctx, spec); err != nil {
		t.Fatal(err)
	}
	spec.ForceRefresh = true
	if _, err := b.Ensure(ctx, spec); err != nil {
		t.Fatal(err)
	}
	if ts.full != 2 {
		t.Fatalf("force refresh must redownload, got %d downloads", ts.full)
	}
}

func TestEnsureRemoteChangeInvalidates(t *testing.T) {
	ts := &tsvServer{body: "a\tb\n1\t2\n", etag: `"r1"`}
	srv := httptest.NewServer(ts)
	defer srv.Close()
	b := newTestCache(t, srv)

	spec := Spec{Resource: "r", Dataset: "d", URL: srv.URL, Format: "tsv", CheckETag: true}
	ctx := context.Background()
	first, err := b.Ensure(ctx, spec)
	if err != nil {
		t.Fatal(err)
	}

	ts.mu.Lock()
	ts.body = "a\tb\n1\t2\n3\t4\n"
	ts.etag = `"r2"`
	ts.mu.Unlock()

	second, err := b.Ensure(ctx, spec)
	if err != nil {
		t.Fatal(err)
	}
	if second.Rows != 2 {
		t.Fatalf("expected reconverted entry with 2 rows, got %d", second.Rows)
	}
	if first.Rows != 1 {
		t.Fatalf("first entry should have had 1 row, got %d", first.Rows)
	}
	if ts.full != 2 {
		t.Fatalf("expected 2 downloads across a remote change, got %d", ts.full)
	}
}

func TestEnsurePartitioned(t *testing.T) {
	ts := &tsvServer{
		body: "P1\t9606\nP2\t10090\nP3\t9606\n",
		etag: `"r1"`,
	}
	srv := httptest.NewServer(ts)
	defer srv.Close()
	b := newTestCache(t, srv)

	spec := Spec{
		Resource: "r", Dataset: "d",
		URL: srv.URL, Format: "tsv",
		FieldMapping: map[string]FieldRef{
			"accession": Col(0),
			"organism":  Col(1),
		},
		PartitionBy: []string{"organism"},
		CheckETag:   true,
	}
	ctx := context.Background()
	entry, err := b.Ensure(ctx, spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(entry.Files) != 2 {
		t.Fatalf("expected one file per organism, got %v", entry.Files)
	}
	rows := readAll(t, mustOpen(t, b, ctx, spec))
	if len(rows) != 3 {
		t.Fatalf("expected all 3 rows across partitions, got %d", len(rows))
	}
	var accs []string
	for _, r := range rows {
		accs = append(accs, r["accession"])
	}
	sort.Strings(accs)
	if strings.Join(accs, ",") != "P1,P2,P3" {
		t.Fatalf("unexpected accessions: %v", accs)
	}
}

// unchangedFetcher mimics a server that answers not-modified to an
// unconditional request.
type unchangedFetcher struct{}

func (unchangedFetcher) FetchIfChanged(context.Context, Spec, *Meta, string) (*Fetched, error) {
	return nil, nil
}

func TestEnsureUnchangedWithoutPriorEntry(t *testing.T) {
	b, err := New(t.TempDir(),
		WithLogger(log.New(io.Discard, "", 0)),
		WithHTTPFetcher(unchangedFetcher{}))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	spec := Spec{Resource: "r", Dataset: "d", URL: "https://example.org/a.tsv", Format: "tsv"}
	_, err = b.Ensure(context.Background(), spec)
	dlErr, ok := err.(*bdk.DownloadError)
	if !ok {
		t.Fatalf("expected DownloadError, got %T: %v", err, err)
	}
	if dlErr.URL != spec.URL {
		t.Fatalf("error names the wrong url: %s", dlErr.URL)
	}
}

func TestEnsureEmptySource(t *testing.T) {
	ts := &tsvServer{body: "a\tb\n", etag: `"r1"`}
	srv := httptest.NewServer(ts)
	defer srv.Close()
	b := newTestCache(t, srv)

	spec := Spec{Resource: "r", Dataset: "d", URL: srv.URL, Format: "tsv", CheckETag: true}
	ctx := context.Background()
	entry, err := b.Ensure(ctx, spec)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Rows != 0 {
		t.Fatalf("expected 0 rows, got %d", entry.Rows)
	}
	if len(entry.Files) != 1 {
		t.Fatalf("header-only source must still materialize a file, got %v", entry.Files)
	}
	if rows := readAll(t, mustOpen(t, b, ctx, spec)); len(rows) != 0 {
		t.Fatalf("expected no records, got %d", len(rows))
	}
	// The empty entry is intact, so the second run revalidated instead of
	// redownloading.
	if ts.full != 1 || ts.notModified != 1 {
		t.Fatalf("expected 1 download + 1 revalidation, got %d/%d", ts.full, ts.notModified)
	}
}

func TestEnsureRdaRejected(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	b := newTestCache(t, srv)
	_, err := b.Ensure(context.Background(), Spec{URL: "https://example.org/x.rda", Format: "rda"})
	if _, ok := err.(*bdk.UnsupportedFormatError); !ok {
		t.Fatalf("expected UnsupportedFormatError, got %T: %v", err, err)
	}
}

func TestSpecKeyStability(t *testing.T) {
	spec := Spec{URL: "https://example.org/data.tsv", Format: "tsv",
		FieldMapping: map[string]FieldRef{"a": Col(0), "b": Path("x/y")}}
	k1 := spec.Key()
	if k1 != spec.Key() {
		t.Fatal("key not deterministic")
	}
	other := spec
	other.Separator = "|"
	if other.Key() == k1 {
		t.Fatal("shape change must change the key")
	}
}
