package csv

import (
	"io"
	"strings"
	"testing"

	"github.com/biograph/bdk"
)

func readAll(t *testing.T, s *Source) []bdk.Row {
	t.Helper()
	var rows []bdk.Row
	for {
		rec, err := s.Record()
		if err == io.EOF {
			return rows
		}
		if err != nil {
			t.Fatalf("reading: %v", err)
		}
		rows = append(rows, rec)
	}
}

func TestHeaderedSource(t *testing.T) {
	in := "accession,organism,length\nP12345,9606,120\nQ67890,,88\n\nP00001,10090,\n"
	s, err := NewSource(strings.NewReader(in))
	if err != nil {
		t.Fatalf("creating source: %v", err)
	}
	defer s.Close()
	if strings.Join(s.Columns(), ",") != "accession,organism,length" {
		t.Fatalf("columns: %v", s.Columns())
	}
	rows := readAll(t, s)
	if len(rows) != 3 {
		t.Fatalf("expected 3 records (blank line skipped), got %d", len(rows))
	}
	if rows[0]["length"] != "120" {
		t.Fatalf("first record: %v", rows[0])
	}
	if _, ok := rows[1]["organism"]; ok {
		t.Fatalf("empty cell must be omitted, got %v", rows[1])
	}
	if _, ok := rows[2]["length"]; ok {
		t.Fatalf("empty trailing cell must be omitted, got %v", rows[2])
	}
}

func TestTabSeparated(t *testing.T) {
	in := "a\tb\n1\t2\n"
	s, err := NewSource(strings.NewReader(in), Comma('\t'))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	rows := readAll(t, s)
	if len(rows) != 1 || rows[0]["b"] != "2" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestFieldMappingHeaderless(t *testing.T) {
	in := "P12345,ignored,9606\nQ67890,x,10090\n"
	s, err := NewSource(strings.NewReader(in), FieldMapping(map[string]int{
		"accession": 0,
		"organism":  2,
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	rows := readAll(t, s)
	if len(rows) != 2 {
		t.Fatalf("expected 2 records, got %d", len(rows))
	}
	if rows[0]["accession"] != "P12345" || rows[0]["organism"] != "9606" {
		t.Fatalf("first record: %v", rows[0])
	}
	if _, ok := rows[0]["ignored"]; ok {
		t.Fatal("unmapped column must not appear")
	}
}

func TestFieldMappingOutOfRange(t *testing.T) {
	s, err := NewSource(strings.NewReader("a,b\n"), FieldMapping(map[string]int{"x": 5}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	_, err = s.Record()
	if err == nil {
		t.Fatal("expected drift error for out-of-range column")
	}
	if _, ok := err.(*bdk.FormatDriftError); !ok {
		t.Fatalf("expected FormatDriftError, got %T: %v", err, err)
	}
}

func TestHeaderValidation(t *testing.T) {
	tests := map[string]string{
		"empty name":     "a,,c\n1,2,3\n",
		"duplicate name": "a,b,a\n1,2,3\n",
		"empty stream":   "",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewSource(strings.NewReader(in)); err == nil {
				t.Fatal("expected header validation error")
			}
		})
	}
}

func TestRaggedRows(t *testing.T) {
	// footer lines with fewer columns are routine in source dumps
	in := "a,b,c\n1,2,3\n4,5\n"
	s, err := NewSource(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	rows := readAll(t, s)
	if len(rows) != 2 {
		t.Fatalf("expected 2 records, got %d", len(rows))
	}
	if _, ok := rows[1]["c"]; ok {
		t.Fatalf("short row must omit missing columns, got %v", rows[1])
	}
}
