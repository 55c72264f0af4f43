package xml

import (
	"io"
	"strings"
	"testing"

	"github.com/biograph/bdk"
)

const drugbankish = `<?xml version="1.0"?>
<database>
  <metadata><version>5.1</version></metadata>
  <record id="DB0001">
    <name>aspirin</name>
    <xref source="chebi" id="CHEBI:15365"/>
    <xref source="pubchem" id="2244"/>
    <group>approved</group>
    <group>otc</group>
  </record>
  <record id="DB0002">
    <name>caffeine</name>
  </record>
</database>`

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

func TestRecordTagWithPaths(t *testing.T) {
	s, err := NewSource(strings.NewReader(drugbankish), "record", Paths(map[string]string{
		"id":     "@id",
		"name":   "name",
		"chebi":  "xref/@id",
		"groups": "group",
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	rows := readAll(t, s)
	if len(rows) != 2 {
		t.Fatalf("expected 2 records, got %d", len(rows))
	}
	first := rows[0]
	if first["id"] != "DB0001" || first["name"] != "aspirin" {
		t.Fatalf("first record: %v", first)
	}
	if first["chebi"] != "CHEBI:15365;2244" {
		t.Fatalf("repeated element values must join with ';': %v", first)
	}
	if first["groups"] != "approved;otc" {
		t.Fatalf("repeated child text: %v", first)
	}
	second := rows[1]
	if second["id"] != "DB0002" || second["name"] != "caffeine" {
		t.Fatalf("second record: %v", second)
	}
	if _, ok := second["chebi"]; ok {
		t.Fatalf("absent element must be absent from the record: %v", second)
	}
}

func TestPathlessFlattening(t *testing.T) {
	s, err := NewSource(strings.NewReader(drugbankish), "record")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	rows := readAll(t, s)
	if len(rows) != 2 {
		t.Fatalf("expected 2 records, got %d", len(rows))
	}
	first := rows[0]
	if first["id"] != "DB0001" {
		t.Fatalf("attribute not flattened: %v", first)
	}
	if first["name"] != "aspirin" || first["group"] != "approved;otc" {
		t.Fatalf("children not flattened: %v", first)
	}
}

func TestDotPath(t *testing.T) {
	in := `<list><term acc="MI:0326">protein</term></list>`
	s, err := NewSource(strings.NewReader(in), "term", Paths(map[string]string{
		"accession": "@acc",
		"name":      ".",
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	rows := readAll(t, s)
	if len(rows) != 1 || rows[0]["accession"] != "MI:0326" || rows[0]["name"] != "protein" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestMissingRecordTag(t *testing.T) {
	if _, err := NewSource(strings.NewReader("<a/>"), ""); err == nil {
		t.Fatal("expected error for empty record tag")
	}
}
