package catalog

import (
	"io"
	"log"
	"testing"

	"github.com/biograph/bdk"
	"github.com/biograph/bdk/bronze"
	"github.com/biograph/bdk/resource"
)

func testBronze(t *testing.T) *bronze.Bronze {
	t.Helper()
	br, err := bronze.New(t.TempDir(), bronze.WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	t.Cleanup(func() { br.Close() })
	return br
}

func TestRegister(t *testing.T) {
	resource.Reset()
	t.Cleanup(resource.Reset)
	if err := Register(testBronze(t), log.New(io.Discard, "", 0)); err != nil {
		t.Fatalf("registering catalog: %v", err)
	}
	for _, name := range []string{"uniprot", "complexportal"} {
		r, ok := resource.Get(name)
		if !ok {
			t.Fatalf("resource %q not registered", name)
		}
		if len(r.Datasets()) == 0 {
			t.Fatalf("resource %q has no datasets", name)
		}
		for _, d := range r.Datasets() {
			if d.Decl.License == "" {
				t.Errorf("%s/%s has no license recorded", name, d.Name)
			}
		}
	}
}

func TestUniProtSchema(t *testing.T) {
	r, err := UniProt(testBronze(t), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("building uniprot: %v", err)
	}
	ds, ok := r.Dataset("proteins")
	if !ok {
		t.Fatal("proteins dataset missing")
	}
	row := bdk.Row{
		"Entry":         "P69905",
		"Reviewed":      "reviewed",
		"Protein names": "Hemoglobin subunit alpha",
		"Gene Names":    "HBA1 HBA2",
		"Organism (ID)": "9606",
		"Length":        "142",
	}
	ent, err := ds.Builder.Build(row)
	if err != nil {
		t.Fatalf("building entity: %v", err)
	}
	if ent == nil {
		t.Fatal("expected an entity")
	}
	if ent.Type != bdk.Protein {
		t.Fatalf("type: %v", ent.Type)
	}
	if len(ent.Identifiers) != 3 {
		t.Fatalf("expected accession + 2 gene symbols, got %v", ent.Identifiers)
	}
	if ent.Identifiers[0].Namespace != bdk.UniProt || ent.Identifiers[0].Value != "P69905" {
		t.Fatalf("primary identifier: %v", ent.Identifiers[0])
	}
	var reviewed, length bool
	for _, a := range ent.Annotations {
		switch a.Term {
		case bdk.Reviewed:
			reviewed = true
		case bdk.SequenceLength:
			length = true
			if a.Unit == nil || *a.Unit != bdk.AminoAcid {
				t.Fatalf("length annotation missing unit: %v", a)
			}
		}
	}
	if !reviewed || !length {
		t.Fatalf("expected reviewed flag and length annotation, got %v", ent.Annotations)
	}
}

func TestComplexPortalSchema(t *testing.T) {
	r, err := ComplexPortal(testBronze(t), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("building complexportal: %v", err)
	}
	ds, ok := r.Dataset("complexes")
	if !ok {
		t.Fatal("complexes dataset missing")
	}
	// members arrive normalized to ";" by the declared subfield separator
	row := bdk.Row{
		"complex_ac":       "CPX-2158",
		"recommended_name": "Hemoglobin HbA",
		"taxonomy_id":      "9606",
		"members":          "P69905(2);P68871(2)",
	}
	ent, err := ds.Builder.Build(row)
	if err != nil {
		t.Fatalf("building entity: %v", err)
	}
	if ent == nil {
		t.Fatal("expected an entity")
	}
	if ent.Type != bdk.Complex {
		t.Fatalf("type: %v", ent.Type)
	}
	if len(ent.Membership) != 2 {
		t.Fatalf("expected 2 members, got %v", ent.Membership)
	}
	m := ent.Membership[0].Entity
	if m.Type != bdk.Protein || m.Identifiers[0].Value != "P69905" {
		t.Fatalf("first member: %v", m)
	}
	if len(m.Annotations) != 1 || m.Annotations[0].Term != bdk.Stoichiometry || m.Annotations[0].Value != "2" {
		t.Fatalf("stoichiometry annotation: %v", m.Annotations)
	}
}
