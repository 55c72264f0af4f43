package ingest

import (
	"testing"

	"github.com/biograph/bdk/resource"
)

func seedRegistry(t *testing.T) {
	t.Helper()
	resource.Reset()
	t.Cleanup(resource.Reset)
	u := resource.NewResource("uniprot", resource.Metadata{})
	u.Add(&resource.Dataset{Resource: "uniprot", Name: "proteins"})
	resource.Register(u)
	c := resource.NewResource("complexportal", resource.Metadata{})
	c.Add(&resource.Dataset{Resource: "complexportal", Name: "complexes"})
	c.Add(&resource.Dataset{Resource: "complexportal", Name: "participants"})
	resource.Register(c)
}

func TestSelectDatasets(t *testing.T) {
	seedRegistry(t)

	all, err := selectDatasets("", "")
	if err != nil {
		t.Fatalf("selecting all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected every dataset, got %d", len(all))
	}

	one, err := selectDatasets("complexportal", "complexes")
	if err != nil {
		t.Fatalf("selecting one: %v", err)
	}
	if len(one) != 1 || one[0].Name != "complexes" {
		t.Fatalf("unexpected selection: %v", one)
	}

	byResource, err := selectDatasets("complexportal", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(byResource) != 2 {
		t.Fatalf("expected both complexportal datasets, got %d", len(byResource))
	}

	if _, err := selectDatasets("nope", ""); err == nil {
		t.Fatal("expected error for unknown resource")
	}
	if _, err := selectDatasets("uniprot", "nope"); err == nil {
		t.Fatal("expected error for unknown dataset")
	}
}
