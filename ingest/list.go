package ingest

import (
	"fmt"
	"io"
	"os"

	"github.com/biograph/bdk/resource"
)

// ListMain prints the registered resources and their datasets.
type ListMain struct {
	CacheDir string `help:"Bronze cache directory."`

	stdout io.Writer
}

// NewListMain returns a ListMain with default values.
func NewListMain() *ListMain {
	return &ListMain{CacheDir: "bronze", stdout: os.Stdout}
}

// Run lists every registered resource, its datasets and their metadata.
func (m *ListMain) Run() error {
	logger := newLogger()
	br, err := openCatalog(m.CacheDir, logger)
	if err != nil {
		return err
	}
	defer br.Close()

	for _, rn := range resource.Names() {
		r, _ := resource.Get(rn)
		fmt.Fprintf(m.stdout, "%s\n", r.Name)
		if r.Meta.Description != "" {
			fmt.Fprintf(m.stdout, "  %s\n", r.Meta.Description)
		}
		for _, d := range r.Datasets() {
			fmt.Fprintf(m.stdout, "  %s/%s  format=%s url=%s\n", r.Name, d.Name, d.Decl.Format, d.Decl.URL)
			if d.Decl.License != "" {
				fmt.Fprintf(m.stdout, "    license=%s organism=%s\n", d.Decl.License, d.Decl.Organism)
			}
		}
	}
	return nil
}
