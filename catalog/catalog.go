// Package catalog holds the built-in resource connectors. Each connector is
// one file: an embedded declaration, a compiled entity schema and a
// constructor wiring both to a shared bronze cache.
package catalog

import (
	"log"

	"github.com/biograph/bdk/bronze"
	"github.com/biograph/bdk/resource"
)

// Register builds every built-in resource against the given cache and adds
// it to the process registry.
func Register(br *bronze.Bronze, logger *log.Logger) error {
	builders := []func(*bronze.Bronze, *log.Logger) (*resource.Resource, error){
		UniProt,
		ComplexPortal,
	}
	for _, build := range builders {
		r, err := build(br, logger)
		if err != nil {
			return err
		}
		resource.Register(r)
	}
	return nil
}
