package resource

import (
	"sync"

	"github.com/biograph/bdk"
	"github.com/pkg/errors"
)

// RowTransform rewrites one row between filtering and mapping. It may return
// the row it was given, modified in place.
type RowTransform func(bdk.Row) bdk.Row

var (
	transformMu sync.RWMutex
	transforms  = map[string]RowTransform{}
)

// RegisterTransform makes fn available to declarations under name.
// Registering the same name twice panics.
func RegisterTransform(name string, fn RowTransform) {
	transformMu.Lock()
	defer transformMu.Unlock()
	if _, ok := transforms[name]; ok {
		panic(errors.Errorf("transform %q already registered", name))
	}
	transforms[name] = fn
}

func lookupTransform(name string) (RowTransform, error) {
	if name == "" {
		return nil, nil
	}
	transformMu.RLock()
	defer transformMu.RUnlock()
	fn, ok := transforms[name]
	if !ok {
		return nil, errors.Errorf("unknown transform %q", name)
	}
	return fn, nil
}
