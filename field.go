package bdk

import (
	"fmt"
	"regexp"
	"strings"
)

// TransformFunc is a pure value transform, applied as the last pipeline step.
type TransformFunc func(string) string

// ExtractStep is one step of a named extraction pipeline: an optional regex
// capture followed by an optional callable. A step that does not match (regex
// miss, or callable returning ok=false) short-circuits the pipeline and the
// value is treated as absent.
type ExtractStep struct {
	re *regexp.Regexp
	fn func(string) (string, bool)
}

// Capture builds an ExtractStep from a regex pattern. If the pattern has a
// capture group the first group is the step's output, otherwise the whole
// match.
func Capture(pattern string) ExtractStep {
	return ExtractStep{re: regexp.MustCompile(pattern)}
}

// Then attaches a callable to run on the step's regex output.
func (s ExtractStep) Then(fn func(string) (string, bool)) ExtractStep {
	s.fn = fn
	return s
}

// Apply builds an ExtractStep that is a bare callable.
func Apply(fn func(string) (string, bool)) ExtractStep {
	return ExtractStep{fn: fn}
}

func (s ExtractStep) apply(v string) (string, bool) {
	if s.re != nil {
		m := s.re.FindStringSubmatch(v)
		if m == nil {
			return "", false
		}
		if len(m) > 1 {
			v = m[1]
		} else {
			v = m[0]
		}
	}
	if s.fn != nil {
		return s.fn(v)
	}
	return v, true
}

// ValueMap is a dictionary lookup applied to resolved values, with an
// optional default. Unmapped values with no default are dropped, never
// errors - source vocabularies drift and a stale mapping must not take the
// whole dataset down.
type ValueMap struct {
	values map[string]string
	def    string
	hasDef bool
}

// FieldConfig is the per-schema registry of named extract pipelines, value
// maps and transforms, plus a default delimiter. It is immutable once built
// and shared read-only across every row of a dataset.
type FieldConfig struct {
	extracts   map[string][]ExtractStep
	maps       map[string]ValueMap
	transforms map[string]TransformFunc
	delimiter  string
}

// FieldOption configures a FieldConfig under construction.
type FieldOption func(*FieldConfig)

// Extracts registers a named extraction pipeline.
func Extracts(name string, steps ...ExtractStep) FieldOption {
	return func(fc *FieldConfig) { fc.extracts[name] = steps }
}

// Maps registers a named value map with no default.
func Maps(name string, values map[string]string) FieldOption {
	return func(fc *FieldConfig) { fc.maps[name] = ValueMap{values: values} }
}

// MapsWithDefault registers a named value map whose unmatched values resolve
// to def.
func MapsWithDefault(name string, values map[string]string, def string) FieldOption {
	return func(fc *FieldConfig) {
		fc.maps[name] = ValueMap{values: values, def: def, hasDef: true}
	}
}

// Transforms registers a named transform function.
func Transforms(name string, fn TransformFunc) FieldOption {
	return func(fc *FieldConfig) { fc.transforms[name] = fn }
}

// StandardDelimiter separates subfields in multi-valued cells unless a
// schema overrides it.
const StandardDelimiter = ";"

// DefaultDelimiter sets the delimiter used by Split() column bindings.
func DefaultDelimiter(d string) FieldOption {
	return func(fc *FieldConfig) { fc.delimiter = d }
}

// NewFieldConfig builds an immutable FieldConfig. The default delimiter is
// ";" unless overridden.
func NewFieldConfig(opts ...FieldOption) *FieldConfig {
	fc := &FieldConfig{
		extracts:   make(map[string][]ExtractStep),
		maps:       make(map[string]ValueMap),
		transforms: make(map[string]TransformFunc),
		delimiter:  StandardDelimiter,
	}
	for _, opt := range opts {
		opt(fc)
	}
	return fc
}

// ColumnSource is the compiled binding of one raw field to its extraction
// pipeline: optional delimiter split, named extract steps, named value map,
// named transform. Evaluation is lazy and stateless - the same source
// evaluated twice against the same row yields the same values.
type ColumnSource struct {
	fc        *FieldConfig
	field     string
	extract   string
	mapName   string
	transform string
	delimiter string
}

// ColumnOption configures a column binding.
type ColumnOption func(*ColumnSource)

// Extract names the extraction pipeline to apply.
func Extract(name string) ColumnOption {
	return func(c *ColumnSource) { c.extract = name }
}

// MapValues names the value map to apply after extraction.
func MapValues(name string) ColumnOption {
	return func(c *ColumnSource) { c.mapName = name }
}

// Transform names the transform to apply last.
func Transform(name string) ColumnOption {
	return func(c *ColumnSource) { c.transform = name }
}

// Delimiter makes the binding multi-valued, split on d.
func Delimiter(d string) ColumnOption {
	return func(c *ColumnSource) { c.delimiter = d }
}

// Split makes the binding multi-valued using the FieldConfig's default
// delimiter.
func Split() ColumnOption {
	return func(c *ColumnSource) { c.delimiter = c.fc.delimiter }
}

// F binds a raw field name to a pipeline. Unknown extract/map/transform
// names panic: bindings are compiled at module load, and a typo there is a
// programming error, not source drift.
func (fc *FieldConfig) F(field string, opts ...ColumnOption) ColumnSource {
	c := ColumnSource{fc: fc, field: field}
	for _, opt := range opts {
		opt(&c)
	}
	if c.extract != "" {
		if _, ok := fc.extracts[c.extract]; !ok {
			panic(fmt.Sprintf("unknown extract pipeline %q for field %q", c.extract, field))
		}
	}
	if c.mapName != "" {
		if _, ok := fc.maps[c.mapName]; !ok {
			panic(fmt.Sprintf("unknown value map %q for field %q", c.mapName, field))
		}
	}
	if c.transform != "" {
		if _, ok := fc.transforms[c.transform]; !ok {
			panic(fmt.Sprintf("unknown transform %q for field %q", c.transform, field))
		}
	}
	return c
}

// Field returns the raw field name the source reads.
func (c ColumnSource) Field() string { return c.field }

// Values evaluates the binding against a row tolerantly: any extraction miss
// or unmapped value contributes nothing.
func (c ColumnSource) Values(row Row) []string {
	vs, _ := c.resolve(row, false)
	return vs
}

// StrictValues evaluates the binding and surfaces extraction misses as
// MappingError instead of dropping them.
func (c ColumnSource) StrictValues(row Row) ([]string, error) {
	return c.resolve(row, true)
}

func (c ColumnSource) resolve(row Row, strict bool) ([]string, error) {
	raw, ok := row[c.field]
	if !ok || raw == "" {
		return nil, nil
	}
	var parts []string
	if c.delimiter != "" {
		for _, p := range strings.Split(raw, c.delimiter) {
			parts = append(parts, strings.TrimSpace(p))
		}
	} else {
		parts = []string{raw}
	}
	out := make([]string, 0, len(parts))
	for _, v := range parts {
		if v == "" {
			if c.delimiter != "" {
				out = append(out, "") // keep positional alignment for zipped columns
			}
			continue
		}
		orig := v
		matched := true
		for _, step := range c.fc.extracts[c.extract] {
			v, matched = step.apply(v)
			if !matched {
				break
			}
		}
		if !matched {
			if strict {
				return nil, &MappingError{Field: c.field, Pipeline: c.extract, Value: orig}
			}
			if c.delimiter != "" {
				out = append(out, "")
			}
			continue
		}
		if c.mapName != "" {
			vm := c.fc.maps[c.mapName]
			if mapped, ok := vm.values[v]; ok {
				v = mapped
			} else if vm.hasDef {
				v = vm.def
			} else {
				// unmapped with no default: dropped, never an error
				if c.delimiter != "" {
					out = append(out, "")
				}
				continue
			}
		}
		if c.transform != "" {
			v = c.fc.transforms[c.transform](v)
		}
		out = append(out, v)
	}
	return out, nil
}
