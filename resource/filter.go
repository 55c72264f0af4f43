package resource

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/biograph/bdk"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Filter is one declarative row predicate. Rows failing any filter are
// dropped before mapping.
type Filter struct {
	Field    string    `yaml:"field"`
	Operator string    `yaml:"operator"`
	Value    yaml.Node `yaml:"value"`
}

var operators = map[string]bool{
	"eq": true, "ne": true,
	"gt": true, "lt": true, "gte": true, "lte": true,
	"in": true, "not_in": true,
	"regex": true,
}

// Validate checks the filter's shape; it does not compile it.
func (f Filter) Validate() error {
	if f.Field == "" {
		return errors.New("filter needs a field")
	}
	if !operators[f.Operator] {
		return errors.Errorf("unknown filter operator %q", f.Operator)
	}
	_, err := f.compile()
	return err
}

// compiledFilter is a Filter with its value decoded and, for regex, the
// pattern compiled.
type compiledFilter struct {
	field string
	op    string
	value string
	set   map[string]bool
	re    *regexp.Regexp
}

func (f Filter) compile() (compiledFilter, error) {
	c := compiledFilter{field: f.Field, op: f.Operator}
	switch f.Operator {
	case "in", "not_in":
		var vals []string
		if err := f.Value.Decode(&vals); err != nil {
			return c, errors.Wrapf(err, "filter on %q: %s wants a list value", f.Field, f.Operator)
		}
		c.set = make(map[string]bool, len(vals))
		for _, v := range vals {
			c.set[v] = true
		}
	case "regex":
		var pat string
		if err := f.Value.Decode(&pat); err != nil {
			return c, errors.Wrapf(err, "filter on %q: regex wants a string value", f.Field)
		}
		re, err := regexp.Compile(pat)
		if err != nil {
			return c, errors.Wrapf(err, "filter on %q", f.Field)
		}
		c.re = re
	default:
		var v scalarValue
		if err := f.Value.Decode(&v); err != nil {
			return c, errors.Wrapf(err, "filter on %q: %s wants a scalar value", f.Field, f.Operator)
		}
		c.value = string(v)
	}
	return c, nil
}

func compileFilters(fs []Filter) ([]compiledFilter, error) {
	out := make([]compiledFilter, 0, len(fs))
	for _, f := range fs {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		c, err := f.compile()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Match reports whether the row passes the filter. A missing field reads as
// the empty string.
func (c compiledFilter) Match(row bdk.Row) bool {
	v := row[c.field]
	switch c.op {
	case "eq":
		return v == c.value
	case "ne":
		return v != c.value
	case "gt":
		return compare(v, c.value) > 0
	case "lt":
		return compare(v, c.value) < 0
	case "gte":
		return compare(v, c.value) >= 0
	case "lte":
		return compare(v, c.value) <= 0
	case "in":
		return c.set[v]
	case "not_in":
		return !c.set[v]
	case "regex":
		return c.re.MatchString(v)
	}
	return false
}

// compare orders two cell values numerically when both parse as numbers,
// lexically otherwise.
func compare(a, b string) int {
	fa, erra := strconv.ParseFloat(a, 64)
	fb, errb := strconv.ParseFloat(b, 64)
	if erra == nil && errb == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// scalarValue decodes any YAML scalar (string, int, float, bool) to its
// string form, so `value: 9606` and `value: "9606"` filter identically.
type scalarValue string

func (s *scalarValue) UnmarshalYAML(n *yaml.Node) error {
	var v interface{}
	if err := n.Decode(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*s = scalarValue(t)
	case int:
		*s = scalarValue(strconv.Itoa(t))
	case float64:
		*s = scalarValue(strconv.FormatFloat(t, 'g', -1, 64))
	case bool:
		*s = scalarValue(strconv.FormatBool(t))
	case nil:
		*s = ""
	default:
		return fmt.Errorf("unsupported scalar %T", v)
	}
	return nil
}
