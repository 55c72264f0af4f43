package resource

import (
	"testing"

	"github.com/biograph/bdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func yamlValue(t *testing.T, v string) yaml.Node {
	t.Helper()
	var n yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(v), &n))
	return *n.Content[0]
}

func TestFilterMatch(t *testing.T) {
	row := bdk.Row{
		"organism": "9606",
		"score":    "0.75",
		"status":   "reviewed",
		"name":     "hemoglobin subunit alpha",
	}
	tests := []struct {
		name  string
		field string
		op    string
		value string
		want  bool
	}{
		{"eq match", "organism", "eq", "9606", true},
		{"eq number form", "organism", "eq", "9606", true},
		{"eq miss", "organism", "eq", "10090", false},
		{"ne", "status", "ne", "obsolete", true},
		{"gt numeric", "score", "gt", "0.5", true},
		{"gt numeric miss", "score", "gt", "0.9", false},
		{"lt numeric", "score", "lt", "1", true},
		{"gte boundary", "score", "gte", "0.75", true},
		{"lte boundary", "score", "lte", "0.75", true},
		{"gt lexical", "status", "gt", "queued", true},
		{"in", "organism", "in", "[9606, 10090]", true},
		{"in miss", "organism", "in", "[10090, 10116]", false},
		{"not_in", "organism", "not_in", "[10090]", true},
		{"regex", "name", "regex", "'^hemoglobin'", true},
		{"regex miss", "name", "regex", "'subunit$'", false},
		{"missing field eq", "absent", "eq", "x", false},
		{"missing field ne", "absent", "ne", "x", true},
		{"missing field gt", "absent", "gt", "0", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := Filter{Field: test.field, Operator: test.op, Value: yamlValue(t, test.value)}
			c, err := f.compile()
			require.NoError(t, err)
			assert.Equal(t, test.want, c.Match(row))
		})
	}
}

func TestFilterCompileErrors(t *testing.T) {
	tests := map[string]Filter{
		"bad regex":       {Field: "a", Operator: "regex", Value: yamlValue(t, "'['")},
		"in wants list":   {Field: "a", Operator: "in", Value: yamlValue(t, "solo")},
		"eq wants scalar": {Field: "a", Operator: "eq", Value: yamlValue(t, "[1, 2]")},
	}
	for name, f := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.compile()
			assert.Error(t, err)
		})
	}
}

func TestScalarValueNormalization(t *testing.T) {
	// numeric and quoted YAML scalars filter identically
	a := Filter{Field: "organism", Operator: "eq", Value: yamlValue(t, "9606")}
	b := Filter{Field: "organism", Operator: "eq", Value: yamlValue(t, "'9606'")}
	ca, err := a.compile()
	require.NoError(t, err)
	cb, err := b.compile()
	require.NoError(t, err)
	row := bdk.Row{"organism": "9606"}
	assert.True(t, ca.Match(row))
	assert.True(t, cb.Match(row))
}
