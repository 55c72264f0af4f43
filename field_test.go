package bdk_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/biograph/bdk"
)

func TestColumnSourceValues(t *testing.T) {
	fc := bdk.NewFieldConfig(
		bdk.Extracts("accession", bdk.Capture(`^acc:(\w+)$`)),
		bdk.Extracts("upper-tail", bdk.Capture(`-(\w+)$`).Then(func(s string) (string, bool) {
			return strings.ToUpper(s), true
		})),
		bdk.Maps("status", map[string]string{"r": "reviewed", "u": "unreviewed"}),
		bdk.MapsWithDefault("organism", map[string]string{"9606": "human"}, "other"),
		bdk.Transforms("trim-version", func(s string) string {
			if i := strings.IndexByte(s, '.'); i >= 0 {
				return s[:i]
			}
			return s
		}),
		bdk.DefaultDelimiter(";"),
	)

	tests := []struct {
		name string
		src  bdk.ColumnSource
		row  bdk.Row
		exp  []string
	}{
		{
			name: "plain lookup",
			src:  fc.F("Entry"),
			row:  bdk.Row{"Entry": "P12345"},
			exp:  []string{"P12345"},
		},
		{
			name: "missing field",
			src:  fc.F("Entry"),
			row:  bdk.Row{"Other": "x"},
			exp:  nil,
		},
		{
			name: "empty field",
			src:  fc.F("Entry"),
			row:  bdk.Row{"Entry": ""},
			exp:  nil,
		},
		{
			name: "regex capture",
			src:  fc.F("ID", bdk.Extract("accession")),
			row:  bdk.Row{"ID": "acc:Q99999"},
			exp:  []string{"Q99999"},
		},
		{
			name: "regex miss drops value",
			src:  fc.F("ID", bdk.Extract("accession")),
			row:  bdk.Row{"ID": "nothing-here"},
			exp:  []string{},
		},
		{
			name: "capture then callable",
			src:  fc.F("ID", bdk.Extract("upper-tail")),
			row:  bdk.Row{"ID": "chain-abc"},
			exp:  []string{"ABC"},
		},
		{
			name: "map hit",
			src:  fc.F("Status", bdk.MapValues("status")),
			row:  bdk.Row{"Status": "r"},
			exp:  []string{"reviewed"},
		},
		{
			name: "map miss without default drops",
			src:  fc.F("Status", bdk.MapValues("status")),
			row:  bdk.Row{"Status": "zzz"},
			exp:  []string{},
		},
		{
			name: "map miss with default",
			src:  fc.F("Taxon", bdk.MapValues("organism")),
			row:  bdk.Row{"Taxon": "10090"},
			exp:  []string{"other"},
		},
		{
			name: "transform",
			src:  fc.F("Entry", bdk.Transform("trim-version")),
			row:  bdk.Row{"Entry": "P12345.2"},
			exp:  []string{"P12345"},
		},
		{
			name: "explicit delimiter with trimming",
			src:  fc.F("Syns", bdk.Delimiter(",")),
			row:  bdk.Row{"Syns": "a, b ,c"},
			exp:  []string{"a", "b", "c"},
		},
		{
			name: "default delimiter via Split",
			src:  fc.F("Syns", bdk.Split()),
			row:  bdk.Row{"Syns": "a;b"},
			exp:  []string{"a", "b"},
		},
		{
			name: "split holes keep alignment",
			src:  fc.F("Syns", bdk.Delimiter(",")),
			row:  bdk.Row{"Syns": "a,,c"},
			exp:  []string{"a", "", "c"},
		},
		{
			name: "split with per-element extract miss keeps hole",
			src:  fc.F("IDs", bdk.Delimiter(","), bdk.Extract("accession")),
			row:  bdk.Row{"IDs": "acc:P1,garbage,acc:P3"},
			exp:  []string{"P1", "", "P3"},
		},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			got := tst.src.Values(tst.row)
			if len(got) == 0 && len(tst.exp) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tst.exp) {
				t.Fatalf("expected %#v, got %#v", tst.exp, got)
			}
		})
	}
}

func TestColumnSourceDeterminism(t *testing.T) {
	fc := bdk.NewFieldConfig(
		bdk.Extracts("acc", bdk.Capture(`(\w+)`)),
	)
	src := fc.F("IDs", bdk.Delimiter(";"), bdk.Extract("acc"))
	row := bdk.Row{"IDs": "P1;P2;P3"}
	first := src.Values(row)
	for i := 0; i < 10; i++ {
		again := src.Values(row)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("evaluation %d differed: %v vs %v", i, first, again)
		}
	}
}

func TestStrictValuesSurfacesMappingError(t *testing.T) {
	fc := bdk.NewFieldConfig(
		bdk.Extracts("acc", bdk.Capture(`^acc:(\w+)$`)),
	)
	src := fc.F("ID", bdk.Extract("acc"))
	_, err := src.StrictValues(bdk.Row{"ID": "garbage"})
	if err == nil {
		t.Fatal("expected a MappingError")
	}
	me, ok := err.(*bdk.MappingError)
	if !ok {
		t.Fatalf("expected *bdk.MappingError, got %T: %v", err, err)
	}
	if me.Field != "ID" || me.Pipeline != "acc" {
		t.Fatalf("unexpected error detail: %+v", me)
	}
}

func TestUnknownPipelineNamePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for unknown extract name")
		}
	}()
	fc := bdk.NewFieldConfig()
	fc.F("ID", bdk.Extract("nope"))
}
