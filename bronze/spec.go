package bronze

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// FieldRef locates one output field in the raw data: a column index for
// tabular formats, a path for tree-shaped ones (json, xml).
type FieldRef struct {
	Index    int
	HasIndex bool
	Path     string
}

// Col builds an index-based FieldRef.
func Col(i int) FieldRef { return FieldRef{Index: i, HasIndex: true} }

// Path builds a path-based FieldRef.
func Path(p string) FieldRef { return FieldRef{Path: p} }

// Spec is everything the bronze layer needs to know about one dataset's raw
// artifact: where it lives, how to detect change, how to decode it into rows
// and how to lay the cache out.
type Spec struct {
	// Resource and Dataset name the per-resource cache subfolder.
	Resource string
	Dataset  string

	URL         string
	Format      string // tsv csv excel xml json rda
	Compression string // "" gz zip bz2 zst
	Separator   string // tabular column separator override
	Sheet       string // excel sheet name ("" = first)
	RecordTag   string // xml element that delimits one record

	// FieldMapping maps output field names to raw locations. Optional for
	// headered tabular sources and for flat json records.
	FieldMapping map[string]FieldRef

	CheckETag         bool
	CheckLastModified bool
	ChecksumURL       string
	ChecksumType      string // md5 or sha256

	PartitionBy  []string
	ForceRefresh bool
}

// Key returns the stable content-address of the spec: a hash over the URL
// and every config field that affects the shape of the converted cache.
// Metadata-only changes (description, license) do not invalidate the cache.
func (s Spec) Key() string {
	h := sha256.New()
	fmt.Fprintf(h, "url=%s|format=%s|compression=%s|separator=%s|sheet=%s|tag=%s",
		s.URL, s.Format, s.Compression, s.Separator, s.Sheet, s.RecordTag)
	if len(s.FieldMapping) > 0 {
		names := make([]string, 0, len(s.FieldMapping))
		for n := range s.FieldMapping {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			r := s.FieldMapping[n]
			if r.HasIndex {
				fmt.Fprintf(h, "|%s=%d", n, r.Index)
			} else {
				fmt.Fprintf(h, "|%s=%s", n, r.Path)
			}
		}
	}
	if len(s.PartitionBy) > 0 {
		fmt.Fprintf(h, "|partition=%s", strings.Join(s.PartitionBy, ","))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// subdir is the cache subfolder for this spec's resource.
func (s Spec) subdir() string {
	if s.Resource != "" {
		return sanitize(s.Resource)
	}
	return "unnamed"
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
