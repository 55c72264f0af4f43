// Package resource wires a YAML source declaration, the bronze cache
// substrate and a compiled entity schema into Datasets, grouped per source
// into Resources collected in an explicit registry.
package resource

import (
	"bytes"
	"net/url"
	"os"
	"sort"

	"github.com/biograph/bdk/bronze"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var formats = map[string]bool{
	"tsv": true, "csv": true, "excel": true, "xml": true, "json": true, "rda": true,
}

var compressions = map[string]bool{
	"": true, "none": true, "gz": true, "gzip": true, "zip": true,
	"bz2": true, "bzip2": true, "zst": true, "zstd": true,
}

// FieldRef is a YAML-friendly bronze.FieldRef: a bare integer means a column
// index, a string means a path.
type FieldRef bronze.FieldRef

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *FieldRef) UnmarshalYAML(n *yaml.Node) error {
	var idx int
	if err := n.Decode(&idx); err == nil {
		*r = FieldRef(bronze.Col(idx))
		return nil
	}
	var path string
	if err := n.Decode(&path); err == nil {
		*r = FieldRef(bronze.Path(path))
		return nil
	}
	return errors.Errorf("field mapping entry must be a column index or a path, got %q", n.Value)
}

// Decl is one dataset's declaration as read from a resource YAML file.
type Decl struct {
	URL               string              `yaml:"url"`
	Format            string              `yaml:"format"`
	Compression       string              `yaml:"compression"`
	Separator         string              `yaml:"separator"`
	Sheet             string              `yaml:"sheet"`
	RecordTag         string              `yaml:"record_tag"`
	FieldMapping      map[string]FieldRef `yaml:"field_mapping"`
	Filters           []Filter            `yaml:"filters"`
	SubfieldSeparator map[string]string   `yaml:"subfield_separator"`
	Transform         string              `yaml:"transform"`
	CheckETag         *bool               `yaml:"check_etag"`
	CheckLastModified *bool               `yaml:"check_last_modified"`
	ChecksumURL       string              `yaml:"checksum_url"`
	ChecksumType      string              `yaml:"checksum_type"`
	BronzePath        string              `yaml:"bronze_path"`
	PartitionBy       []string            `yaml:"partition_by"`

	Description string `yaml:"description"`
	Organism    string `yaml:"organism"`
	DataType    string `yaml:"data_type"`
	License     string `yaml:"license"`
	Citation    string `yaml:"citation"`
}

// File is one resource declaration file: dataset name to declaration.
type File map[string]*Decl

// Parse decodes a declaration document. Unknown keys are rejected so that a
// typo in a connector config fails loudly instead of silently changing
// behavior.
func Parse(b []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decoding resource declaration")
	}
	for name, d := range f {
		if d == nil {
			return nil, errors.Errorf("dataset %q has an empty declaration", name)
		}
		if err := d.Validate(); err != nil {
			return nil, errors.Wrapf(err, "dataset %q", name)
		}
	}
	return f, nil
}

// Load reads and parses a declaration file.
func Load(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	f, err := Parse(b)
	return f, errors.Wrapf(err, "parsing %s", path)
}

// Validate checks the declaration's internal consistency.
func (d *Decl) Validate() error {
	if d.URL == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(d.URL)
	if err != nil || u.Scheme == "" {
		return errors.Errorf("malformed url %q", d.URL)
	}
	if !formats[d.Format] {
		return errors.Errorf("unknown format %q", d.Format)
	}
	if !compressions[d.Compression] {
		return errors.Errorf("unknown compression %q", d.Compression)
	}
	if d.ChecksumURL != "" {
		switch d.ChecksumType {
		case "md5", "sha256":
		default:
			return errors.Errorf("checksum_url needs checksum_type md5 or sha256, got %q", d.ChecksumType)
		}
	}
	if d.Format == "xml" && d.RecordTag == "" {
		return errors.New("xml format needs record_tag")
	}
	for _, f := range d.Filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	if len(d.FieldMapping) > 0 {
		for _, p := range d.PartitionBy {
			if _, ok := d.FieldMapping[p]; !ok {
				return errors.Errorf("partition_by field %q is not in field_mapping", p)
			}
		}
	}
	return nil
}

// Spec converts the declaration into the bronze layer's fetch/convert spec.
// check_etag and check_last_modified default to true.
func (d *Decl) Spec(resourceName, datasetName string) bronze.Spec {
	spec := bronze.Spec{
		Resource:          resourceName,
		Dataset:           datasetName,
		URL:               d.URL,
		Format:            d.Format,
		Compression:       d.Compression,
		Separator:         d.Separator,
		Sheet:             d.Sheet,
		RecordTag:         d.RecordTag,
		CheckETag:         d.CheckETag == nil || *d.CheckETag,
		CheckLastModified: d.CheckLastModified == nil || *d.CheckLastModified,
		ChecksumURL:       d.ChecksumURL,
		ChecksumType:      d.ChecksumType,
		PartitionBy:       append([]string(nil), d.PartitionBy...),
	}
	if d.BronzePath != "" {
		spec.Resource = d.BronzePath
	}
	if len(d.FieldMapping) > 0 {
		spec.FieldMapping = make(map[string]bronze.FieldRef, len(d.FieldMapping))
		for name, ref := range d.FieldMapping {
			spec.FieldMapping[name] = bronze.FieldRef(ref)
		}
	}
	return spec
}

// Metadata is the descriptive part of a declaration.
type Metadata struct {
	Description string
	Organism    string
	DataType    string
	License     string
	Citation    string
}

// Meta extracts the declaration's metadata.
func (d *Decl) Meta() Metadata {
	return Metadata{
		Description: d.Description,
		Organism:    d.Organism,
		DataType:    d.DataType,
		License:     d.License,
		Citation:    d.Citation,
	}
}

// DatasetNames returns the file's dataset names, sorted.
func (f File) DatasetNames() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
