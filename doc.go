// Package bdk is the biodata development kit: the core machinery for
// normalizing heterogeneous, frequently-drifting biological resources into a
// common entity model.
//
// The pipeline has three stages, each behind a small interface so that the
// pieces compose freely:
//
// 1. Bronze layer (package bronze)
//
//    Every journey starts with bytes on the wire. The bronze layer fetches a
//    declared URL, detects whether the remote changed since the last run
//    (ETag, then Last-Modified, then a declared checksum URL), and
//    materializes the rows as a content-addressed Parquet cache on disk.
//    Re-running an unchanged resource touches the network only for the
//    change check - never for the body.
//
// 2. Row sources (packages csv, excel, json, xml)
//
//    A format-specific source turns the raw artifact into a stream of flat
//    bdk.Row records, pulled one at a time through RecordSource. Sources
//    know nothing about biology; they only know their format and the
//    declared field mapping.
//
// 3. Mapping engine (this package)
//
//    An EntityBuilder compiled once at module load is applied to every row.
//    Column bindings (FieldConfig.F) extract, map and transform raw values;
//    CV specs resolve controlled-vocabulary terms statically or from the
//    data itself; identifier, annotation and membership builders assemble
//    zero or one Entity per row. The engine is tolerant by default: a
//    drifted field degrades to absence, a row with no identifiers yields
//    nothing, and the stream keeps flowing.
//
// Package resource ties a YAML declaration, the bronze substrate and a
// builder into a Dataset, and groups datasets under a Resource. The cmd
// package wraps the registry in a small operator CLI.
package bdk
