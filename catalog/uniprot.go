package catalog

import (
	"log"

	"github.com/biograph/bdk"
	"github.com/biograph/bdk/bronze"
	"github.com/biograph/bdk/resource"
	"github.com/pkg/errors"
)

// The stream endpoint sends a TSV with a header row, so columns are referred
// to by their header names rather than a field mapping.
const uniprotDecl = `
proteins:
  url: https://rest.uniprot.org/uniprotkb/stream?compressed=true&format=tsv&query=organism_id:9606&fields=accession,reviewed,protein_name,gene_names,organism_id,length
  format: tsv
  compression: gz
  description: Reviewed and unreviewed human protein entries from UniProtKB.
  organism: Homo sapiens
  data_type: protein
  license: CC BY 4.0
  citation: "UniProt Consortium, Nucleic Acids Res. 51:D523 (2023)"
`

// UniProt builds the uniprot resource: one dataset of protein entities.
func UniProt(br *bronze.Bronze, logger *log.Logger) (*resource.Resource, error) {
	file, err := resource.Parse([]byte(uniprotDecl))
	if err != nil {
		return nil, errors.Wrap(err, "uniprot declaration")
	}
	decl := file["proteins"]

	fc := bdk.NewFieldConfig(
		bdk.Maps("reviewed-flag", map[string]string{
			"reviewed":   "true",
			"unreviewed": "false",
		}),
	)
	builder := &bdk.EntityBuilder{
		Type: bdk.Protein,
		Identifiers: bdk.Identifiers(
			bdk.CV(bdk.UniProt, fc.F("Entry")),
			bdk.CV(bdk.GeneSymbol, fc.F("Gene Names", bdk.Delimiter(" "))),
		),
		Annotations: bdk.Annotations(
			bdk.CV(bdk.Organism, fc.F("Organism (ID)")),
			bdk.CV(bdk.SequenceLength, fc.F("Length")).WithUnit(bdk.AminoAcid),
			bdk.CV(bdk.Description, fc.F("Protein names")),
			bdk.CV(bdk.Flag("true", bdk.Reviewed), fc.F("Reviewed", bdk.MapValues("reviewed-flag"))),
		),
	}

	ds, err := resource.NewDataset("uniprot", "proteins", decl, builder, br, logger)
	if err != nil {
		return nil, err
	}
	return resource.NewResource("uniprot", decl.Meta()).Add(ds), nil
}
