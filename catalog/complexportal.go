package catalog

import (
	"log"

	"github.com/biograph/bdk"
	"github.com/biograph/bdk/bronze"
	"github.com/biograph/bdk/resource"
	"github.com/pkg/errors"
)

// complextab has no stable header line, so columns are mapped by index and
// the header row is dropped by the accession filter. The participant column
// packs accession and stoichiometry as "P12345(2)|Q67890(0)" with "|"
// between members.
const complexPortalDecl = `
complexes:
  url: https://ftp.ebi.ac.uk/pub/databases/intact/complex/current/complextab/homo_sapiens.tsv
  format: tsv
  field_mapping:
    complex_ac: 0
    recommended_name: 1
    taxonomy_id: 3
    members: 4
  subfield_separator:
    members: "|"
  filters:
    - field: complex_ac
      operator: regex
      value: "^CPX-"
  description: Manually curated macromolecular complexes from the Complex Portal.
  organism: Homo sapiens
  data_type: complex
  license: CC0
  citation: "Meldal et al., Nucleic Acids Res. 47:D550 (2019)"
`

// ComplexPortal builds the complexportal resource: complex entities whose
// membership expands from the delimited participant column.
func ComplexPortal(br *bronze.Bronze, logger *log.Logger) (*resource.Resource, error) {
	file, err := resource.Parse([]byte(complexPortalDecl))
	if err != nil {
		return nil, errors.Wrap(err, "complexportal declaration")
	}
	decl := file["complexes"]

	fc := bdk.NewFieldConfig(
		bdk.Extracts("member-acc", bdk.Capture(`^([A-Za-z][A-Za-z0-9_.-]*)`)),
		bdk.Extracts("member-stoich", bdk.Capture(`\((\d+)\)$`)),
	)
	builder := &bdk.EntityBuilder{
		Type: bdk.Complex,
		Identifiers: bdk.Identifiers(
			bdk.CV(bdk.ComplexPortal, fc.F("complex_ac")),
		),
		Annotations: bdk.Annotations(
			bdk.CV(bdk.Description, fc.F("recommended_name")),
			bdk.CV(bdk.Organism, fc.F("taxonomy_id")),
		),
		Membership: []bdk.MemberSource{
			bdk.MembersFromList{
				Type: bdk.Protein,
				Identifiers: []bdk.CVSpec{
					bdk.CV(bdk.UniProt, fc.F("members", bdk.Split(), bdk.Extract("member-acc"))),
				},
				Annotations: []bdk.CVSpec{
					bdk.CV(bdk.Stoichiometry, fc.F("members", bdk.Split(), bdk.Extract("member-stoich"))),
				},
			},
		},
	}

	ds, err := resource.NewDataset("complexportal", "complexes", decl, builder, br, logger)
	if err != nil {
		return nil, err
	}
	return resource.NewResource("complexportal", decl.Meta()).Add(ds), nil
}
