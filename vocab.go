package bdk

// Built-in vocabulary. PSI-MI accessions ("MI:") are used wherever the
// ontology has a matching term; internal extensions carry the "OM:" prefix.
// Connector schemas look these up once at construction time via MustTerm, or
// reference the exported variables directly.
var (
	// Entity types.
	Protein       = RegisterTerm("MI:0326", "protein")
	Peptide       = RegisterTerm("MI:0327", "peptide")
	SmallMolecule = RegisterTerm("MI:0328", "small molecule")
	Gene          = RegisterTerm("MI:0250", "gene")
	Complex       = RegisterTerm("MI:0314", "complex")
	Interaction   = RegisterTerm("MI:0190", "interaction")
	RNA           = RegisterTerm("MI:0320", "ribonucleic acid")

	// Identifier namespaces.
	UniProt        = RegisterTerm("MI:0486", "uniprot knowledge base")
	ChEBI          = RegisterTerm("MI:0474", "chebi")
	EnsemblGene    = RegisterTerm("MI:0476", "ensembl")
	RefSeq         = RegisterTerm("MI:0481", "refseq")
	PubMed         = RegisterTerm("MI:0446", "pubmed")
	IntAct         = RegisterTerm("MI:0469", "intact")
	ComplexPortal  = RegisterTerm("MI:2279", "complex portal")
	GeneSymbol     = RegisterTerm("OM:0101", "gene symbol")
	HMDB           = RegisterTerm("OM:0102", "hmdb")
	PubChemCID     = RegisterTerm("OM:0103", "pubchem compound")
	KEGGCompound   = RegisterTerm("OM:0104", "kegg compound")
	MirBase        = RegisterTerm("OM:0105", "mirbase")
	InternalID     = RegisterTerm("OM:0106", "internal identifier")

	// Annotation terms.
	Stoichiometry    = RegisterTerm("MI:0612", "comment") // stoichiometry carried as structured comment
	Organism         = RegisterTerm("OM:0701", "organism")
	SequenceLength   = RegisterTerm("OM:0702", "sequence length")
	Description      = RegisterTerm("OM:0703", "description")
	Reviewed         = RegisterTerm("OM:0704", "reviewed")
	Transmembrane    = RegisterTerm("OM:0705", "transmembrane")
	Secreted         = RegisterTerm("OM:0706", "secreted")
	MolecularWeight  = RegisterTerm("OM:0707", "molecular weight")
	EvidenceCode     = RegisterTerm("OM:0708", "evidence")
	ConfidenceScore  = RegisterTerm("MI:1064", "interaction confidence")
	DetectionMethod  = RegisterTerm("MI:0001", "interaction detection method")
	BiologicalRole   = RegisterTerm("MI:0500", "biological role")
	InteractorSource = RegisterTerm("OM:0709", "source participant")
	InteractorTarget = RegisterTerm("OM:0710", "target participant")

	// Unit terms.
	Dalton    = RegisterTerm("OM:0801", "dalton")
	AminoAcid = RegisterTerm("OM:0802", "amino acid residue")
)
