package domain

// Graph kinds.
const (
	GraphKindBaseline = "BASELINE"
	GraphKindLearner  = "LEARNER"
	GraphKindCurated  = "CURATED"
)

// Graph scope types.
const (
	ScopeGlobal      = "GLOBAL"
	ScopeUser        = "USER"
	ScopeInstitution = "INSTITUTION"
)

// Node/edge provenance.
const (
	SourceDeterministic = "DETERMINISTIC"
	SourceUser          = "USER"
	SourceLLM           = "LLM"
)

// Edge types.
const (
	EdgePrerequisite = "PREREQUISITE"
	EdgeExplains     = "EXPLAINS"
	EdgePartOf       = "PART_OF"
	EdgeAppliesIn    = "APPLIES_IN"
	EdgeAnalogy      = "ANALOGY"
	EdgeCauses       = "CAUSES"
	EdgeLinksTo      = "LINKS_TO"
	EdgeSupports     = "SUPPORTS"
)

// Evidence types.
const (
	EvidenceHighlight      = "HIGHLIGHT"
	EvidenceCornellSummary = "CORNELL_SUMMARY"
	EvidenceTimestamp      = "TIMESTAMP"
	EvidencePageArea       = "PAGE_AREA"
)

// Registry entry status.
const (
	RegistryStatusActive    = "ACTIVE"
	RegistryStatusCandidate = "CANDIDATE"
)
