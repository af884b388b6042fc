package types

const (
	SectionIntro     = "intro"
	SectionContext   = "context"
	SectionCore      = "core"
	SectionEvidence  = "evidence"
	SectionTakeaways = "takeaways"
)

var ValidSectionTypes = map[string]struct{}{
	SectionIntro: {}, SectionContext: {}, SectionCore: {},
	SectionEvidence: {}, SectionTakeaways: {},
}

type OutlineSection struct {
	Title         string   `json:"title"`
	Type          string   `json:"type"`
	WordBudget    int      `json:"wordBudget"`
	BulletPrompts []string `json:"bulletPrompts"`
	SourceRefs    []string `json:"sourceRefs,omitempty"`
	ClaimRefs     []string `json:"claimRefs,omitempty"`
}

type QualityChecklist struct {
	OriginalAngle   bool   `json:"originalAngle"`
	EvidenceRatio   string `json:"evidenceRatio"`
	TargetAlignment bool   `json:"targetAlignment"`
}

// GEOSuggestions are answer-engine-optimization hints: a direct answer of at
// most 30 words and a term/definition pair.
type GEOSuggestions struct {
	DirectAnswer string `json:"directAnswer"`
	Term         string `json:"term"`
	Definition   string `json:"definition"`
}

type GeneratedOutline struct {
	Title     string           `json:"title"`
	Sections  []OutlineSection `json:"sections"`
	Checklist QualityChecklist `json:"qualityChecklist"`
	GEO       GEOSuggestions   `json:"geoSuggestions"`
}
