package types

// DiscoveredSource is one ranked, evidence-bearing source candidate from the
// web-search service. URLs are whatever the search provider actually
// retrieved; the engine does not fetch or re-verify them.
type DiscoveredSource struct {
	Title           string   `json:"title"`
	URL             string   `json:"url"`
	Domain          string   `json:"domain"`
	AuthorityScore  int      `json:"authorityScore"`
	RelevanceReason string   `json:"relevanceReason"`
	Claims          []string `json:"claims"`
	SuggestedUse    string   `json:"suggestedUse"`
}
