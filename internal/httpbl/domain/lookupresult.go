package domain

import "slices"

// LookupResult is the decoded outcome of one reputation query.
//
// Search engine listings reuse the answer octets: the score octet carries the
// search engine code and the activity octet carries nothing. For those
// results ThreatScore is 0 and DaysSinceActivity is nil.
type LookupResult struct {
	IP                string           `json:"ip"`
	DaysSinceActivity *uint8           `json:"days_since_activity,omitempty"`
	ThreatScore       uint8            `json:"threat_score"`
	TypeBitmask       uint8            `json:"type_bitmask"`
	Classifications   []Classification `json:"classifications"`
	SearchEngineCode  *uint8           `json:"search_engine_code,omitempty"`
	SearchEngineName  string           `json:"search_engine_name,omitempty"`
}

// NewNotBlacklisted returns the result used whenever no listing was obtained.
func NewNotBlacklisted(ip string) LookupResult {
	return LookupResult{
		IP:              ip,
		Classifications: []Classification{NotBlacklisted},
	}
}

// NewLookupResult builds the result for a listing reply.
func NewLookupResult(ip string, r Reply) LookupResult {
	res := LookupResult{
		IP:          ip,
		TypeBitmask: r.Type,
	}
	if r.IsSearchEngine() {
		code := r.Score
		res.Classifications = []Classification{SearchEngine}
		res.SearchEngineCode = &code
		res.SearchEngineName = SearchEngineName(code)
		return res
	}
	activity := r.Activity
	res.DaysSinceActivity = &activity
	res.ThreatScore = r.Score
	res.Classifications = classify(r.Type)
	return res
}

// Has reports whether c is among the result's classifications.
func (r LookupResult) Has(c Classification) bool {
	return slices.Contains(r.Classifications, c)
}

// IsListed reports whether the lookup produced a listing of any kind,
// including search engines.
func (r LookupResult) IsListed() bool {
	return !r.Has(NotBlacklisted)
}

// IsSearchEngine reports whether the listing identifies a search engine.
func (r LookupResult) IsSearchEngine() bool {
	return r.Has(SearchEngine)
}

// Labels returns the classification labels as strings.
func (r LookupResult) Labels() []string {
	labels := make([]string, 0, len(r.Classifications))
	for _, c := range r.Classifications {
		labels = append(labels, c.String())
	}
	return labels
}
