package domain

import (
	"fmt"
	"strings"
)

// Classification is a visitor type label derived from the fourth answer octet.
type Classification int

const (
	// NotBlacklisted is reserved for lookups that produced no listing:
	// resolution failures and answers outside 127.0.0.0/8.
	NotBlacklisted Classification = iota
	SearchEngine
	Suspicious
	Harvester
	CommentSpammer
)

// Visitor type bitmask values as published in the fourth answer octet.
// MaskCommentSpammer shares its value with MaskHarvester, so any listing that
// sets it carries both labels.
const (
	MaskSearchEngine   uint8 = 1
	MaskSuspicious     uint8 = 2
	MaskHarvester      uint8 = 4
	MaskCommentSpammer uint8 = 4
)

// String returns the human readable label.
func (c Classification) String() string {
	switch c {
	case NotBlacklisted:
		return "Not Blacklisted"
	case SearchEngine:
		return "Search Engine"
	case Suspicious:
		return "Suspicious"
	case Harvester:
		return "Harvester"
	case CommentSpammer:
		return "Comment Spammer"
	default:
		return fmt.Sprintf("Classification(%d)", c)
	}
}

// ParseClassification converts a label into a Classification.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseClassification(s string) (Classification, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "not blacklisted":
		return NotBlacklisted, nil
	case "search engine":
		return SearchEngine, nil
	case "suspicious":
		return Suspicious, nil
	case "harvester":
		return Harvester, nil
	case "comment spammer":
		return CommentSpammer, nil
	default:
		return 0, fmt.Errorf("unsupported classification: %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Classification) MarshalText() ([]byte, error) {
	if c > CommentSpammer {
		return nil, fmt.Errorf("unsupported classification: %d", c)
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Classification) UnmarshalText(text []byte) error {
	parsed, err := ParseClassification(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// classify returns the labels for a non search-engine bitmask, tested
// independently in a fixed order.
func classify(mask uint8) []Classification {
	labels := []Classification{}
	if mask&MaskSuspicious != 0 {
		labels = append(labels, Suspicious)
	}
	if mask&MaskHarvester != 0 {
		labels = append(labels, Harvester)
	}
	if mask&MaskCommentSpammer != 0 {
		labels = append(labels, CommentSpammer)
	}
	return labels
}
