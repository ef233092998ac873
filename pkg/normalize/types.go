// Package normalize implements deterministic text canonicalization,
// content-type detection, deduplication hashing, and the three-tier
// hot/warm/cold cache for normalized text.
package normalize

import "fmt"

// ContentType is the detected or declared kind of input text.
type ContentType int

const (
	ContentUnknown ContentType = iota
	ContentPlainText
	ContentMarkdown
	ContentJSON
	ContentCode
)

func (c ContentType) String() string {
	switch c {
	case ContentPlainText:
		return "text/plain"
	case ContentMarkdown:
		return "text/markdown"
	case ContentJSON:
		return "application/json"
	case ContentCode:
		return "text/code"
	default:
		return "unknown"
	}
}

// Level is the normalization policy applied to text. It is a tagged variant
// captured inside the collection archive so a future level change triggers
// a deliberate migration rather than silent drift.
type Level int

const (
	// Conservative: NFC, CRLF->LF, strip BOM. Preserves whitespace and case.
	Conservative Level = iota
	// Moderate (default): Conservative + strip zero-width/bidi controls,
	// collapse runs of >=3 newlines to 2, trim trailing whitespace per line.
	Moderate
	// Aggressive: Moderate + NFKC, collapse whitespace runs, optional case
	// folding and HTML-tag stripping.
	Aggressive
)

func (l Level) String() string {
	switch l {
	case Conservative:
		return "conservative"
	case Moderate:
		return "moderate"
	case Aggressive:
		return "aggressive"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// PolicyVersion increments whenever the normalization algorithm for a given
// Level changes in a way that would alter output. Stored in the archive;
// search refuses to run against a collection whose active policy version
// differs from its archive's.
const PolicyVersion = 1

// Policy is the full normalization configuration of a collection.
type Policy struct {
	Level Level `cbor:"level"`
	// FoldCase, when true and Level is Aggressive, lowercases the result.
	FoldCase bool `cbor:"fold_case"`
	// StripHTML, when true and Level is Aggressive, removes "<...>" tags.
	StripHTML bool `cbor:"strip_html"`
	// Version is PolicyVersion at the time the policy was captured.
	Version int `cbor:"version"`
}

// DefaultPolicy returns the Moderate policy with PolicyVersion stamped.
func DefaultPolicy() Policy {
	return Policy{Level: Moderate, Version: PolicyVersion}
}

// Artifact is the result of normalizing one piece of text.
type Artifact struct {
	OriginalText   string
	NormalizedText string
	ContentType    ContentType
	// Hash is the 32-byte BLAKE3 content hash of NormalizedText, the key
	// used for deduplication and cache lookups.
	Hash          [32]byte
	PolicyVersion int
}
