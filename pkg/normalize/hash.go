package normalize

import "github.com/zeebo/blake3"

// ContentHash returns the 32-byte BLAKE3 hash of normalized text. Hash
// collisions are treated as equality (cryptographic-strength hash assumed).
func ContentHash(normalizedText string) [32]byte {
	return blake3.Sum256([]byte(normalizedText))
}

// Process normalizes text under policy, detects its content type, and
// computes its content hash in one pass.
func Process(text, extHint string, policy Policy) Artifact {
	normalized := Normalize(text, policy)
	return Artifact{
		OriginalText:   text,
		NormalizedText: normalized,
		ContentType:    DetectContentType(text, extHint),
		Hash:           ContentHash(normalized),
		PolicyVersion:  policy.Version,
	}
}
