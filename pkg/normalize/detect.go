package normalize

import "strings"

// DetectContentType guesses the content type of text. extHint, when
// non-empty, is a file extension (e.g. ".md") and takes precedence; absent
// a hint the detector falls back to cheap structural heuristics.
func DetectContentType(text, extHint string) ContentType {
	switch strings.ToLower(strings.TrimPrefix(extHint, ".")) {
	case "md", "markdown":
		return ContentMarkdown
	case "json":
		return ContentJSON
	case "go", "py", "js", "ts", "java", "c", "cpp", "rs":
		return ContentCode
	case "txt", "text":
		return ContentPlainText
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ContentPlainText
	}
	if strings.HasPrefix(trimmed, "#!") {
		return ContentCode
	}
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		return ContentJSON
	}
	if strings.HasPrefix(trimmed, "#") || strings.Contains(trimmed, "\n## ") || strings.Contains(trimmed, "\n```") {
		return ContentMarkdown
	}
	if braceDensity(trimmed) > 0.02 {
		return ContentCode
	}
	return ContentPlainText
}

func braceDensity(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	n := 0
	for _, r := range s {
		switch r {
		case '{', '}', ';', '(', ')':
			n++
		}
	}
	return float64(n) / float64(len(s))
}
