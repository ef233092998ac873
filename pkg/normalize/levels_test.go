package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeIdempotent(t *testing.T) {
	samples := []string{
		"hello\r\nworld\r\n",
		"line1\n\n\n\n\nline2   \n",
		"plain text with​zero‌width‍chars",
		"MiXeD CaSe <b>html</b>   spacing",
	}
	policies := []Policy{
		{Level: Conservative, Version: PolicyVersion},
		{Level: Moderate, Version: PolicyVersion},
		{Level: Aggressive, Version: PolicyVersion, FoldCase: true, StripHTML: true},
	}
	for _, p := range policies {
		for _, s := range samples {
			once := Normalize(s, p)
			twice := Normalize(once, p)
			require.Equal(t, once, twice, "policy=%v input=%q", p.Level, s)
		}
	}
}

func TestNormalizeModerateCollapsesNewlines(t *testing.T) {
	out := Normalize("a\n\n\n\n\nb", Policy{Level: Moderate})
	require.Equal(t, "a\n\nb", out)
}

func TestNormalizeAggressiveFoldsCase(t *testing.T) {
	out := Normalize("Hello WORLD", Policy{Level: Aggressive, FoldCase: true})
	require.Equal(t, "hello world", out)
}

func TestContentHashStable(t *testing.T) {
	a := ContentHash("same text")
	b := ContentHash("same text")
	require.Equal(t, a, b)
	c := ContentHash("different text")
	require.NotEqual(t, a, c)
}

func TestDetectContentType(t *testing.T) {
	require.Equal(t, ContentJSON, DetectContentType(`{"a":1}`, ""))
	require.Equal(t, ContentMarkdown, DetectContentType("# Title\n\nbody", ""))
	require.Equal(t, ContentCode, DetectContentType("#!/bin/sh\necho hi", ""))
	require.Equal(t, ContentPlainText, DetectContentType("just words here", ""))
}
