package library

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func noDetection(string) string { return "" }

func TestScanner_FindsDocumentsByExtension(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "docs")
	writeFile(t, filepath.Join(root, "index.html"), "<p>hello</p>")
	writeFile(t, filepath.Join(root, "guides", "intro.md"), "# intro")
	writeFile(t, filepath.Join(root, "guides", "diagram.png"), "png")
	writeFile(t, filepath.Join(root, "link_rules.json"), "[]")
	writeFile(t, filepath.Join(root, ".git", "HEAD.txt"), "ref")

	scanner := NewScanner(
		[]SourceConfig{{ID: "docs", Name: "Docs", Path: root}},
		language.English,
		WithLanguageDetector(noDetection),
	)

	lib, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, lib.Sources, 1)
	assert.Equal(t, 2, lib.Sources[0].DocumentCount)
	require.Len(t, lib.Documents, 2)

	doc := lib.Documents[0]
	assert.Equal(t, "docs|guides/intro.md", doc.ID)
	assert.Equal(t, "docs", doc.SourceID)
	assert.Equal(t, filepath.Join(root, "guides", "intro.md"), doc.Path)
	assert.Equal(t, "guides/intro.md", doc.RelPath)
	assert.Equal(t, "en", doc.Language)
	assert.Equal(t, int64(len("# intro")), doc.Size)
	assert.False(t, doc.ModTime.IsZero())

	assert.Equal(t, "index.html", lib.Documents[1].RelPath)
}

func TestScanner_WithExtensions(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "a.html"), "a")
	writeFile(t, filepath.Join(tmp, "b.RST"), "b")

	scanner := NewScanner(
		[]SourceConfig{{ID: "s", Path: tmp}},
		language.English,
		WithExtensions("rst", ""),
		WithLanguageDetector(noDetection),
	)

	lib, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, lib.Documents, 1)
	assert.Equal(t, "b.RST", lib.Documents[0].RelPath)
}

func TestScanner_LanguageResolution(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "guide.fr.html"), "<p>hello</p>")
	writeFile(t, filepath.Join(tmp, "guide.eng.md"), "bonjour")
	writeFile(t, filepath.Join(tmp, "detected.md"), "hola")
	writeFile(t, filepath.Join(tmp, "plain.txt"), "???")

	scanner := NewScanner(
		[]SourceConfig{{ID: "s", Path: tmp}},
		language.German,
		WithLanguageDetector(func(text string) string {
			if text == "hola" {
				return "es"
			}
			return ""
		}),
	)

	lib, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	langs := make(map[string]string)
	for _, doc := range lib.Documents {
		langs[doc.RelPath] = doc.Language
	}
	assert.Equal(t, map[string]string{
		"guide.fr.html": "fr",
		"guide.eng.md":  "en",
		"detected.md":   "es",
		"plain.txt":     "de",
	}, langs)
}

func TestScanner_DetectorSeesTextWithoutMarkup(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "page.html"), `<p class="x">Bonjour</p>`)

	var seen string
	scanner := NewScanner(
		[]SourceConfig{{ID: "s", Path: tmp}},
		language.English,
		WithLanguageDetector(func(text string) string {
			seen = text
			return ""
		}),
	)

	_, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", seen)
}

func TestScanner_MissingSourceIsSkipped(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "present", "a.md"), "a")

	scanner := NewScanner(
		[]SourceConfig{
			{ID: "gone", Path: filepath.Join(tmp, "missing")},
			{ID: "empty"},
			{ID: "present", Path: filepath.Join(tmp, "present")},
		},
		language.English,
		WithLanguageDetector(noDetection),
	)

	lib, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, lib.Sources, 1)
	assert.Equal(t, "present", lib.Sources[0].ID)
	assert.Len(t, lib.Documents, 1)
}

func TestScanner_Scan_UsesCacheUntilInvalidate(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "docs", "a.md"), "some text")

	var detectorCalls atomic.Int32
	scanner := NewScanner(
		[]SourceConfig{{ID: "docs", Name: "Docs", Path: filepath.Join(tmp, "docs")}},
		language.English,
		WithLanguageDetector(func(string) string {
			detectorCalls.Add(1)
			return ""
		}),
		WithCacheTTL(10*time.Second),
	)

	_, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	_, err = scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), detectorCalls.Load())

	scanner.Invalidate()
	_, err = scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), detectorCalls.Load())
}

func TestScanner_CachedResultIsACopy(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "a.md"), "a")

	scanner := NewScanner(
		[]SourceConfig{{ID: "s", Path: tmp}},
		language.English,
		WithLanguageDetector(noDetection),
		WithCacheTTL(time.Minute),
	)

	lib, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	lib.Documents[0].Language = "xx"

	lib, err = scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "en", lib.Documents[0].Language)
}

func TestScanner_UpdateDefaultLanguage_TakesEffectImmediately(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "a.md"), "a")

	scanner := NewScanner(
		[]SourceConfig{{ID: "s", Path: tmp}},
		language.English,
		WithLanguageDetector(noDetection),
		WithCacheTTL(10*time.Second),
	)

	lib, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "en", lib.Documents[0].Language)

	require.NoError(t, scanner.UpdateDefaultLanguage("ja"))
	assert.Equal(t, "ja", scanner.DefaultLanguage())

	lib, err = scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ja", lib.Documents[0].Language)

	assert.Error(t, scanner.UpdateDefaultLanguage("not a language!"))
}

func TestScanner_Scan_HonoursCancellation(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "a.md"), "a")

	scanner := NewScanner(
		[]SourceConfig{{ID: "s", Path: tmp}},
		language.English,
		WithLanguageDetector(noDetection),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scanner.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLanguageFromFilename(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"guide.fr.html", "fr"},
		{"guide.FR.html", "fr"},
		{"guide.fre.md", "fr"},
		{"guide.html", ""},
		{"v1.2.md", ""},
		{"release.notes.md", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, languageFromFilename(tt.name))
		})
	}
}

func TestNormalizeLangCode(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"en", "en"},
		{"eng", "en"},
		{"fre", "fr"},
		{"zh", "zh"},
		{"", ""},
		{"x", ""},
		{"notalang", ""},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeLangCode(tt.token))
		})
	}
}

func TestDetectLanguage(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog while the children are " +
		"playing in the garden and their parents are watching them from the house."
	assert.Equal(t, "en", detectLanguage(text))
}
