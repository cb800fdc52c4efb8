package library

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DefaultExtensions are scanned when no WithExtensions option is given.
var DefaultExtensions = []string{".html", ".htm", ".md", ".markdown", ".txt"}

// sampleSize bounds how much of a document is read for language detection.
const sampleSize = 4096

// LanguageDetector returns the 2-letter code of text's language, or "" when
// it cannot tell.
type LanguageDetector func(text string) string

type scannerOptions struct {
	extensions       []string
	languageDetector LanguageDetector
	cacheTTL         time.Duration
}

type Option func(*scannerOptions)

// WithExtensions restricts the scan to files with the given extensions.
// Matching is case-insensitive; a missing leading dot is added.
func WithExtensions(exts ...string) Option {
	return func(o *scannerOptions) {
		o.extensions = normalizeExtensions(exts)
	}
}

func WithLanguageDetector(detector LanguageDetector) Option {
	return func(o *scannerOptions) {
		o.languageDetector = detector
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(o *scannerOptions) {
		o.cacheTTL = ttl
	}
}

type scanCache struct {
	version uint64
	scanned time.Time
	library *Library
}

type Scanner struct {
	sources          []SourceConfig
	defaultLanguage  language.Tag
	extensions       []string
	languageDetector LanguageDetector

	mu            sync.RWMutex
	cacheTTL      time.Duration
	cache         *scanCache
	configVersion uint64
}

func NewScanner(
	sources []SourceConfig,
	defaultLanguage language.Tag,
	opts ...Option,
) *Scanner {
	options := scannerOptions{
		extensions:       DefaultExtensions,
		languageDetector: detectLanguage,
		cacheTTL:         5 * time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Scanner{
		sources:          sources,
		defaultLanguage:  defaultLanguage,
		extensions:       options.extensions,
		languageDetector: options.languageDetector,
		cacheTTL:         options.cacheTTL,
	}
}

// DefaultLanguage returns the base code used when a document's language
// cannot be resolved.
func (s *Scanner) DefaultLanguage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultLanguageBase()
}

func (s *Scanner) UpdateDefaultLanguage(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.defaultLanguage != tag {
		s.defaultLanguage = tag
		s.cache = nil
		s.configVersion++
	}
	s.mu.Unlock()
	return nil
}

func (s *Scanner) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.configVersion++
	s.mu.Unlock()
}

func (s *Scanner) Scan(ctx context.Context) (*Library, error) {
	s.mu.RLock()
	version := s.configVersion
	cacheTTL := s.cacheTTL
	if s.cache != nil && s.cache.version == version && (cacheTTL <= 0 || time.Since(s.cache.scanned) < cacheTTL) {
		cached := cloneLibrary(s.cache.library)
		s.mu.RUnlock()
		return cached, nil
	}
	sources := append([]SourceConfig(nil), s.sources...)
	defaultLanguage := s.defaultLanguageBase()
	extensions := s.extensions
	detector := s.languageDetector
	s.mu.RUnlock()

	ret := &Library{
		Sources:   make([]Source, 0, len(sources)),
		Documents: make([]Document, 0),
	}

	for _, sourceCfg := range sources {
		if sourceCfg.Path == "" {
			continue
		}
		if _, err := os.Stat(sourceCfg.Path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		source := Source{
			ID:   sourceCfg.ID,
			Name: sourceCfg.Name,
			Path: sourceCfg.Path,
		}

		files, err := findDocuments(sourceCfg.Path, extensions)
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			info, err := os.Stat(path)
			if err != nil {
				return nil, err
			}
			rel, err := filepath.Rel(sourceCfg.Path, path)
			if err != nil {
				return nil, err
			}

			lang := languageFromFilename(filepath.Base(path))
			if lang == "" {
				lang = detectFileLanguage(path, detector)
			}
			if lang == "" {
				lang = defaultLanguage
			}

			ret.Documents = append(ret.Documents, Document{
				ID:       sourceCfg.ID + "|" + filepath.ToSlash(rel),
				SourceID: sourceCfg.ID,
				Path:     path,
				RelPath:  filepath.ToSlash(rel),
				Language: lang,
				Size:     info.Size(),
				ModTime:  info.ModTime(),
			})
			source.DocumentCount++
		}

		ret.Sources = append(ret.Sources, source)
	}

	s.mu.Lock()
	if s.configVersion == version {
		s.cache = &scanCache{
			version: version,
			scanned: time.Now(),
			library: cloneLibrary(ret),
		}
	}
	s.mu.Unlock()

	return ret, nil
}

// defaultLanguageBase requires mu to be held.
func (s *Scanner) defaultLanguageBase() string {
	base, _ := s.defaultLanguage.Base()
	return base.String()
}

func findDocuments(root string, extensions []string) ([]string, error) {
	ret := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), "link_rules") {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if slices.Contains(extensions, ext) {
			ret = append(ret, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// languageFromFilename returns the language token between the stem and the
// extension, e.g. "fr" for "guide.fr.html". Returns "" if there is none.
func languageFromFilename(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	idx := strings.LastIndexByte(stem, '.')
	if idx < 0 {
		return ""
	}
	return normalizeLangCode(strings.ToLower(stem[idx+1:]))
}

// normalizeLangCode validates a language token and returns its normalized
// ISO 639-1 base code (e.g. "fre"→"fr", "eng"→"en").
// Returns "" if the token is not a recognized language code.
func normalizeLangCode(token string) string {
	if len(token) < 2 || len(token) > 3 {
		return ""
	}
	tag, err := language.Parse(token)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

var markupPattern = regexp.MustCompile(`<[^>]*>`)

func detectFileLanguage(path string, detector LanguageDetector) string {
	if detector == nil {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	sample, err := io.ReadAll(io.LimitReader(f, sampleSize))
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(markupPattern.ReplaceAllString(string(sample), " "))
	if text == "" {
		return ""
	}
	return detector(text)
}

// detectLanguage reports whatlanggo's guess when it is reliable.
func detectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return normalizeLangCode(info.Lang.Iso6391())
}

func normalizeExtensions(exts []string) []string {
	ret := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if !slices.Contains(ret, ext) {
			ret = append(ret, ext)
		}
	}
	return ret
}

func cloneLibrary(src *Library) *Library {
	if src == nil {
		return nil
	}

	dst := &Library{
		Sources:   make([]Source, len(src.Sources)),
		Documents: make([]Document, len(src.Documents)),
	}
	copy(dst.Sources, src.Sources)
	copy(dst.Documents, src.Documents)
	return dst
}
