package linkmap

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/text/language"
)

const filePrefix = "link_rules"

// Filename returns the rules filename for lang, using its 2-letter base code
// (e.g. "link_rules.en.json"). An empty lang gives the language-neutral
// "link_rules.json".
func Filename(lang string) string {
	if lang == "" {
		return filePrefix + ".json"
	}
	return filePrefix + "." + normalizeLanguageCode(lang) + ".json"
}

// FilePath returns the full path to the rules file in the given directory.
func FilePath(dir, lang string) string {
	return filepath.Join(dir, Filename(lang))
}

// FindInAncestors walks up from startDir looking for a rules file for lang,
// then for the language-neutral file. The closest file wins.
// Returns empty string if none is found.
func FindInAncestors(startDir, lang string) string {
	names := []string{Filename(lang)}
	if lang != "" {
		names = append(names, Filename(""))
	}
	currentDir := startDir

	for {
		for _, name := range names {
			candidate := filepath.Join(currentDir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Load reads a rule set from a JSON file.
func Load(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rules RuleSet
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return rules, nil
}

// Save writes a rule set to a JSON file with indentation.
func Save(path string, rules RuleSet) error {
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Digest returns a hex sha256 of the rule set's canonical encoding.
func Digest(rules RuleSet) (string, error) {
	data, err := json.Marshal(rules)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// normalizeLanguageCode parses a language string and returns its 2-letter base code.
func normalizeLanguageCode(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	base, _ := tag.Base()
	return base.String()
}
