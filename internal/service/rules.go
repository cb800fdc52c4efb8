package service

import (
	"sync"

	"github.com/MimeLyc/term-linker/internal/linkmap"
)

// ruleCache loads each rules file at most once per run.
type ruleCache struct {
	mu      sync.Mutex
	entries map[string]*ruleEntry
}

type ruleEntry struct {
	once   sync.Once
	rules  linkmap.RuleSet
	digest string
	err    error
}

func newRuleCache() *ruleCache {
	return &ruleCache{entries: make(map[string]*ruleEntry)}
}

func (c *ruleCache) load(path string) (linkmap.RuleSet, string, error) {
	c.mu.Lock()
	entry, ok := c.entries[path]
	if !ok {
		entry = &ruleEntry{}
		c.entries[path] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.rules, entry.err = linkmap.Load(path)
		if entry.err != nil {
			return
		}
		entry.digest, entry.err = linkmap.Digest(entry.rules)
	})
	return entry.rules, entry.digest, entry.err
}
