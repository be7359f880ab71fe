package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// labels maps provider names to the human-readable labels shown in chat.
var labels = map[string]string{
	NameClaudeCLI: "🧠 Claude (CLI)",
	NameCodexCLI:  "🤖 GPT (CLI)",
	NameOpenAIAPI: "🤖 GPT (API)",
}

// Label returns the display label for a provider name, falling back to the
// name itself for unknown providers.
func Label(name string) string {
	if label, ok := labels[name]; ok {
		return label
	}
	return name
}

// ValidName reports whether name identifies a known provider.
func ValidName(name string) bool {
	_, ok := labels[name]
	return ok
}

// Selector holds the runtime provider override selected via chat command.
// It is owned by the top-level application object and passed into request
// handling explicitly; when no override is set it falls back to the
// configured default deterministically.
type Selector struct {
	mu           sync.Mutex
	defaultName  string
	overrideName string
}

// NewSelector creates a selector with the given configured default.
func NewSelector(defaultName string) *Selector {
	return &Selector{defaultName: defaultName}
}

// Active returns the currently selected provider name.
func (s *Selector) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overrideName != "" {
		return s.overrideName
	}
	return s.defaultName
}

// Set overrides the active provider and returns its display label.
func (s *Selector) Set(name string) (string, error) {
	if !ValidName(name) {
		valid := make([]string, 0, len(labels))
		for n := range labels {
			valid = append(valid, n)
		}
		sort.Strings(valid)
		return "", fmt.Errorf("invalid provider %q (valid: %s)", name, strings.Join(valid, ", "))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrideName = name
	return Label(name), nil
}

// Reset clears the override, restoring the configured default.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrideName = ""
}
