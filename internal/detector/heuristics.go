package detector

import (
	"fmt"
	"regexp"

	"github.com/user/meetscribe/internal/config"
	"github.com/user/meetscribe/internal/types"
)

// Heuristics recognizes meeting activity in app samples. Matches are advisory
// and approximate; the confirmation workflow compensates for false positives.
type Heuristics struct {
	apps     map[string]string // bundle id -> display name
	patterns []*regexp.Regexp
}

// NewHeuristics compiles the known-app set and window title patterns.
func NewHeuristics(apps []config.MeetingApp, patterns []string) (*Heuristics, error) {
	h := &Heuristics{apps: make(map[string]string, len(apps))}
	for _, app := range apps {
		h.apps[app.BundleID] = app.Name
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile title pattern %q: %w", p, err)
		}
		h.patterns = append(h.patterns, re)
	}
	return h, nil
}

// Match reports whether a sample looks like an in-progress meeting: a known
// meeting app that is either in the foreground or whose window title matches
// a meeting pattern. An unreadable title is a miss, never an error.
func (h *Heuristics) Match(s types.AppSample) bool {
	if _, ok := h.apps[s.BundleID]; !ok {
		return false
	}
	if s.Foreground {
		return true
	}
	return h.titleMatches(s.WindowTitle)
}

func (h *Heuristics) titleMatches(title string) bool {
	if title == "" {
		return false
	}
	for _, re := range h.patterns {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// AppName returns the configured display name for a bundle id, falling back
// to the bundle id itself.
func (h *Heuristics) AppName(bundleID string) string {
	if name, ok := h.apps[bundleID]; ok {
		return name
	}
	return bundleID
}
