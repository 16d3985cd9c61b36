// Package challenge detects anti-bot interstitials and coordinates recovery
// from them: diagnostic dumps, the one optional human-assisted solve per run,
// and persisting the session cookies once a site starts trusting us.
package challenge

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultMarkers are DOM selectors matching known challenge widgets. Profiles
// may override them with retailer-specific sets.
var DefaultMarkers = []string{
	`iframe[src*="challenges.cloudflare.com"]`,
	`#challenge-form`,
	`[class*="challenge"]`,
	`[id*="challenge"]`,
}

// DefaultPhrases are interstitial body-text fragments, matched
// case-insensitively.
var DefaultPhrases = []string{
	"checking your browser",
	"just a moment",
}

// Probe is the slice of a page the detector inspects.
type Probe interface {
	// Count reports how many nodes match selector.
	Count(selector string) (int, error)
	// Body returns the visible body text.
	Body() (string, error)
}

// Result classifies one inspected page.
type Result struct {
	Blocked bool
	Reason  string
}

// Detector classifies whether a page is presenting an access challenge. The
// three signals (HTTP status, widget markers in the DOM, interstitial body
// text) are independent; any one of them is sufficient.
type Detector struct {
	markers []string
	phrases []string
	logger  *slog.Logger
}

// NewDetector builds a detector for one retailer. Empty marker or phrase sets
// fall back to the shared defaults.
func NewDetector(markers, phrases []string, logger *slog.Logger) *Detector {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	if len(phrases) == 0 {
		phrases = DefaultPhrases
	}

	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}

	return &Detector{
		markers: markers,
		phrases: lowered,
		logger:  logger.With("component", "challenge_detector"),
	}
}

// Classify inspects the navigation status and the current page. It must run
// after every navigation, before any extraction is attempted. A failing probe
// contributes no signal; it never turns into a block on its own.
func (d *Detector) Classify(status int, page Probe) Result {
	if status == http.StatusForbidden {
		return Result{Blocked: true, Reason: "status 403"}
	}

	for _, marker := range d.markers {
		count, err := page.Count(marker)
		if err != nil {
			d.logger.Debug("marker probe failed", "marker", marker, "error", err)
			continue
		}
		if count > 0 {
			return Result{Blocked: true, Reason: "challenge marker " + marker}
		}
	}

	body, err := page.Body()
	if err != nil {
		d.logger.Debug("body probe failed", "error", err)
		return Result{}
	}

	lower := strings.ToLower(body)
	for _, phrase := range d.phrases {
		if strings.Contains(lower, phrase) {
			return Result{Blocked: true, Reason: fmt.Sprintf("challenge phrase %q", phrase)}
		}
	}

	return Result{}
}
