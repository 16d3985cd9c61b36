package challenge

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePage struct {
	counts     map[string]int
	countErr   error
	body       string
	bodyErr    error
	html       string
	htmlErr    error
	screenshot []string
	cookies    []string
	probed     []string
}

func (p *fakePage) Count(selector string) (int, error) {
	p.probed = append(p.probed, selector)
	if p.countErr != nil {
		return 0, p.countErr
	}
	return p.counts[selector], nil
}

func (p *fakePage) Body() (string, error) {
	if p.bodyErr != nil {
		return "", p.bodyErr
	}
	return p.body, nil
}

func (p *fakePage) HTML() (string, error) {
	if p.htmlErr != nil {
		return "", p.htmlErr
	}
	return p.html, nil
}

func (p *fakePage) Screenshot(path string) error {
	p.screenshot = append(p.screenshot, path)
	return nil
}

func (p *fakePage) SaveCookies(path string) error {
	p.cookies = append(p.cookies, path)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassifyStatus403(t *testing.T) {
	detector := NewDetector(nil, nil, discardLogger())

	// 403 blocks regardless of what the page looks like.
	page := &fakePage{body: "Welcome! Fresh milk on offer today."}
	res := detector.Classify(403, page)

	assert.True(t, res.Blocked)
	assert.Contains(t, res.Reason, "403")
	assert.Empty(t, page.probed, "status alone must decide before any probing")
}

func TestClassifyDomMarker(t *testing.T) {
	detector := NewDetector(nil, nil, discardLogger())

	page := &fakePage{
		counts: map[string]int{`iframe[src*="challenges.cloudflare.com"]`: 1},
		body:   "ordinary page text",
	}
	res := detector.Classify(200, page)

	assert.True(t, res.Blocked)
	assert.Contains(t, res.Reason, "challenges.cloudflare.com")
}

func TestClassifyBodyPhrase(t *testing.T) {
	detector := NewDetector(nil, nil, discardLogger())

	tests := []struct {
		name    string
		body    string
		blocked bool
	}{
		{"just a moment interstitial", "Just a moment...", true},
		{"checking your browser", "We are Checking Your Browser before accessing", true},
		{"plain catalog page", "Молоко 42.90 грн", false},
		{"empty body", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := detector.Classify(200, &fakePage{body: tt.body})
			assert.Equal(t, tt.blocked, res.Blocked)
		})
	}
}

func TestClassifySignalsAreIndependent(t *testing.T) {
	detector := NewDetector(nil, nil, discardLogger())

	// No signal at all.
	res := detector.Classify(200, &fakePage{body: "catalog"})
	assert.False(t, res.Blocked)

	// Status 0 (no response observed) with a clean page is not a block.
	res = detector.Classify(0, &fakePage{body: "catalog"})
	assert.False(t, res.Blocked)
}

func TestClassifyProbeFailureIsNoSignal(t *testing.T) {
	detector := NewDetector(nil, nil, discardLogger())

	page := &fakePage{
		countErr: errors.New("page crashed"),
		bodyErr:  errors.New("page crashed"),
	}
	res := detector.Classify(200, page)

	assert.False(t, res.Blocked, "a failing probe must never turn into a block")
}

func TestClassifyCustomMarkers(t *testing.T) {
	detector := NewDetector([]string{".retailer-captcha"}, []string{"доступ обмежено"}, discardLogger())

	res := detector.Classify(200, &fakePage{counts: map[string]int{".retailer-captcha": 2}})
	assert.True(t, res.Blocked)

	res = detector.Classify(200, &fakePage{body: "Доступ обмежено. Спробуйте пізніше."})
	assert.True(t, res.Blocked)

	// Custom sets replace the defaults.
	res = detector.Classify(200, &fakePage{body: "just a moment"})
	assert.False(t, res.Blocked)
}
