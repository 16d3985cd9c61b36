package challenge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPrompter hands out a pre-built acknowledgement channel.
type stubPrompter struct {
	ack     chan struct{}
	prompts []string
}

func (p *stubPrompter) PromptSolve(url string) <-chan struct{} {
	p.prompts = append(p.prompts, url)
	return p.ack
}

func newTestController(prompter Prompter, cfg Config) *Controller {
	detector := NewDetector(nil, nil, discardLogger())
	return NewController(detector, prompter, cfg, discardLogger())
}

func TestSolveDisabledSkipsURL(t *testing.T) {
	ctrl := newTestController(nil, Config{AllowHumanSolve: false, AbortOnRepeatBlock: true})

	outcome, err := ctrl.HandleChallenge(context.Background(), &fakePage{}, "https://shop.example.ua/a", "status 403")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkip, outcome)
	assert.Equal(t, StateBlocked, ctrl.State())
	assert.False(t, ctrl.SolvedThisRun())
}

func TestSolveDisabledNeverAbortsOnFirstBlocks(t *testing.T) {
	// Every URL challenged with solving disabled: each one is skipped, the
	// run itself keeps going.
	ctrl := newTestController(nil, Config{AllowHumanSolve: false, AbortOnRepeatBlock: true})

	for _, url := range []string{"u1", "u2", "u3"} {
		outcome, err := ctrl.HandleChallenge(context.Background(), &fakePage{}, url, "status 403")
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkip, outcome)
	}
}

func TestOperatorAcknowledgementClearsChallenge(t *testing.T) {
	prompter := &stubPrompter{ack: make(chan struct{})}
	close(prompter.ack) // operator confirms immediately

	cookiePath := filepath.Join(t.TempDir(), "cookies.json")
	ctrl := newTestController(prompter, Config{
		AllowHumanSolve: true,
		SolveWait:       time.Second,
		PollInterval:    time.Hour, // ack must win, not polling
		CookiePath:      cookiePath,
	})

	page := &fakePage{counts: map[string]int{`#challenge-form`: 1}}
	outcome, err := ctrl.HandleChallenge(context.Background(), page, "https://shop.example.ua/a", "marker")
	require.NoError(t, err)

	assert.Equal(t, OutcomeProceed, outcome)
	assert.Equal(t, StateNormal, ctrl.State())
	assert.True(t, ctrl.SolvedThisRun())
	assert.Equal(t, []string{"https://shop.example.ua/a"}, prompter.prompts)
	assert.Equal(t, []string{cookiePath}, page.cookies, "clearance must persist the trusted session")
}

func TestMarkerPollingDetectsClearance(t *testing.T) {
	// No acknowledgement ever arrives; the markers clear on their own.
	prompter := &stubPrompter{ack: make(chan struct{})}

	ctrl := newTestController(prompter, Config{
		AllowHumanSolve: true,
		SolveWait:       5 * time.Second,
		PollInterval:    10 * time.Millisecond,
	})

	page := &fakePage{} // no markers, no phrases: already clear on first poll
	outcome, err := ctrl.HandleChallenge(context.Background(), page, "u", "phrase")
	require.NoError(t, err)

	assert.Equal(t, OutcomeProceed, outcome)
	assert.True(t, ctrl.SolvedThisRun())
}

func TestSolveTimeoutBlocks(t *testing.T) {
	prompter := &stubPrompter{ack: make(chan struct{})} // never acknowledged

	ctrl := newTestController(prompter, Config{
		AllowHumanSolve: true,
		SolveWait:       30 * time.Millisecond,
		PollInterval:    10 * time.Millisecond,
	})

	// The page stays challenged through every poll.
	page := &fakePage{counts: map[string]int{`#challenge-form`: 1}}
	outcome, err := ctrl.HandleChallenge(context.Background(), page, "u", "marker")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkip, outcome)
	assert.Equal(t, StateBlocked, ctrl.State())
	assert.False(t, ctrl.SolvedThisRun())
}

func TestAtMostOneSolvePerRun(t *testing.T) {
	prompter := &stubPrompter{ack: make(chan struct{})}
	close(prompter.ack)

	ctrl := newTestController(prompter, Config{
		AllowHumanSolve:    true,
		SolveWait:          time.Second,
		PollInterval:       time.Hour,
		AbortOnRepeatBlock: true,
	})

	// First challenge: solved.
	outcome, err := ctrl.HandleChallenge(context.Background(), &fakePage{}, "u1", "marker")
	require.NoError(t, err)
	require.Equal(t, OutcomeProceed, outcome)

	// Second challenge in the same run: the solve is consumed, the repeat
	// block aborts the run.
	outcome, err = ctrl.HandleChallenge(context.Background(), &fakePage{}, "u2", "marker")
	require.NoError(t, err)

	assert.Equal(t, OutcomeAbort, outcome)
	assert.Equal(t, StateAborted, ctrl.State())
	assert.Len(t, prompter.prompts, 1, "the operator must be prompted at most once per run")
}

func TestRepeatBlockSkipsWhenAbortDisabled(t *testing.T) {
	prompter := &stubPrompter{ack: make(chan struct{})}
	close(prompter.ack)

	ctrl := newTestController(prompter, Config{
		AllowHumanSolve:    true,
		SolveWait:          time.Second,
		PollInterval:       time.Hour,
		AbortOnRepeatBlock: false,
	})

	outcome, err := ctrl.HandleChallenge(context.Background(), &fakePage{}, "u1", "marker")
	require.NoError(t, err)
	require.Equal(t, OutcomeProceed, outcome)

	outcome, err = ctrl.HandleChallenge(context.Background(), &fakePage{}, "u2", "marker")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkip, outcome)
	assert.Equal(t, StateBlocked, ctrl.State())
}

func TestTimedOutSolveConsumesTheAttempt(t *testing.T) {
	prompter := &stubPrompter{ack: make(chan struct{})}

	ctrl := newTestController(prompter, Config{
		AllowHumanSolve:    true,
		SolveWait:          20 * time.Millisecond,
		PollInterval:       10 * time.Millisecond,
		AbortOnRepeatBlock: true,
	})

	challenged := &fakePage{counts: map[string]int{`#challenge-form`: 1}}

	outcome, err := ctrl.HandleChallenge(context.Background(), challenged, "u1", "marker")
	require.NoError(t, err)
	require.Equal(t, OutcomeSkip, outcome)

	// The one attempt is spent; the next challenge is a repeat block.
	outcome, err = ctrl.HandleChallenge(context.Background(), challenged, "u2", "marker")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAbort, outcome)
}

func TestSolveWaitIsCancellable(t *testing.T) {
	prompter := &stubPrompter{ack: make(chan struct{})}

	ctrl := newTestController(prompter, Config{
		AllowHumanSolve: true,
		SolveWait:       time.Hour,
		PollInterval:    time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcome, err := ctrl.HandleChallenge(ctx, &fakePage{counts: map[string]int{`#challenge-form`: 1}}, "u", "marker")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeSkip, outcome)
	assert.Less(t, time.Since(start), time.Second, "cancellation must interrupt the wait promptly")
}

func TestChallengedEntryDumpsDiagnostics(t *testing.T) {
	dir := t.TempDir()
	ctrl := newTestController(nil, Config{
		AllowHumanSolve: false,
		SaveScreenshots: true,
		ArtifactDir:     dir,
	})
	ctrl.now = func() time.Time {
		return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	}

	page := &fakePage{html: "<html><body>Just a moment...</body></html>"}
	_, err := ctrl.HandleChallenge(context.Background(), page, "u", "phrase")
	require.NoError(t, err)

	dump, err := os.ReadFile(filepath.Join(dir, "challenge_20260314_092653.html"))
	require.NoError(t, err)
	assert.Contains(t, string(dump), "Just a moment")

	require.Len(t, page.screenshot, 1)
	assert.Equal(t, filepath.Join(dir, "challenge_20260314_092653.png"), page.screenshot[0])
}

func TestDiagnosticsSkippedWithoutArtifactDir(t *testing.T) {
	ctrl := newTestController(nil, Config{AllowHumanSolve: false})

	page := &fakePage{html: "<html/>"}
	_, err := ctrl.HandleChallenge(context.Background(), page, "u", "reason")
	require.NoError(t, err)

	assert.Empty(t, page.screenshot)
}
