package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// State of the recovery machine. A run starts Normal; every detected
// challenge passes through Challenged and ends in Normal (solved), Blocked
// (URL abandoned) or Aborted (run terminated).
type State int

const (
	StateNormal State = iota
	StateChallenged
	StateSolving
	StateBlocked
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateChallenged:
		return "challenged"
	case StateSolving:
		return "solving"
	case StateBlocked:
		return "blocked"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Outcome tells the orchestrator what to do with the current URL.
type Outcome int

const (
	// OutcomeProceed: the challenge cleared; extract from the current page.
	OutcomeProceed Outcome = iota
	// OutcomeSkip: abandon this URL and move to the next one.
	OutcomeSkip
	// OutcomeAbort: terminate the run; accumulated products are still kept.
	OutcomeAbort
)

// Page is the slice of the browser session the controller touches during
// recovery: re-probing markers, dumping diagnostics, persisting cookies.
type Page interface {
	Probe
	HTML() (string, error)
	Screenshot(path string) error
	SaveCookies(path string) error
}

// Config is the recovery policy for one run.
type Config struct {
	// AllowHumanSolve permits one operator-assisted solve per run.
	AllowHumanSolve bool
	// SolveWait is the ceiling on waiting for the operator; the wait never
	// blocks past it.
	SolveWait time.Duration
	// PollInterval is how often the challenge markers are re-probed while
	// waiting, so a solve is noticed without an explicit acknowledgement.
	PollInterval time.Duration
	// AbortOnRepeatBlock terminates the run when the site re-challenges after
	// a consumed solve; off means such URLs are merely skipped.
	AbortOnRepeatBlock bool
	// SaveScreenshots adds a screenshot to the HTML dump on every challenge.
	SaveScreenshots bool
	// ArtifactDir receives the diagnostic dumps.
	ArtifactDir string
	// CookiePath is where the trusted session is persisted after a solve.
	CookiePath string
}

// Controller coordinates recovery from detected challenges for one scrape
// run. At most one human-assisted solve is attempted per run; a repeat
// challenge after it is treated as aggressive rate limiting, not something to
// retry. Not safe for concurrent use: a run issues one page operation at a
// time.
type Controller struct {
	detector *Detector
	prompter Prompter
	cfg      Config
	logger   *slog.Logger

	state         State
	solveConsumed bool
	solvedThisRun bool
	now           func() time.Time
}

func NewController(detector *Detector, prompter Prompter, cfg Config, logger *slog.Logger) *Controller {
	if cfg.SolveWait <= 0 {
		cfg.SolveWait = 3 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if prompter == nil {
		prompter = NopPrompter{}
	}

	return &Controller{
		detector: detector,
		prompter: prompter,
		cfg:      cfg,
		logger:   logger.With("component", "challenge_recovery"),
		state:    StateNormal,
		now:      time.Now,
	}
}

func (c *Controller) State() State { return c.state }

// SolvedThisRun reports whether an operator-assisted solve succeeded.
func (c *Controller) SolvedThisRun() bool { return c.solvedThisRun }

// HandleChallenge runs the state machine for one detected challenge. The
// returned error is only ever a context error; every challenge outcome is
// expressed through the Outcome value.
func (c *Controller) HandleChallenge(ctx context.Context, page Page, url, reason string) (Outcome, error) {
	c.state = StateChallenged
	c.logger.Warn("challenge detected", "url", url, "reason", reason)
	c.dumpDiagnostics(page)

	if !c.cfg.AllowHumanSolve || c.solveConsumed {
		repeatBlock := c.solveConsumed
		c.state = StateBlocked

		if repeatBlock && c.cfg.AbortOnRepeatBlock {
			c.state = StateAborted
			c.logger.Warn("re-challenged after a consumed solve, terminating the run", "url", url)
			return OutcomeAbort, nil
		}

		c.logger.Warn("abandoning url", "url", url, "repeat_block", repeatBlock)
		return OutcomeSkip, nil
	}

	c.state = StateSolving
	c.solveConsumed = true

	cleared, err := c.awaitSolve(ctx, page, url)
	if err != nil {
		c.state = StateBlocked
		return OutcomeSkip, err
	}
	if !cleared {
		c.state = StateBlocked
		c.logger.Warn("solve wait expired without clearance", "url", url)
		return OutcomeSkip, nil
	}

	c.state = StateNormal
	c.solvedThisRun = true
	c.logger.Info("challenge cleared", "url", url)

	if c.cfg.CookiePath != "" {
		if err := page.SaveCookies(c.cfg.CookiePath); err != nil {
			c.logger.Warn("failed to persist session cookies after solve", "error", err)
		} else {
			c.logger.Info("trusted session persisted", "path", c.cfg.CookiePath)
		}
	}

	return OutcomeProceed, nil
}

// awaitSolve suspends until the operator acknowledges, the markers clear on
// their own, the ceiling expires, or the run is cancelled.
func (c *Controller) awaitSolve(ctx context.Context, page Page, url string) (bool, error) {
	ack := c.prompter.PromptSolve(url)

	deadline := time.NewTimer(c.cfg.SolveWait)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ack:
			return true, nil
		case <-ticker.C:
			if res := c.detector.Classify(0, page); !res.Blocked {
				return true, nil
			}
		}
	}
}

// dumpDiagnostics persists the challenge page for a post-hoc failure record:
// always the raw markup, plus a screenshot when configured. Best-effort; a
// failed dump never changes the recovery outcome.
func (c *Controller) dumpDiagnostics(page Page) {
	if c.cfg.ArtifactDir == "" {
		return
	}
	if err := os.MkdirAll(c.cfg.ArtifactDir, 0755); err != nil {
		c.logger.Warn("failed to create artifact dir", "error", err)
		return
	}

	stem := filepath.Join(c.cfg.ArtifactDir, fmt.Sprintf("challenge_%s", c.now().Format("20060102_150405")))

	if html, err := page.HTML(); err != nil {
		c.logger.Warn("failed to capture challenge page markup", "error", err)
	} else if err := os.WriteFile(stem+".html", []byte(html), 0644); err != nil {
		c.logger.Warn("failed to write challenge page dump", "error", err)
	}

	if c.cfg.SaveScreenshots {
		if err := page.Screenshot(stem + ".png"); err != nil {
			c.logger.Warn("failed to capture challenge screenshot", "error", err)
		}
	}
}
