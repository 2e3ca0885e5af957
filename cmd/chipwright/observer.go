package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"chipwright/internal/diagnose"
	"chipwright/internal/report"
	"chipwright/internal/store"
	"chipwright/internal/verify"
)

// progressObserver renders run progress to the terminal and journals
// every attempt and module result. Store failures never interrupt the
// run; they are logged and dropped.
type progressObserver struct {
	mu        sync.Mutex
	out       io.Writer
	runID     string
	journal   *store.Store // nil disables journaling
	showDiffs bool
	logger    *zap.Logger

	position int
}

func newProgressObserver(out io.Writer, runID string, journal *store.Store, showDiffs bool, logger *zap.Logger) *progressObserver {
	return &progressObserver{
		out:       out,
		runID:     runID,
		journal:   journal,
		showDiffs: showDiffs,
		logger:    logger,
	}
}

// ModuleStarted implements orchestrate.Observer.
func (p *progressObserver) ModuleStarted(name string, position, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, report.BannerStyle.Render(fmt.Sprintf("[%d/%d] %s", position, total, name)))
}

// ModuleFinished implements orchestrate.Observer.
func (p *progressObserver) ModuleFinished(res verify.ModuleResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.position++
	state := report.StatusStyle(string(res.State)).Render(string(res.State))
	fmt.Fprintf(p.out, "%s %s %s\n", state, res.Node.Name,
		report.MutedStyle.Render(fmt.Sprintf("(%d attempts)", len(res.Attempts))))

	if res.State == verify.StateExhausted && res.Diagnostic != "" {
		fmt.Fprintln(p.out, report.PanelStyle.Render(res.Diagnostic))
	}

	if p.journal != nil {
		if err := p.journal.RecordModule(p.runID, p.position, res); err != nil {
			p.logger.Warn("journal write failed", zap.Error(err))
		}
	}
}

// ModuleSkipped implements orchestrate.Observer.
func (p *progressObserver) ModuleSkipped(name, failedDependency string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %s %s\n",
		report.WarningStyle.Render("skipped"), name,
		report.MutedStyle.Render("(dependency "+failedDependency+" failed)"))
}

// AttemptStarted implements verify.Observer.
func (p *progressObserver) AttemptStarted(module string, attempt, maxAttempts int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s\n", report.InfoStyle.Render(
		fmt.Sprintf("  attempt %d/%d: %s", attempt, maxAttempts, module)))
}

// AttemptFinished implements verify.Observer.
func (p *progressObserver) AttemptFinished(module string, a verify.Attempt) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := report.StatusStyle(string(a.Outcome.Status)).Render(string(a.Outcome.Status))
	detail := ""
	if a.Category != "" {
		detail = report.MutedStyle.Render(" [" + string(a.Category) + "]")
	}
	fmt.Fprintf(p.out, "  -> %s%s %s\n", status, detail,
		report.MutedStyle.Render(a.Duration.Round(10*time.Millisecond).String()))

	if p.journal != nil {
		if err := p.journal.RecordAttempt(p.runID, module, a); err != nil {
			p.logger.Warn("journal write failed", zap.Error(err))
		}
	}
}

// ArtifactRegenerated implements verify.Observer.
func (p *progressObserver) ArtifactRegenerated(module string, target diagnose.Target, attempt int, before, after string) {
	if !p.showDiffs || !report.Changed(before, after) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	label := fmt.Sprintf("%s %s, attempt %d", module, target, attempt)
	fmt.Fprintln(p.out, report.Diff(label, before, after))
}
