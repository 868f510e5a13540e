package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matzehuels/drvgraph/pkg/observability"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a one-line status message on the status output. The
// message can change while the spinner runs; [Spinner.trackRun] drives it
// from pipeline events.
type Spinner struct {
	out    io.Writer
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	message string
	width   int // widest line written, for clearing

	started atomic.Bool
	once    sync.Once
	stopped chan struct{}
}

// newSpinnerWithContext creates a spinner on statusOut that stops drawing
// when ctx is canceled.
func newSpinnerWithContext(ctx context.Context, message string) *Spinner {
	spinnerCtx, cancel := context.WithCancel(ctx)
	return &Spinner{
		out:     statusOut,
		ctx:     spinnerCtx,
		cancel:  cancel,
		message: message,
		stopped: make(chan struct{}),
	}
}

// SetMessage replaces the status message. The next frame shows it.
func (s *Spinner) SetMessage(msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
}

// Message returns the current status message.
func (s *Spinner) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// Start begins the animation.
func (s *Spinner) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i++ {
			select {
			case <-s.ctx.Done():
				s.clearLine()
				return
			case <-ticker.C:
				s.draw(spinnerFrames[i%len(spinnerFrames)])
			}
		}
	}()
}

func (s *Spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.message))
	s.width = max(s.width, len([]rune(s.message))+2)
}

// Stop ends the animation and clears the line. It is safe to call more
// than once and after the context was canceled.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		s.cancel()
		if s.started.Load() {
			<-s.stopped
		}
	})
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width == 0 {
		return
	}
	fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", s.width))
	s.width = 0
}

// StopWithError stops the spinner and prints message as an error line.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	printError("%s", message)
}

// trackRun installs pipeline hooks that keep the message in step with an
// analysis run. The returned function restores the previous hooks.
func (s *Spinner) trackRun() (restore func()) {
	prev := observability.Pipeline()
	observability.SetPipelineHooks(&runProgress{spinner: s})
	return func() { observability.SetPipelineHooks(prev) }
}

// runProgress turns pipeline events into spinner messages such as
// "Querying 12/40 derivations".
type runProgress struct {
	observability.NoopPipelineHooks

	spinner *Spinner
	total   atomic.Int64
	done    atomic.Int64
}

func (p *runProgress) OnEnumerateStart(_ context.Context, flakeURL string) {
	p.spinner.SetMessage(fmt.Sprintf("Evaluating %s...", flakeURL))
}

func (p *runProgress) OnEnumerateComplete(_ context.Context, _ string, count int, _ time.Duration, err error) {
	if err != nil {
		return
	}
	p.total.Store(int64(count))
	p.done.Store(0)
	p.spinner.SetMessage(fmt.Sprintf("Querying 0/%d derivations", count))
}

func (p *runProgress) OnQuery(context.Context, string, bool, int, time.Duration, error) {
	n := p.done.Add(1)
	p.spinner.SetMessage(fmt.Sprintf("Querying %d/%d derivations", n, p.total.Load()))
}

func (p *runProgress) OnGraphBuilt(_ context.Context, nodes, edges int, _ time.Duration) {
	p.spinner.SetMessage(fmt.Sprintf("Merged graph with %d nodes and %d edges", nodes, edges))
}

func (p *runProgress) OnAnalyzeStart(_ context.Context, dependents int, skipDominated bool) {
	msg := fmt.Sprintf("Analyzing %d derivations", dependents)
	if skipDominated {
		msg += ", filtering dominated dependencies"
	}
	p.spinner.SetMessage(msg + "...")
}
