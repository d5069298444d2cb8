package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/hupe1980/magentic/core"
)

// transcript prints member responses and the final answer.
type transcript struct {
	mu    sync.Mutex
	w     io.Writer
	quiet bool

	speaker *color.Color
	final   *color.Color
	failure *color.Color
}

func newTranscript(w io.Writer, quiet bool) *transcript {
	return &transcript{
		w:       w,
		quiet:   quiet,
		speaker: color.New(color.FgCyan, color.Bold),
		final:   color.New(color.FgGreen, color.Bold),
		failure: color.New(color.FgRed, color.Bold),
	}
}

// Response prints one member response.
func (t *transcript) Response(m core.Message) {
	if t.quiet {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.speaker.Fprintf(t.w, "── %s\n", m.Name)
	fmt.Fprintln(t.w, strings.TrimSpace(m.Text()))
	fmt.Fprintln(t.w)
}

// Final prints the final answer.
func (t *transcript) Final(m core.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.quiet {
		t.final.Fprintln(t.w, "══ Final answer")
	}
	fmt.Fprintln(t.w, strings.TrimSpace(m.Text()))
}

// Error prints a run failure.
func (t *transcript) Error(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failure.Fprintf(t.w, "error: %v\n", err)
}
