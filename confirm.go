package ocrmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Confirmer answers the single yes/no question in the pipeline: whether to
// produce the images artifact after the text artifact is written. Injected so
// the branch is testable and works unattended.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// StaticConfirmer always answers with a fixed value. Used for unattended
// runs and in tests.
type StaticConfirmer struct {
	Answer bool
}

func (s StaticConfirmer) Confirm(ctx context.Context, prompt string) bool {
	return s.Answer
}

// TerminalConfirmer asks the operator on the terminal. A zero Timeout waits
// indefinitely; otherwise the configured Default answer (normally no) is
// used when the timeout elapses or the context is canceled.
type TerminalConfirmer struct {
	In      io.Reader
	Out     io.Writer
	Timeout time.Duration
	Default bool
}

func (t TerminalConfirmer) Confirm(ctx context.Context, prompt string) bool {
	fmt.Fprintf(t.Out, "%s [y/N]: ", prompt)

	answers := make(chan bool, 1)
	go func() {
		scanner := bufio.NewScanner(t.In)
		if !scanner.Scan() {
			answers <- t.Default
			return
		}
		reply := strings.ToLower(strings.TrimSpace(scanner.Text()))
		answers <- reply == "y" || reply == "yes"
	}()

	var timeout <-chan time.Time
	if t.Timeout > 0 {
		timer := time.NewTimer(t.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case answer := <-answers:
		return answer
	case <-timeout:
		fmt.Fprintln(t.Out)
		return t.Default
	case <-ctx.Done():
		return t.Default
	}
}
