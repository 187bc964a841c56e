package ocrmd

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStaticConfirmer(t *testing.T) {
	ctx := context.Background()
	assert.True(t, StaticConfirmer{Answer: true}.Confirm(ctx, "proceed?"))
	assert.False(t, StaticConfirmer{Answer: false}.Confirm(ctx, "proceed?"))
}

func TestTerminalConfirmer_Answers(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"  YES  \n", true},
		{"n\n", false},
		{"no\n", false},
		{"\n", false},
		{"whatever\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		c := TerminalConfirmer{In: strings.NewReader(tt.input), Out: &out}
		assert.Equal(t, tt.want, c.Confirm(context.Background(), "proceed?"), "input %q", tt.input)
		assert.Contains(t, out.String(), "proceed?")
	}
}

func TestTerminalConfirmer_EOFUsesDefault(t *testing.T) {
	c := TerminalConfirmer{In: strings.NewReader(""), Out: io.Discard, Default: false}
	assert.False(t, c.Confirm(context.Background(), "proceed?"))
}

func TestTerminalConfirmer_TimeoutUsesDefault(t *testing.T) {
	// A reader that never produces input: the confirmer must fall back to
	// the default answer when the timeout elapses.
	pr, pw := io.Pipe()
	defer pw.Close()

	c := TerminalConfirmer{In: pr, Out: io.Discard, Timeout: 20 * time.Millisecond, Default: false}
	start := time.Now()
	assert.False(t, c.Confirm(context.Background(), "proceed?"))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTerminalConfirmer_ContextCancelUsesDefault(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := TerminalConfirmer{In: pr, Out: io.Discard, Default: false}
	assert.False(t, c.Confirm(ctx, "proceed?"))
}
