package ocrmd

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedEngine answers each segmentation mode from a fixed script and
// records the modes it was invoked with.
type scriptedEngine struct {
	attempts map[int]Attempt
	errs     map[int]error
	calls    []int
}

func (e *scriptedEngine) Name() string { return "scripted" }

func (e *scriptedEngine) Attempt(ctx context.Context, imageData []byte, mode int) (Attempt, error) {
	e.calls = append(e.calls, mode)
	if err := e.errs[mode]; err != nil {
		return Attempt{}, err
	}
	return e.attempts[mode], nil
}

func TestAttemptOrder(t *testing.T) {
	assert.Equal(t, []int{6, 3, 4}, attemptOrder(6, nil))
	assert.Equal(t, []int{11, 6, 3, 4}, attemptOrder(11, nil))
	assert.Equal(t, []int{3, 6, 4}, attemptOrder(3, nil))
	assert.Equal(t, []int{1, 2}, attemptOrder(1, []int{2, 1, 2}))
}

func TestAttemptRunner_PicksBestByConfidenceThenChars(t *testing.T) {
	engine := &scriptedEngine{
		attempts: map[int]Attempt{
			4: {Text: "low", AvgConf: 70, Chars: 50},
			6: {Text: "tied short", AvgConf: 85, Chars: 40},
			3: {Text: "tied long", AvgConf: 85, Chars: 60},
		},
	}
	runner := &AttemptRunner{Engine: engine}

	result, err := runner.Run(context.Background(), "hash", []byte("img"), 4)
	require.NoError(t, err)

	// 85 ties between modes 6 and 3; the higher character count wins.
	assert.Equal(t, "tied long", result.Text)
	assert.Equal(t, 3, result.Mode)
	assert.Equal(t, []int{4, 6, 3}, engine.calls)
}

func TestAttemptRunner_EqualCandidatesKeepEarliestMode(t *testing.T) {
	same := Attempt{Text: "same", AvgConf: 80, Chars: 100}
	engine := &scriptedEngine{
		attempts: map[int]Attempt{6: same, 3: same, 4: same},
	}
	runner := &AttemptRunner{Engine: engine}

	result, err := runner.Run(context.Background(), "hash", []byte("img"), 6)
	require.NoError(t, err)
	assert.Equal(t, 6, result.Mode, "full tie resolves to the earliest attempt")
}

func TestAttemptRunner_SkipsFailedAttempts(t *testing.T) {
	engine := &scriptedEngine{
		attempts: map[int]Attempt{
			3: {Text: "fallback worked", AvgConf: 60, Chars: 120},
			4: {Text: "worse", AvgConf: 40, Chars: 120},
		},
		errs: map[int]error{6: errors.New("engine crashed")},
	}
	runner := &AttemptRunner{Engine: engine}

	result, err := runner.Run(context.Background(), "hash", []byte("img"), 6)
	require.NoError(t, err)
	assert.Equal(t, "fallback worked", result.Text)
	assert.Equal(t, []int{6, 3, 4}, engine.calls, "a failed attempt must not stop the sequence")
}

func TestAttemptRunner_AllAttemptsFailed(t *testing.T) {
	boom := errors.New("no text found")
	engine := &scriptedEngine{
		errs: map[int]error{6: boom, 3: boom, 4: boom},
	}
	runner := &AttemptRunner{Engine: engine}

	_, err := runner.Run(context.Background(), "hash", []byte("img"), 6)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all OCR attempts failed")
}

func TestAttemptRunner_ContextCancellationAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := &scriptedEngine{
		errs: map[int]error{6: context.Canceled, 3: context.Canceled, 4: context.Canceled},
	}
	runner := &AttemptRunner{Engine: engine}

	_, err := runner.Run(ctx, "hash", []byte("img"), 6)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{6}, engine.calls, "remaining modes are not attempted")
}

func TestAttemptRunner_CacheHitSkipsEngine(t *testing.T) {
	cache := openTestCache(t)
	engine := &scriptedEngine{
		attempts: map[int]Attempt{
			6: {Text: "computed once", AvgConf: 90, Chars: 200},
			3: {Text: "never better", AvgConf: 10, Chars: 10},
			4: {Text: "never better", AvgConf: 10, Chars: 10},
		},
	}
	runner := &AttemptRunner{Engine: engine, Cache: cache}

	first, err := runner.Run(context.Background(), "hash", []byte("img"), 6)
	require.NoError(t, err)
	callsAfterFirst := len(engine.calls)

	second, err := runner.Run(context.Background(), "hash", []byte("img"), 6)
	require.NoError(t, err)

	assert.Equal(t, callsAfterFirst, len(engine.calls), "second run must be served from the cache")
	assert.Equal(t, first, second)
}

func TestAttemptRunner_CustomModes(t *testing.T) {
	engine := &scriptedEngine{
		attempts: map[int]Attempt{11: {Text: "sparse", AvgConf: 55, Chars: 30}},
	}
	runner := &AttemptRunner{Engine: engine, Modes: []int{}}

	result, err := runner.Run(context.Background(), "hash", []byte("img"), 11)
	require.NoError(t, err)
	assert.Equal(t, []int{11}, engine.calls)
	assert.Equal(t, 11, result.Mode)
}
