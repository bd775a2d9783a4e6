package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmri/mrc/internal/ports"
)

func testCardConfig() ports.CardConfig {
	return ports.CardConfig{
		SampleRate:      1e6,
		OutputChannels:  2,
		ReceiveChannels: 1,
		TriggerMode:     ports.TriggerModeSoftware,
	}
}

func TestCardLifecycle(t *testing.T) {
	ctx := context.Background()
	card := New()

	require.NoError(t, card.Configure(ctx, testCardConfig()))
	require.NoError(t, card.LoadBuffer(ctx, 0, make([]int16, 128)))
	require.NoError(t, card.LoadBuffer(ctx, 1, make([]int16, 128)))

	require.NoError(t, card.Arm(ctx))
	require.NoError(t, card.Start(ctx))

	completion, err := card.WaitComplete(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, ports.CompletionDone, completion.Status)
	assert.Equal(t, 1, card.Starts())
}

func TestCardRejectsOutOfOrderOperations(t *testing.T) {
	ctx := context.Background()
	card := New()

	assert.ErrorContains(t, card.LoadBuffer(ctx, 0, nil), "not configured")
	assert.ErrorContains(t, card.Arm(ctx), "not configured")
	assert.ErrorContains(t, card.Start(ctx), "not armed")

	require.NoError(t, card.Configure(ctx, testCardConfig()))
	_, err := card.WaitComplete(ctx, time.Second)
	assert.ErrorContains(t, err, "not running")

	assert.ErrorContains(t, card.LoadBuffer(ctx, 5, nil), "outside configured range")
}

func TestCardScriptedTimeoutThenDone(t *testing.T) {
	ctx := context.Background()
	card := New(WithTimeoutsOnRepetition(1, 1))

	require.NoError(t, card.Configure(ctx, testCardConfig()))
	require.NoError(t, card.Arm(ctx))
	require.NoError(t, card.Start(ctx))

	completion, err := card.WaitComplete(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, ports.CompletionTimeout, completion.Status)

	// After abort the card is re-armable; the retry of the same repetition
	// completes.
	require.NoError(t, card.Abort(ctx))
	require.NoError(t, card.Arm(ctx))
	require.NoError(t, card.Start(ctx))

	completion, err = card.WaitComplete(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, ports.CompletionDone, completion.Status)
	assert.Equal(t, 1, card.Aborts())
}

func TestCardScriptedFault(t *testing.T) {
	ctx := context.Background()
	card := New(WithFaultOnRepetition(1, "buffer underrun"))

	require.NoError(t, card.Configure(ctx, testCardConfig()))
	require.NoError(t, card.Arm(ctx))
	require.NoError(t, card.Start(ctx))

	completion, err := card.WaitComplete(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, ports.CompletionFault, completion.Status)
	assert.Equal(t, "buffer underrun", completion.FaultDetail)
}

func TestCardReadBufferDeterministic(t *testing.T) {
	ctx := context.Background()
	card := New()
	require.NoError(t, card.Configure(ctx, testCardConfig()))

	window := ports.WindowSpec{Start: 16, NumSamples: 256}
	first, err := card.ReadBuffer(ctx, 0, window)
	require.NoError(t, err)
	second, err := card.ReadBuffer(ctx, 0, window)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	nonzero := 0
	for _, sample := range first {
		if sample != 0 {
			nonzero++
		}
	}
	assert.Greater(t, nonzero, len(first)/2, "synthesized signal should not be silent")

	_, err = card.ReadBuffer(ctx, 3, window)
	assert.ErrorContains(t, err, "outside configured range")
}

func TestCardHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	card := New()
	assert.ErrorIs(t, card.Configure(ctx, testCardConfig()), context.Canceled)

	_, err := card.WaitComplete(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
