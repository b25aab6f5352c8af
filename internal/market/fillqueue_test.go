package market

import (
	"testing"

	"duskbook/internal/engine"
	"duskbook/internal/ids"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillQueueEnqueueDrainFIFO(t *testing.T) {
	q := NewFillQueue(2)
	require.Nil(t, q.Enqueue(engine.Fill{FillID: ids.FromUint64(1)}))
	require.Nil(t, q.Enqueue(engine.Fill{FillID: ids.FromUint64(2)}))
	assert.Equal(t, 2, q.Len())

	err := q.Enqueue(engine.Fill{FillID: ids.FromUint64(3)})
	require.NotNil(t, err, "enqueueing past capacity must fail rather than grow unbounded")

	drained := q.Drain(1)
	require.Len(t, drained, 1)
	assert.True(t, drained[0].FillID.Equal(ids.FromUint64(1)))
	assert.True(t, drained[0].Settled)
	assert.Equal(t, 1, q.Len())
}

func TestFillQueueDrainNeverDoubleSettles(t *testing.T) {
	q := NewFillQueue(4)
	require.Nil(t, q.Enqueue(engine.Fill{FillID: ids.FromUint64(1)}, engine.Fill{FillID: ids.FromUint64(2)}))
	first := q.Drain(10)
	require.Len(t, first, 2)
	second := q.Drain(10)
	assert.Empty(t, second, "a fill must never be drained twice")
}
