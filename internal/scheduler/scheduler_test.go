package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func checkpoint(context.Context, int64) error { return nil }

func TestBlockCallback_FirstTriggerOnInterval(t *testing.T) {
	bc := NewBlockCallback(10, checkpoint)

	assert.False(t, bc.ShouldTrigger(0))
	assert.False(t, bc.ShouldTrigger(7))
	assert.True(t, bc.ShouldTrigger(20))
}

func TestBlockCallback_TriggersAfterInterval(t *testing.T) {
	bc := NewBlockCallback(10, checkpoint)
	bc.MarkTriggered(20)

	assert.False(t, bc.ShouldTrigger(25))
	assert.True(t, bc.ShouldTrigger(30))
	assert.True(t, bc.ShouldTrigger(47), "missed intervals fire once")
}

func TestBlockCallback_HeightRegression(t *testing.T) {
	bc := NewBlockCallback(10, checkpoint)
	bc.MarkTriggered(500)

	assert.False(t, bc.ShouldTrigger(13))
	assert.Equal(t, int64(-1), bc.LastTriggerAtBlock)
	assert.True(t, bc.ShouldTrigger(40))
}

func TestBlockCallback_IntervalFloor(t *testing.T) {
	bc := NewBlockCallback(0, checkpoint)
	assert.True(t, bc.ShouldTrigger(3))
}

func TestBlockCallback_Execute(t *testing.T) {
	var got int64
	bc := NewBlockCallback(5, func(_ context.Context, h int64) error {
		got = h
		return nil
	})
	assert.NoError(t, bc.Execute(context.Background(), 15))
	assert.Equal(t, int64(15), got)
}

func TestBlockCallback_Name(t *testing.T) {
	assert.Equal(t, "checkpoint", NewBlockCallback(1, checkpoint).GetName())
	assert.Equal(t, "height-log", NewBlockCallback(1, checkpoint).Named("height-log").GetName())
	assert.Equal(t, "unknown", InferNameFromFunc(42))
}

type ticker struct{}

func (*ticker) Tick(context.Context, int64) error { return nil }

func TestInferNameFromFunc(t *testing.T) {
	closure := func(context.Context, int64) error { return nil }
	var nilFn func(context.Context, int64) error

	tests := []struct {
		name string
		fn   any
		want string
	}{
		{"top-level function", checkpoint, "checkpoint"},
		{"closure reports enclosing function", closure, "TestInferNameFromFunc"},
		{"method value", (&ticker{}).Tick, "Tick"},
		{"nil function", nilFn, "unknown"},
		{"not a function", "checkpoint", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferNameFromFunc(tt.fn))
		})
	}
}
