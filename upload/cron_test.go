package upload

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct{ n atomic.Int32 }

func (c *countingRunner) RunOnce(context.Context, time.Time) (Summary, error) {
	c.n.Add(1)
	return Summary{}, nil
}

func TestNewCron_InvalidSpec(t *testing.T) {
	_, err := NewCron(context.Background(), "every tuesday", &countingRunner{}, nil)
	assert.Error(t, err)
}

func TestCron_RunStopsWithContext(t *testing.T) {
	r := &countingRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	c, err := NewCron(ctx, "@every 1s", r, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cron did not stop")
	}
}
