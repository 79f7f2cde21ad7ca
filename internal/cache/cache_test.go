package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledClient_FailsSafe(t *testing.T) {
	ctx := context.Background()

	for name, c := range map[string]*Client{"nil": nil, "empty addr": New("", "", 0)} {
		t.Run(name, func(t *testing.T) {
			assert.False(t, c.Enabled())

			v, err := c.Get(ctx, "k")
			require.NoError(t, err)
			assert.Nil(t, v)

			assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
			assert.NoError(t, c.Delete(ctx, "k"))
			stored, err := c.SetNX(ctx, "k", []byte("v"), time.Minute)
			require.NoError(t, err)
			assert.False(t, stored)
			assert.NoError(t, c.Close())

			_, err = c.Incr(ctx, "k", time.Minute)
			assert.ErrorIs(t, err, ErrUnavailable)
			assert.ErrorIs(t, c.Ping(ctx), ErrUnavailable)
		})
	}
}

func TestUnreachableServer_BehavesLikeMiss(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	c := New("127.0.0.1:1", "", 0)
	defer c.Close()

	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	stored, err := c.SetNX(ctx, "k", []byte("v"), time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	_, err = c.Incr(ctx, "k", time.Minute)
	assert.Error(t, err)
}
