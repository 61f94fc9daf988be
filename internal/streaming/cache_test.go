package streaming

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFakeCacheHSetThenGet(t *testing.T) {
	c := NewFakeCache()
	a := assert.New(t)

	a.NoError(c.HSet(context.Background(), "depth", "1::1", `{"x":1}`))
	v, ok := c.Get("depth", "1::1")
	a.True(ok)
	a.Equal(`{"x":1}`, v)

	_, ok = c.Get("depth", "missing")
	a.False(ok)
}
