package tracing

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestGetTracerForAddr(t *testing.T) {
	t.Setenv("JAEGER_DISABLED", "true")

	tracer, err := GetTracerForAddr("127.0.0.1:2000")
	require.NoError(t, err)
	require.NotNil(t, tracer)

	again, err := GetTracerForAddr("127.0.0.1:2000")
	require.NoError(t, err)
	require.Equal(t, tracer, again)

	require.NoError(t, CloseAll())
	require.Empty(t, tracers)

	t.Setenv("JAEGER_SAMPLER_PARAM", "abc")

	_, err = GetTracerForAddr("127.0.0.1:3000")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid jaeger environment: ")
	require.Empty(t, tracers)
}

func TestCloseAll(t *testing.T) {
	tracers["a"] = entry{closer: fakeCloser{}}
	tracers["b"] = entry{closer: fakeCloser{}}

	require.NoError(t, CloseAll())
	require.Empty(t, tracers)

	tracers["a"] = entry{closer: fakeCloser{err: errClose}}

	err := CloseAll()
	require.EqualError(t, err, "failed to close tracer of 'a': oops")
	require.Empty(t, tracers)
}

// -----------------------------------------------------------------------------
// Utility functions

var errClose = xerrors.New("oops")

type fakeCloser struct {
	err error
}

func (c fakeCloser) Close() error {
	return c.err
}
