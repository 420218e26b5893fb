// Package tracing provides the tracers of the ordering transports, one per
// listening address. The tracers are configured from the Jaeger environment
// variables (JAEGER_AGENT_HOST, JAEGER_SAMPLER_TYPE, ...), and JAEGER_DISABLED
// turns them into no-ops.
package tracing

import (
	"io"
	"sync"

	opentracing "github.com/opentracing/opentracing-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"golang.org/x/xerrors"
)

// ProtocolTag is the span tag holding the name of the ordering call, either
// the transaction submission or the proposal publication.
const ProtocolTag = "protocol"

// servicePrefix is prepended to the address to name the Jaeger service of a
// node.
const servicePrefix = "seqnode@"

type entry struct {
	tracer opentracing.Tracer
	closer io.Closer
}

var (
	mu      sync.Mutex
	tracers = map[string]entry{}
)

// GetTracerForAddr returns the tracer of the node listening on the address.
// The tracer is created on the first call and reused afterwards.
func GetTracerForAddr(addr string) (opentracing.Tracer, error) {
	mu.Lock()
	defer mu.Unlock()

	e, found := tracers[addr]
	if found {
		return e.tracer, nil
	}

	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, xerrors.Errorf("invalid jaeger environment: %v", err)
	}

	cfg.ServiceName = servicePrefix + addr

	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, xerrors.Errorf("failed to create tracer: %v", err)
	}

	tracers[addr] = entry{tracer: tracer, closer: closer}

	return tracer, nil
}

// CloseAll flushes and closes every tracer. The first failure is returned
// after all the tracers have been tried.
func CloseAll() error {
	mu.Lock()
	defer mu.Unlock()

	var first error

	for addr, e := range tracers {
		err := e.closer.Close()
		if err != nil && first == nil {
			first = xerrors.Errorf("failed to close tracer of '%s': %v", addr, err)
		}

		delete(tracers, addr)
	}

	return first
}
