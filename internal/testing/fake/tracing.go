package fake

import opentracing "github.com/opentracing/opentracing-go"

// NoopTracerForAddr replaces the tracer lookup of a transport so that no span
// leaves the process.
func NoopTracerForAddr(string) (opentracing.Tracer, error) {
	return opentracing.NoopTracer{}, nil
}

// BadTracerForAddr replaces the tracer lookup of a transport with one that
// always fails.
func BadTracerForAddr(string) (opentracing.Tracer, error) {
	return nil, fakeErr
}
