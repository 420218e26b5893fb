// Package ptypes contains the protobuf definitions of the gRPC ordering
// transport.
// To re-generate, install protoc and then run
//
// go generate .
package ptypes

//go:generate protoc -I ./ --go-grpc_out=./ --go-grpc_opt=paths=source_relative ./ordering.proto
