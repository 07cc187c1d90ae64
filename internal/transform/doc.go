// Package transform defines the engine-side client for the conversion plugin.
// A Client converts one dataset per call, either in this process through the
// host core or in a remote plugin process over gRPC; pipeline stages and the
// gRPC service only see the interface.
package transform
