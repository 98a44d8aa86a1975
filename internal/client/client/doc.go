// Package client is the gRPC client of the tokenkeeper session service.
//
// GRPCClient keeps the current token pair in memory, attaches the access
// token to protected calls and transparently refreshes it once when the
// server reports it expired. gRPC status codes are mapped to the sentinel
// errors in errors.go, which callers match with errors.Is.
package client
