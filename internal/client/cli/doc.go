// Package cli provides the interactive tokenkeeper command-line client.
//
// It wires configuration, the gRPC client and a REPL. A background watcher
// pings the server and the prompt shows whether it is reachable. Commands:
//   - login / logout / logout-all
//   - refresh (explicit; expired access tokens are also refreshed on demand)
//   - sessions
//   - ping
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
