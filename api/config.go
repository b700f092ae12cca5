// Package api provides an HTTP API server for browsing the transcript DAG
// recorded by the relay.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string
}
