// Package runtime supervises the local Ollama inference daemon.
//
// The Supervisor owns at most one child process handle and is the only
// component allowed to transition the runtime lifecycle state. It can
// detect an existing installation, download and verify an installer
// artifact, start the daemon, poll it to readiness, watch its health,
// and restart it once before declaring it degraded.
//
// All model interaction (embeddings, streaming generation, model pulls)
// goes through the daemon's HTTP API on loopback. Streaming responses
// are decoded line by line into tagged events; malformed lines are
// logged and skipped rather than failing the stream.
package runtime
