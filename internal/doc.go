// Package internal contains the core implementation packages for the
// admin styler.
//
// The packages are organized by functional domain:
//
//   - config: configuration loading, defaults, and validation
//   - cssgen: deterministic CSS generation from sanitized settings
//   - errors: error taxonomy (field, security, transport) and collection
//   - logging: structured logging with token redaction
//   - preview: debounced, coalescing live-preview coordination
//   - security: nonces, sessions, capabilities, and the admission gate
//   - server: HTTP endpoints, middleware, and the websocket push hub
//   - settings: the setting registry and per-type sanitizers
//   - store: sqlite persistence for sanitized settings
//   - watcher: debounced theme file watching
//
// The pipeline invariant all of these serve: no raw value reaches the
// store or the stylesheet without passing the security gate and the
// sanitizer first.
package internal
