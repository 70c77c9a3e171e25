package types

import "fmt"

// ConfigError reports invalid static configuration. It is fatal at
// construction time and must prevent startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// TransportError wraps a network failure during a pool call. Recoverable,
// retry scheduling is the caller's concern.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed or incomplete message from the pool or
// from an inbound caller. Recoverable, last-known-good state is preserved.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol: " + e.Reason
}

// InvariantError reports an encode or crypto failure on locally
// constructed, type-checked data.
type InvariantError struct {
	Op  string
	Err error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant: %s: %v", e.Op, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }
