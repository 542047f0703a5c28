package upstream

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrConfiguration is returned when no RPC endpoint URL is configured.
var ErrConfiguration = errors.New("rpc endpoint url is not configured")

// ConnectionError reports that the RPC endpoint could not be reached or the
// WebSocket handshake failed.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// RPCError reports a failed call on an established connection: a node-side
// error object, an undecodable result, or the connection dropping mid-call.
type RPCError struct {
	Method string
	Err    error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc %s: %v", e.Method, e.Err)
}

func (e *RPCError) Unwrap() error {
	return e.Err
}

// redactURL strips the path, query and credentials from an endpoint URL.
// Hosted providers embed API keys in the path.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "rpc endpoint"
	}
	return u.Scheme + "://" + u.Host
}
