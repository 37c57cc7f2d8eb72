package remote

import (
	"errors"
	"fmt"
)

// ErrMaxRetries wraps the last transport error after the retry budget is spent.
var ErrMaxRetries = errors.New("max retries exceeded")

// RPCError is a JSON-RPC 2.0 error returned by the node. RPC-level errors
// indicate a bad request or node-side rejection and are never retried.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// IsNetworkError reports whether err is a transport-level failure, meaning
// the retry budget was exhausted without reaching the node. Callers treat
// these as transient and re-poll on the next tick.
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrMaxRetries)
}
