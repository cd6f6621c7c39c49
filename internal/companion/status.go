// Package companion implements the realtime connection to the oracle
// backend: socket lifecycle, frame handling, tool dispatch, and the
// conversation state consumed by the chat surface.
package companion

// Status is the connection state. It is owned solely by the Client;
// transitions happen nowhere else.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	// StatusNoAPIKey means the capability probe reported no usable
	// credential. Terminal until an explicit disconnect/connect cycle;
	// retrying without a credential cannot succeed.
	StatusNoAPIKey Status = "no_api_key"
	StatusError    Status = "error"
)
