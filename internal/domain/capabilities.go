package domain

// Feature names an optional protocol behavior a server may offer.
type Feature string

const (
	FeatureStreaming    Feature = "streaming"
	FeatureCancellation Feature = "cancellation"
	FeatureProgress     Feature = "progress"
)

// FeatureState distinguishes a declared intention from a working behavior.
type FeatureState string

const (
	FeatureUnsupported FeatureState = "unsupported"
	// FeatureAdvertised is declared by the server but has no enforced semantics.
	FeatureAdvertised  FeatureState = "advertised"
	FeatureImplemented FeatureState = "implemented"
)

// Capabilities is the negotiated outcome of an initialize handshake.
type Capabilities struct {
	Version  string                   `json:"version"`
	Tools    []Tool                   `json:"tools"`
	Features map[Feature]FeatureState `json:"features"`
}

// State returns the declared state of f, FeatureUnsupported when absent.
func (c *Capabilities) State(f Feature) FeatureState {
	if c == nil {
		return FeatureUnsupported
	}
	if state, ok := c.Features[f]; ok {
		return state
	}
	return FeatureUnsupported
}

// Supports reports whether f is backed by a real implementation.
func (c *Capabilities) Supports(f Feature) bool {
	return c.State(f) == FeatureImplemented
}

// InitializeResult is the "result" of an initialize response.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

// ServerInfo identifies the server that answered the handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ListToolsResult is the "result" of a tools/list response.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}
