package types

// Event is a structured record emitted by the native engines whenever state
// changes. Attributes are flat string pairs so indexers and the RPC layer can
// surface them without schema knowledge.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
