package model

import "encoding/json"

// SessionSnapshot is the opaque client-side state handed to the
// extractor: flat namespaced key/value pairs plus one nested persisted
// application-state blob.
type SessionSnapshot struct {
	Entries   map[string]string `json:"entries"`
	Persisted json.RawMessage   `json:"persisted"`
}
