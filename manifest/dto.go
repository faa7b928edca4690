package manifest

import "encoding/json"

// ManifestDTO is the file representation of [Manifest]
type ManifestDTO struct {
	Entries []EntryDTO `json:"entries" yaml:"entries"`
}

// EntryDTO is the file representation of [Entry]
type EntryDTO struct {
	Path string  `json:"path" yaml:"path"`
	ID   *string `json:"id,omitempty" yaml:"id,omitempty"` // Optional UUID; generated when absent

	// Source configures the snapshotter for Path. Fields besides "type"
	// depend on the type:
	//
	// Ex. For type="http" (see [snapshotters.HTTPSource]):
	//
	//	URL     string            `json:"url"`
	//	Headers map\[string\]string `json:"headers,omitempty"`
	//
	// Defaults to {"type":"local"} when omitted.
	Source json.RawMessage `json:"source,omitempty" yaml:"-"`
}

// SourceDTO contains the static source fields shared by all types
type SourceDTO struct {
	Type string `json:"type"`
}
