package codec

import (
	"encoding/json"
	"fmt"
)

// JSON encodes records as JSON. It is the default table codec and the
// format used for cache metadata records.
type JSON struct{}

// Name identifies the codec.
func (JSON) Name() string { return "json" }

// Marshal encodes v as JSON.
func (JSON) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json record: %w", err)
	}
	return data, nil
}

// Unmarshal decodes JSON data into out.
func (JSON) Unmarshal(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal json record: %w", err)
	}
	return nil
}
