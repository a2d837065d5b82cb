package migrate

import (
	"encoding/json"
	"fmt"
)

// PeekShardVersion reads the version field of a shard result file.
// Version 1 files are bare {"path": "label"} objects with no version key.
func PeekShardVersion(data []byte) (int, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("parse shard result: %w", err)
	}
	v, ok := raw["version"]
	if !ok {
		return 1, nil
	}
	var version int
	if err := json.Unmarshal(v, &version); err != nil {
		// A v1 mapping may legitimately contain a file named "version".
		return 1, nil
	}
	return version, nil
}

// wrapFlatMapping turns a v1 flat mapping into a v2 envelope.
func wrapFlatMapping(data []byte) ([]byte, error) {
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode flat mapping: %w", err)
	}
	return json.Marshal(struct {
		Version int               `json:"version"`
		Worker  int               `json:"worker"`
		Entries map[string]string `json:"entries"`
	}{Version: 2, Worker: -1, Entries: entries})
}
