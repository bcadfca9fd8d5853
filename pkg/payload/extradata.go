package payload

import (
	"encoding/json"
	"fmt"
)

type keySet map[string]struct{}

func newKeySet(keys ...string) keySet {
	s := make(keySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// splitExtraData returns the members of the JSON object data whose keys are
// not in known, re-encoded as a JSON object. It returns nil when there are none.
func splitExtraData(data []byte, known keySet) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k := range known {
		delete(fields, k)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return json.Marshal(fields)
}

// flatten marshals v and merges the members of the extra data object into
// it. Keys produced by v win over extra data keys.
func flatten(v any, extra json.RawMessage) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}
	var extraFields map[string]json.RawMessage
	if err := json.Unmarshal(extra, &extraFields); err != nil {
		return nil, fmt.Errorf("extra data is not a JSON object: %w", err)
	}
	if len(extraFields) == 0 {
		return base, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, raw := range extraFields {
		if _, taken := fields[k]; !taken {
			fields[k] = raw
		}
	}
	return json.Marshal(fields)
}
