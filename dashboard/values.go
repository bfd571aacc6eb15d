package dashboard

import (
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/launchdash/launches"
)

// Values maps control IDs to their current JSON-encoded values, as posted
// by the page.
type Values map[string]json.RawMessage

// String decodes the value of control id as a string.
func (v Values) String(id string) (string, error) {
	raw, ok := v[id]
	if !ok {
		return "", fmt.Errorf("%w: no value for %s", ErrUnknownComponent, id)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s: %w", id, err)
	}
	return s, nil
}

// Range decodes the value of control id as a [min, max] pair.
func (v Values) Range(id string) (launches.PayloadRange, error) {
	raw, ok := v[id]
	if !ok {
		return launches.PayloadRange{}, fmt.Errorf("%w: no value for %s", ErrUnknownComponent, id)
	}
	var pair []float64
	if err := json.Unmarshal(raw, &pair); err != nil {
		return launches.PayloadRange{}, fmt.Errorf("%s: %w", id, err)
	}
	if len(pair) != 2 {
		return launches.PayloadRange{}, fmt.Errorf("%s: want [min, max], got %d values", id, len(pair))
	}
	return launches.PayloadRange{Min: pair[0], Max: pair[1]}, nil
}

func (v Values) clone() Values {
	out := make(Values, len(v))
	for k, raw := range v {
		out[k] = raw
	}
	return out
}
