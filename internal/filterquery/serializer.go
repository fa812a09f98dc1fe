package filterquery

import (
	"fmt"
	"sort"
	"strings"
)

const (
	pairSeparator  = "|"
	fieldSeparator = "="
	listSeparator  = ","
)

// Serializer converts an issue-filter query mapping to and from the flat
// string form persisted in the filter's data column.
type Serializer interface {
	// Serialize renders the mapping as "key=value|key=value". List values
	// are comma-joined. Empty values are skipped.
	Serialize(query map[string]interface{}) (string, error)

	// Deserialize recovers the mapping from its flat string form. Values
	// containing the list separator come back as []string.
	Deserialize(data string) (map[string]interface{}, error)
}

// NewSerializer returns the flat key-value serializer.
func NewSerializer() Serializer {
	return &keyValueSerializer{}
}

type keyValueSerializer struct{}

func (s *keyValueSerializer) Serialize(query map[string]interface{}) (string, error) {
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	// Deterministic output for a given mapping
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		value, err := renderValue(query[key])
		if err != nil {
			return "", fmt.Errorf("serialize %q: %w", key, err)
		}
		if value == "" {
			continue
		}
		if strings.ContainsAny(key, pairSeparator+fieldSeparator) {
			return "", fmt.Errorf("serialize %q: key contains a reserved character", key)
		}
		pairs = append(pairs, key+fieldSeparator+value)
	}

	return strings.Join(pairs, pairSeparator), nil
}

func (s *keyValueSerializer) Deserialize(data string) (map[string]interface{}, error) {
	query := make(map[string]interface{})
	if data == "" {
		return query, nil
	}

	for _, pair := range strings.Split(data, pairSeparator) {
		key, value, found := strings.Cut(pair, fieldSeparator)
		if !found || key == "" {
			return nil, fmt.Errorf("deserialize: malformed pair %q", pair)
		}
		if strings.Contains(value, listSeparator) {
			query[key] = strings.Split(value, listSeparator)
		} else {
			query[key] = value
		}
	}

	return query, nil
}

func renderValue(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []string:
		return strings.Join(v, listSeparator), nil
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			part, err := renderValue(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		return strings.Join(parts, listSeparator), nil
	case bool, int, int64, float64:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", value)
	}
}
