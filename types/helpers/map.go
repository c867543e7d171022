package helpers

import (
	"fmt"

	gjm "github.com/firewut/go-json-map"
)

// GetValue reads a dotted property path ("properties.datetime") out of a
// decoded JSON object and casts it to T.
func GetValue[T any](m map[string]interface{}, key string) (T, error) {
	// Does not work with array of arrays, e.g. [][]byte"
	value, err := gjm.GetProperty(m, key)
	if err != nil {
		return *new(T), err
	}

	if v, ok := value.(T); ok {
		return v, nil
	}

	return *new(T), fmt.Errorf("value for key '%s' cannot be cast to %T", key, *new(T))
}

// GetStringList returns the string items of a JSON array at key, skipping
// anything that is not a string.
func GetStringList(m map[string]interface{}, key string) []string {
	items, err := GetValue[[]interface{}](m, key)
	if err != nil {
		return []string{}
	}

	values := make([]string, 0, len(items))
	for _, item := range items {
		if value, ok := item.(string); ok {
			values = append(values, value)
		}
	}
	return values
}
