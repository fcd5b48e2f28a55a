// Package enums holds the string enums shared by models, migrations and the API.
package enums

import "fmt"

// parse matches raw exactly against valid.
func parse[T ~string](raw string, valid []T, kind string) (T, error) {
	for _, v := range valid {
		if string(v) == raw {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
