package enums

import (
	"fmt"
	"slices"
)

func parseOne[T ~string](kind, value string, valid []T) (T, error) {
	if v := T(value); slices.Contains(valid, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
