package cli

import (
	"fmt"
	"strings"

	"github.com/TimurManjosov/goflagship-sdk/flagship"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

// ParseAssignments converts key=value pairs into a struct. Values that parse
// as JSON keep their type (30, true, {"a":1}); anything else is a string.
func ParseAssignments(pairs []string) (flagship.Struct, error) {
	out := flagship.Struct{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment '%s', expected key=value", pair)
		}
		v, err := value.ParseJSON([]byte(raw))
		if err != nil {
			v = value.String(raw)
		}
		out[key] = v
	}
	return out, nil
}
