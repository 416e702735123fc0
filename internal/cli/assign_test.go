package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/goflagship-sdk/flagship"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

func TestParseAssignments(t *testing.T) {
	got, err := ParseAssignments([]string{"country=SE", "age=30", "beta=true", "ratio=0.5", `meta={"a":1}`, "empty="})
	require.NoError(t, err)

	want := flagship.Struct{
		"country": flagship.String("SE"),
		"age":     flagship.Integer(30),
		"beta":    flagship.Bool(true),
		"ratio":   flagship.Double(0.5),
		"meta":    flagship.Struct{"a": flagship.Integer(1)},
		"empty":   flagship.String(""),
	}
	assert.True(t, value.Equal(want, got), "got %s", value.Format(got))
}

func TestParseAssignments_Invalid(t *testing.T) {
	for _, pair := range []string{"novalue", "=x"} {
		_, err := ParseAssignments([]string{pair})
		assert.Error(t, err, pair)
	}
}
