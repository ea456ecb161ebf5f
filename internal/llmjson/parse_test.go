package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Summary string   `json:"summary"`
	Items   []string `json:"items"`
}

func TestParseStrategies(t *testing.T) {
	t.Parallel()

	inputs := map[string]string{
		"direct":         `{"summary":"ok","items":["a"]}`,
		"fenced":         "Here you go:\n```json\n{\"summary\":\"ok\",\"items\":[\"a\"]}\n```",
		"trailing comma": `{"summary":"ok","items":["a",],}`,
		"prose":          `Sure! {"summary":"ok","items":["a"]} Let me know.`,
	}
	for name, in := range inputs {
		got, err := Parse[payload](in)
		require.NoError(t, err, name)
		assert.Equal(t, payload{Summary: "ok", Items: []string{"a"}}, got, name)
	}
}

func TestParseFailures(t *testing.T) {
	t.Parallel()

	_, err := Parse[payload]("   ")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse[payload]("no json here")
	assert.Error(t, err)
}
