package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFromProse(t *testing.T) {
	raw := "Sure! Here is the result:\n```json\n{\"verdict\": \"PASS\"}\n```\nHope that helps."
	assert.Equal(t, `{"verdict": "PASS"}`, Extract(raw))
}

func TestExtractNoObjectReturnsInput(t *testing.T) {
	assert.Equal(t, "no json here", Extract("no json here"))
	assert.Equal(t, "}{", Extract("}{"))
}

func TestUnmarshalObject(t *testing.T) {
	var out struct {
		Verdict string `json:"verdict"`
	}
	err := UnmarshalObject("prefix {\"verdict\": \"WARN\"} suffix", &out)
	require.NoError(t, err)
	assert.Equal(t, "WARN", out.Verdict)
}

func TestUnmarshalObjectFailure(t *testing.T) {
	var out map[string]any
	err := UnmarshalObject("not an object at all", &out)
	assert.Error(t, err)
}

func TestExtractNestedBraces(t *testing.T) {
	raw := `{"outer": {"inner": 1}}`
	assert.Equal(t, raw, Extract(raw))
}
