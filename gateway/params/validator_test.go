package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatDefs() []Definition {
	return []Definition{
		NumberDef("temperature", 1.0, 0, 2, "sampling temperature"),
		NumberDef("max_tokens", 1024, 1, 8192, "completion token cap"),
		NumberDef("top_p", 1.0, 0, 1, "nucleus sampling"),
		BoolDef("stream", false, "incremental output"),
		SelectDef("response_format", "text", []string{"text", "json"}, "output format"),
	}
}

func TestValidate_RangeChecks(t *testing.T) {
	defs := chatDefs()

	res := Validate(map[string]any{"temperature": 3.0}, defs, nil)
	assert.False(t, res.Valid)
	found := false
	for _, fe := range res.Errors {
		if fe.Field == "temperature" && fe.Code == CodeOutOfRange {
			found = true
		}
	}
	assert.True(t, found, "expected OUT_OF_RANGE on temperature, got %+v", res.Errors)

	res = Validate(map[string]any{
		"temperature": 0.7, "max_tokens": 256.0, "top_p": 0.9,
		"stream": true, "response_format": "text",
	}, defs, nil)
	assert.True(t, res.Valid, "errors: %+v", res.Errors)
}

func TestValidate_TypeAndOptionChecks(t *testing.T) {
	defs := chatDefs()
	tests := []struct {
		name   string
		values map[string]any
		field  string
		code   string
	}{
		{"number gets string", map[string]any{"temperature": "hot"}, "temperature", CodeInvalidType},
		{"boolean gets number", map[string]any{"stream": 1}, "stream", CodeInvalidType},
		{"select outside options", map[string]any{"response_format": "yaml"}, "response_format", CodeInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.values, defs, nil)
			assert.False(t, res.Valid)
			require.NotEmpty(t, res.Errors)
			assert.Equal(t, tt.field, res.Errors[0].Field)
			assert.Equal(t, tt.code, res.Errors[0].Code)
		})
	}
}

func TestValidate_RequiredWithoutDefault(t *testing.T) {
	defs := []Definition{
		{Key: "prompt_prefix", Type: TypeString}, // no default
	}
	res := Validate(map[string]any{}, defs, nil)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, CodeRequired, res.Errors[0].Code)
}

func TestValidate_StringLengthBounds(t *testing.T) {
	defs := []Definition{
		StringDef("stop", "", Float(2), Float(5), "stop sequence"),
	}
	res := Validate(map[string]any{"stop": "x"}, defs, nil)
	assert.False(t, res.Valid)
	assert.Equal(t, CodeTooShort, res.Errors[0].Code)

	res = Validate(map[string]any{"stop": "toolong"}, defs, nil)
	assert.False(t, res.Valid)
	assert.Equal(t, CodeTooLong, res.Errors[0].Code)

	res = Validate(map[string]any{"stop": "ok!"}, defs, nil)
	assert.True(t, res.Valid)
}

func TestValidate_UnknownKeysWarnOnly(t *testing.T) {
	res := Validate(map[string]any{"temperature": 0.5, "bogus": 1}, chatDefs(), nil)
	assert.True(t, res.Valid, "unknown keys must not affect validity")
	assert.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "bogus")
}

func TestConvertTypes(t *testing.T) {
	defs := chatDefs()
	out := ConvertTypes(map[string]any{
		"temperature": "0.7",
		"stream":      "true",
		"bogus":       "1",
	}, defs)

	assert.Equal(t, 0.7, out["temperature"])
	assert.Equal(t, true, out["stream"])
	assert.Equal(t, "1", out["bogus"], "unknown keys pass through untouched")

	// Unconvertible strings pass through so Validate reports INVALID_TYPE.
	out = ConvertTypes(map[string]any{"temperature": "hot"}, defs)
	assert.Equal(t, "hot", out["temperature"])
}

func TestClean(t *testing.T) {
	out := Clean(map[string]any{"temperature": 1.0, "junk": true, "top_p": 0.5}, chatDefs())
	assert.Equal(t, map[string]any{"temperature": 1.0, "top_p": 0.5}, out)
}

func TestMergeWithDefaults(t *testing.T) {
	defs := chatDefs()
	out := MergeWithDefaults(map[string]any{"temperature": 0.2}, defs)
	assert.Equal(t, 0.2, out["temperature"], "caller value wins over default")
	assert.Equal(t, 1024.0, out["max_tokens"])
	assert.Equal(t, false, out["stream"])
	assert.Equal(t, "text", out["response_format"])
}

func TestProcess_FixedOrder(t *testing.T) {
	defs := chatDefs()

	// A junk key plus a string-typed numeric: convert must run before
	// validate, and defaults must be merged after the junk key is removed.
	values, res := Process(map[string]any{"temperature": "0.7", "junk": "x"}, defs, nil)
	assert.True(t, res.Valid, "errors: %+v", res.Errors)
	assert.Equal(t, 0.7, values["temperature"])
	assert.NotContains(t, values, "junk")
	assert.Equal(t, 1024.0, values["max_tokens"], "default merged after clean")
	assert.Contains(t, res.Warnings[0], "junk", "dropped keys still warned about")
}

func TestValidate_AdvancedRules(t *testing.T) {
	defs := []Definition{
		NumberDef("top_p", 1.0, 0, 1, ""),
		NumberDef("temperature", 1.0, 0, 2, ""),
		{Key: "seed", Type: TypeNumber},
		{Key: "preset", Type: TypeString},
	}
	opts := &Options{
		Dependencies: []DependencyRule{{Field: "seed", Requires: "temperature"}},
		Exclusions:   []ExclusionRule{{A: "preset", B: "temperature"}},
		CustomRules: []CustomRule{{
			Name: "top_p_with_temperature",
			Check: func(values map[string]any) string {
				_, a := values["top_p"]
				_, b := values["temperature"]
				if a && b {
					return "tuning top_p and temperature together is rarely useful"
				}
				return ""
			},
		}},
	}

	res := Validate(map[string]any{"seed": 42.0}, defs, opts)
	assert.False(t, res.Valid)
	require.Len(t, res.DependencyErrors, 1)
	assert.Equal(t, CodeDependency, res.DependencyErrors[0].Code)

	res = Validate(map[string]any{"preset": "creative", "temperature": 0.9}, defs, opts)
	assert.False(t, res.Valid)
	require.Len(t, res.ExclusionErrors, 1)
	assert.Equal(t, CodeExclusion, res.ExclusionErrors[0].Code)

	res = Validate(map[string]any{"top_p": 0.5, "temperature": 0.9}, defs, opts)
	assert.False(t, res.Valid)
	require.Len(t, res.CustomRuleErrors, 1)
}

func TestSuggestions_NeverBlock(t *testing.T) {
	defs := []Definition{NumberDef("temperature", 1.0, 0, 2, "")}
	opts := &Options{Suggesters: []Suggester{TemperatureSuggester}}

	res := Validate(map[string]any{"temperature": 0.1}, defs, opts)
	assert.True(t, res.Valid, "suggestions must never block execution")
	require.Len(t, res.Suggestions, 1)
	assert.Contains(t, res.Suggestions[0], "repetitive")

	res = Validate(map[string]any{"temperature": 1.8}, defs, opts)
	assert.True(t, res.Valid)
	assert.Contains(t, res.Suggestions[0], "incoherent")
}

func TestValidationError_Message(t *testing.T) {
	res := Validate(map[string]any{"temperature": 9.0}, chatDefs(), nil)
	err := &ValidationError{Result: res}
	assert.Contains(t, err.Error(), "temperature")
}
