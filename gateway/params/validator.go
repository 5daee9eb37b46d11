package params

import (
	"fmt"
	"strconv"
	"strings"
)

// Validation error codes.
const (
	CodeRequired      = "REQUIRED"
	CodeInvalidType   = "INVALID_TYPE"
	CodeOutOfRange    = "OUT_OF_RANGE"
	CodeTooShort      = "TOO_SHORT"
	CodeTooLong       = "TOO_LONG"
	CodeInvalidOption = "INVALID_OPTION"
	CodeDependency    = "DEPENDENCY_VIOLATION"
	CodeExclusion     = "MUTUALLY_EXCLUSIVE"
	CodeCustomRule    = "CUSTOM_RULE"
)

// FieldError describes one parameter-level validation problem.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// Result holds the outcome of the basic type/range checks. It is created
// fresh per validation call and never persisted.
type Result struct {
	Valid    bool         `json:"valid"`
	Errors   []FieldError `json:"errors"`
	Warnings []string     `json:"warnings"`
}

// CompleteResult extends Result with the advanced-rule pass.
type CompleteResult struct {
	Result
	DependencyErrors []FieldError `json:"dependency_errors,omitempty"`
	ExclusionErrors  []FieldError `json:"exclusion_errors,omitempty"`
	CustomRuleErrors []FieldError `json:"custom_rule_errors,omitempty"`
	Suggestions      []string     `json:"suggestions,omitempty"`
}

// AllErrors flattens basic and advanced errors into one list.
func (r *CompleteResult) AllErrors() []FieldError {
	out := make([]FieldError, 0, len(r.Errors)+len(r.DependencyErrors)+len(r.ExclusionErrors)+len(r.CustomRuleErrors))
	out = append(out, r.Errors...)
	out = append(out, r.DependencyErrors...)
	out = append(out, r.ExclusionErrors...)
	out = append(out, r.CustomRuleErrors...)
	return out
}

// ValidationError is the error kind surfaced to callers when a request's
// parameters fail validation. It is never retried.
type ValidationError struct {
	Result *CompleteResult
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	errs := e.Result.AllErrors()
	if len(errs) == 0 {
		return "parameter validation failed"
	}
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "parameter validation failed: " + strings.Join(parts, "; ")
}

// ConvertTypes coerces string-encoded values to the type their definition
// declares ("0.7" -> 0.7, "true" -> true). Unconvertible values pass through
// unchanged so Validate reports them as INVALID_TYPE. The input map is not
// mutated.
func ConvertTypes(values map[string]any, defs []Definition) map[string]any {
	byKey := index(defs)
	out := make(map[string]any, len(values))
	for k, v := range values {
		def, known := byKey[k]
		if !known {
			out[k] = v
			continue
		}
		out[k] = convertValue(v, def.Type)
	}
	return out
}

func convertValue(v any, t Type) any {
	s, isString := v.(string)
	if !isString {
		return v
	}
	switch t {
	case TypeNumber:
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	case TypeBoolean:
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b
		}
	}
	return v
}

// Clean removes keys not present in defs. The output key set is exactly the
// intersection of the input keys and the known keys.
func Clean(values map[string]any, defs []Definition) map[string]any {
	byKey := index(defs)
	out := make(map[string]any, len(values))
	for k, v := range values {
		if _, ok := byKey[k]; ok {
			out[k] = v
		}
	}
	return out
}

// MergeWithDefaults fills missing keys from each definition's default.
// Merging is idempotent: merge(merge(x)) == merge(x).
func MergeWithDefaults(values map[string]any, defs []Definition) map[string]any {
	out := make(map[string]any, len(values)+len(defs))
	for k, v := range values {
		out[k] = v
	}
	for _, d := range defs {
		if _, present := out[d.Key]; !present && d.Default != nil {
			out[d.Key] = d.Default
		}
	}
	return out
}

// Validate runs the basic per-definition checks and, when opts carries
// advanced rules, the dependency/exclusion/custom pass on top. Warnings
// never affect Valid.
func Validate(values map[string]any, defs []Definition, opts *Options) *CompleteResult {
	res := &CompleteResult{Result: Result{Valid: true}}
	byKey := index(defs)

	for _, d := range defs {
		v, present := values[d.Key]
		if !present {
			if d.Default == nil {
				res.addError(FieldError{Field: d.Key, Code: CodeRequired,
					Message: fmt.Sprintf("parameter %q is required and has no default", d.Key)})
			}
			continue
		}
		res.checkValue(d, v)
	}

	// Unknown parameters are tolerated but reported, for forward
	// compatibility with provider schema changes.
	for k := range values {
		if _, known := byKey[k]; !known {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unknown parameter %q", k))
		}
	}

	if opts != nil {
		opts.apply(values, res)
	}

	res.Valid = len(res.Errors) == 0 &&
		len(res.DependencyErrors) == 0 &&
		len(res.ExclusionErrors) == 0 &&
		len(res.CustomRuleErrors) == 0
	return res
}

// Process runs the full pipeline in its fixed order and returns the
// processed values together with the validation result.
func Process(values map[string]any, defs []Definition, opts *Options) (map[string]any, *CompleteResult) {
	converted := ConvertTypes(values, defs)
	cleaned := Clean(converted, defs)
	merged := MergeWithDefaults(cleaned, defs)
	res := Validate(merged, defs, opts)
	// Unknown-key warnings are computed against the pre-clean view so the
	// caller still hears about keys the pipeline dropped.
	byKey := index(defs)
	for k := range values {
		if _, ok := byKey[k]; !ok {
			w := fmt.Sprintf("unknown parameter %q", k)
			if !containsString(res.Warnings, w) {
				res.Warnings = append(res.Warnings, w)
			}
		}
	}
	return merged, res
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r *CompleteResult) addError(fe FieldError) {
	r.Errors = append(r.Errors, fe)
	r.Valid = false
}

func (r *CompleteResult) checkValue(d Definition, v any) {
	switch d.Type {
	case TypeNumber:
		f, ok := toFloat(v)
		if !ok {
			r.addError(FieldError{Field: d.Key, Code: CodeInvalidType, Value: v,
				Message: fmt.Sprintf("parameter %q must be a number", d.Key)})
			return
		}
		if d.Min != nil && f < *d.Min || d.Max != nil && f > *d.Max {
			r.addError(FieldError{Field: d.Key, Code: CodeOutOfRange, Value: v,
				Message: fmt.Sprintf("parameter %q must be between %s and %s", d.Key, boundString(d.Min), boundString(d.Max))})
		}
	case TypeString:
		s, ok := v.(string)
		if !ok {
			r.addError(FieldError{Field: d.Key, Code: CodeInvalidType, Value: v,
				Message: fmt.Sprintf("parameter %q must be a string", d.Key)})
			return
		}
		if d.Min != nil && float64(len(s)) < *d.Min {
			r.addError(FieldError{Field: d.Key, Code: CodeTooShort, Value: v,
				Message: fmt.Sprintf("parameter %q must be at least %d characters", d.Key, int(*d.Min))})
		}
		if d.Max != nil && float64(len(s)) > *d.Max {
			r.addError(FieldError{Field: d.Key, Code: CodeTooLong, Value: v,
				Message: fmt.Sprintf("parameter %q must be at most %d characters", d.Key, int(*d.Max))})
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			r.addError(FieldError{Field: d.Key, Code: CodeInvalidType, Value: v,
				Message: fmt.Sprintf("parameter %q must be a boolean", d.Key)})
		}
	case TypeSelect:
		s, ok := v.(string)
		if !ok {
			r.addError(FieldError{Field: d.Key, Code: CodeInvalidType, Value: v,
				Message: fmt.Sprintf("parameter %q must be a string option", d.Key)})
			return
		}
		for _, opt := range d.Options {
			if s == opt {
				return
			}
		}
		r.addError(FieldError{Field: d.Key, Code: CodeInvalidOption, Value: v,
			Message: fmt.Sprintf("parameter %q must be one of %s", d.Key, strings.Join(d.Options, ", "))})
	}
}

func boundString(b *float64) string {
	if b == nil {
		return "-"
	}
	return strconv.FormatFloat(*b, 'f', -1, 64)
}

// toFloat accepts the numeric representations that survive JSON decoding
// and Go literals.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
