// Package params defines typed parameter schemas for provider clients and
// the pipeline that converts, cleans, merges, and validates caller-supplied
// values against them.
//
// The pipeline order is fixed: ConvertTypes -> Clean -> MergeWithDefaults ->
// Validate. Converting string-typed numerics must precede validation, and
// defaults are merged after unknown-key removal so a junk key can never mask
// a missing default.
package params
