package params

import "fmt"

// DependencyRule requires that when Field is set, Requires is also set.
type DependencyRule struct {
	Field    string
	Requires string
}

// ExclusionRule forbids both fields from being set at once.
type ExclusionRule struct {
	A string
	B string
}

// CustomRule is an arbitrary predicate over the full value map. Check
// returns a non-empty message when the rule is violated.
type CustomRule struct {
	Name  string
	Check func(values map[string]any) string
}

// Suggester inspects the values and returns advisory text. Suggestions
// never block request execution.
type Suggester func(values map[string]any) []string

// Options carries the optional advanced-validation rules layered on top of
// the basic type/range checks.
type Options struct {
	Dependencies []DependencyRule
	Exclusions   []ExclusionRule
	CustomRules  []CustomRule
	Suggesters   []Suggester
}

func (o *Options) apply(values map[string]any, res *CompleteResult) {
	for _, dep := range o.Dependencies {
		_, hasField := values[dep.Field]
		_, hasReq := values[dep.Requires]
		if hasField && !hasReq {
			res.DependencyErrors = append(res.DependencyErrors, FieldError{
				Field: dep.Field, Code: CodeDependency,
				Message: fmt.Sprintf("parameter %q requires %q to be set", dep.Field, dep.Requires),
			})
		}
	}

	for _, ex := range o.Exclusions {
		_, hasA := values[ex.A]
		_, hasB := values[ex.B]
		if hasA && hasB {
			res.ExclusionErrors = append(res.ExclusionErrors, FieldError{
				Field: ex.A, Code: CodeExclusion,
				Message: fmt.Sprintf("parameters %q and %q cannot both be set", ex.A, ex.B),
			})
		}
	}

	for _, cr := range o.CustomRules {
		if msg := cr.Check(values); msg != "" {
			res.CustomRuleErrors = append(res.CustomRuleErrors, FieldError{
				Field: cr.Name, Code: CodeCustomRule, Message: msg,
			})
		}
	}

	for _, s := range o.Suggesters {
		res.Suggestions = append(res.Suggestions, s(values)...)
	}
}

// TemperatureSuggester flags temperature extremes. Advisory only.
func TemperatureSuggester(values map[string]any) []string {
	v, ok := values["temperature"]
	if !ok {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	switch {
	case f < 0.2:
		return []string{"low temperature may produce repetitive output"}
	case f > 1.5:
		return []string{"high temperature may produce incoherent output"}
	}
	return nil
}
