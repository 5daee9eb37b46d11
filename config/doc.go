// Package config loads gateway configuration from defaults, a YAML file,
// and FLOWGATE_* environment variables, in that order of precedence.
package config
