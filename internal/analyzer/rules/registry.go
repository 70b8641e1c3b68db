// Package rules holds the built-in checks run over offline upgrade SQL.
package rules

import "github.com/aqasim81/session-migrate/internal/analyzer"

// NewDefaultRegistry returns a Registry with all built-in detection rules.
func NewDefaultRegistry() *analyzer.Registry {
	r := analyzer.NewRegistry()
	r.Register(NewCreateIndexRule())
	r.Register(NewAddColumnRule())
	r.Register(NewAlterColumnTypeRule())
	r.Register(NewSetNotNullRule())
	r.Register(NewDropColumnRule())
	r.Register(NewDropTableRule())

	return r
}
