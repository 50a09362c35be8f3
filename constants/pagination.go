package constants

// List pagination bounds.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)
