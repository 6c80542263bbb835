// Package logging centralizes slog construction and the structured field
// vocabulary shared by every clipforge component.
package logging
