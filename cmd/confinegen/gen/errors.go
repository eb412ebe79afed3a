package gen

import (
	"fmt"
	"go/token"
)

// GenerationError reports a problem in an annotated source file.
//
// Example output:
//
//	entity.go:12:6: confine:entity on non-struct type Name
//
//	Suggestion: Annotate a struct type that embeds *model.Object
//
// Thread Safety: Immutable after creation, safe for concurrent use.
type GenerationError struct {
	File       string // Source file path
	Line       int    // Line number (1-indexed)
	Column     int    // Column number (1-indexed)
	Message    string // Error message
	Suggestion string // Optional suggestion for fixing (empty if none)
}

// Error implements the error interface.
//
// Format: file:line:column: message, followed by the suggestion on its own
// paragraph when present.
func (e *GenerationError) Error() string {
	result := fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	if e.Suggestion != "" {
		result += fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion)
	}
	return result
}

// newGenerationError creates an error positioned at pos.
func newGenerationError(fset *token.FileSet, pos token.Pos, msg string) *GenerationError {
	position := fset.Position(pos)
	return &GenerationError{
		File:    position.Filename,
		Line:    position.Line,
		Column:  position.Column,
		Message: msg,
	}
}

// newGenerationErrorf is newGenerationError with a suggestion and a format.
func newGenerationErrorf(fset *token.FileSet, pos token.Pos, suggestion, format string, args ...any) *GenerationError {
	err := newGenerationError(fset, pos, fmt.Sprintf(format, args...))
	err.Suggestion = suggestion
	return err
}
