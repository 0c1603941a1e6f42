package context

import "github.com/orchestr8/engine/internal/orcherr"

func errValidation(msg string) error {
	return orcherr.ValidationFailure("context", "SourceParams.Validate", msg, nil)
}
