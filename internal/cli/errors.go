package cli

import (
	"fmt"
	"io"

	shelferrors "github.com/randalmurphal/shelf/internal/errors"
)

// PrintError prints an error with appropriate formatting.
// If the error is a ShelfError, it uses the user-friendly format.
// Otherwise, it prints a simple error message.
func PrintError(w io.Writer, err error) {
	if shelfErr := shelferrors.AsShelfError(err); shelfErr != nil {
		_, _ = fmt.Fprintln(w, shelfErr.UserMessage())
		if verbose {
			_, _ = fmt.Fprintf(w, "\nCode: %s\n", shelfErr.Code)
			if shelfErr.Cause != nil {
				_, _ = fmt.Fprintf(w, "Cause: %v\n", shelfErr.Cause)
			}
		}
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}
