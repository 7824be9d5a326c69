package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Exit codes for different failure modes
const (
	ExitSuccess         = 0 // Operation completed
	ExitArtifactInvalid = 1 // An artifact failed validation
	ExitError           = 2 // Configuration or runtime error
)

// ArtifactInvalidError indicates the command ran to completion but an
// artifact it checked failed validation.
type ArtifactInvalidError struct {
	Message string
}

func (e *ArtifactInvalidError) Error() string {
	return e.Message
}

func main() {
	// Optional env files for object storage credentials.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var invalidErr *ArtifactInvalidError
		if errors.As(err, &invalidErr) {
			os.Exit(ExitArtifactInvalid)
		}

		os.Exit(ExitError)
	}
}
