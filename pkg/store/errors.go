package store

import "fmt"

// ArtifactNotFoundError represents an error when a requested artifact does not exist.
type ArtifactNotFoundError struct {
	SessionID string
	Kind      string
	Name      string
}

// Error implements error.
func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("artifact %s/%s not found for session %s", e.Kind, e.Name, e.SessionID)
}
