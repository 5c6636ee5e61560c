package nats

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/models"
)

const publicationPrefix = "publications."

// PublicationSubject is the subject carrying changes for one publication.
func PublicationSubject(publicationID string) string {
	return publicationPrefix + publicationID + ".images"
}

// PublicationFromSubject extracts the publication id from a change subject.
func PublicationFromSubject(subject string) (string, bool) {
	rest, ok := strings.CutPrefix(subject, publicationPrefix)
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, ".images")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func DecodeChange(data []byte) (models.PublicationChange, error) {
	var change models.PublicationChange
	if err := json.Unmarshal(data, &change); err != nil {
		return change, fmt.Errorf("invalid change payload: %w", err)
	}
	if change.ImageID == "" {
		return change, fmt.Errorf("invalid change payload: missing image id")
	}
	return change, nil
}
