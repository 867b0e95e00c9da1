package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Gender is the declared gender of a customer or an analyzed face.
type Gender string

// Gender values match the extraction service's output, upper-cased.
const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// GenderFromString parses a gender string case-insensitively
// (the extraction service reports "Male" / "Female").
func GenderFromString(s string) (Gender, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MALE":
		return GenderMale, nil
	case "FEMALE":
		return GenderFemale, nil
	default:
		return "", fmt.Errorf("unknown gender %q", s)
	}
}

// Customer is a stored customer record considered as a match candidate.
// FaceEmbedding holds the raw JSON-array bytes of the stored embedding;
// the embedding codec decodes it into a vector on demand.
type Customer struct {
	ID            uuid.UUID
	PosID         uuid.UUID
	Gender        Gender
	Age           int
	PhoneNumber   string
	FaceEmbedding []byte
	CreatedAt     time.Time
}

// Kiosk maps a hardware kiosk to its owning POS (the candidate-search tenant).
type Kiosk struct {
	ID    uuid.UUID
	PosID uuid.UUID
}
