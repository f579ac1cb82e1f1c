package enums

import "fmt"

// VerificationMethod maps to the verification_method_enum enum in Postgres.
type VerificationMethod string

const (
	VerificationMethodPhoto    VerificationMethod = "photo"
	VerificationMethodLocation VerificationMethod = "location"
	VerificationMethodExercise VerificationMethod = "exercise"
)

var validVerificationMethods = []VerificationMethod{
	VerificationMethodPhoto,
	VerificationMethodLocation,
	VerificationMethodExercise,
}

// IsValid reports whether the value matches the canonical verification method enum.
func (m VerificationMethod) IsValid() bool {
	for _, candidate := range validVerificationMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseVerificationMethod converts raw input into VerificationMethod.
func ParseVerificationMethod(value string) (VerificationMethod, error) {
	for _, candidate := range validVerificationMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid verification method %q", value)
}
