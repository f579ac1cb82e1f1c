package enums

import "fmt"

// ShameRelationship maps to the shame_relationship_enum enum in Postgres.
// It classifies the third party notified when a contract is forfeited.
type ShameRelationship string

const (
	ShameRelationshipEx     ShameRelationship = "ex"
	ShameRelationshipRival  ShameRelationship = "rival"
	ShameRelationshipCrush  ShameRelationship = "crush"
	ShameRelationshipBoss   ShameRelationship = "boss"
	ShameRelationshipParent ShameRelationship = "parent"
	ShameRelationshipFriend ShameRelationship = "friend"
)

var validShameRelationships = []ShameRelationship{
	ShameRelationshipEx,
	ShameRelationshipRival,
	ShameRelationshipCrush,
	ShameRelationshipBoss,
	ShameRelationshipParent,
	ShameRelationshipFriend,
}

// IsValid reports whether the value matches the canonical shame relationship enum.
func (r ShameRelationship) IsValid() bool {
	for _, candidate := range validShameRelationships {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseShameRelationship converts raw input into ShameRelationship.
func ParseShameRelationship(value string) (ShameRelationship, error) {
	for _, candidate := range validShameRelationships {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shame relationship %q", value)
}
