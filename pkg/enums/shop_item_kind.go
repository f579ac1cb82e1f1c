package enums

import "fmt"

// ShopItemKind classifies what a shop purchase grants.
type ShopItemKind string

const (
	ShopItemKindReviveCard  ShopItemKind = "revive_card"
	ShopItemKindPremium     ShopItemKind = "premium"
	ShopItemKindAvatarFrame ShopItemKind = "avatar_frame"
)

var validShopItemKinds = []ShopItemKind{
	ShopItemKindReviveCard,
	ShopItemKindPremium,
	ShopItemKindAvatarFrame,
}

// IsValid reports whether the value matches the canonical shop item kind.
func (k ShopItemKind) IsValid() bool {
	for _, candidate := range validShopItemKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseShopItemKind converts raw input into ShopItemKind.
func ParseShopItemKind(value string) (ShopItemKind, error) {
	for _, candidate := range validShopItemKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shop item kind %q", value)
}
