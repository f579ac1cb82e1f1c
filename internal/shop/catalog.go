package shop

import (
	"github.com/shopspring/decimal"

	"github.com/routong/routong-backend/pkg/enums"
)

// Item is one purchasable catalog entry. Balance-priced and points-priced
// items are disjoint: exactly one of Price or PointsPrice is set.
type Item struct {
	ID          string
	Kind        enums.ShopItemKind
	Name        string
	Price       decimal.Decimal
	PointsPrice int
	ReviveCards int
	Frame       string
}

var catalog = []Item{
	{ID: "revive_1", Kind: enums.ShopItemKindReviveCard, Name: "Revive card", Price: decimal.NewFromInt(3), ReviveCards: 1},
	{ID: "revive_3", Kind: enums.ShopItemKindReviveCard, Name: "Revive card x3", Price: decimal.NewFromInt(8), ReviveCards: 3},
	{ID: "premium", Kind: enums.ShopItemKindPremium, Name: "Premium", Price: decimal.NewFromInt(30)},
	{ID: "frame_bronze", Kind: enums.ShopItemKindAvatarFrame, Name: "Bronze frame", PointsPrice: 100, Frame: "bronze"},
	{ID: "frame_silver", Kind: enums.ShopItemKindAvatarFrame, Name: "Silver frame", PointsPrice: 200, Frame: "silver"},
	{ID: "frame_gold", Kind: enums.ShopItemKindAvatarFrame, Name: "Gold frame", PointsPrice: 500, Frame: "gold"},
}

// Catalog returns every purchasable item.
func Catalog() []Item {
	items := make([]Item, len(catalog))
	copy(items, catalog)
	return items
}

// LookupItem resolves a catalog entry by id.
func LookupItem(itemID string) (Item, bool) {
	for _, item := range catalog {
		if item.ID == itemID {
			return item, true
		}
	}
	return Item{}, false
}
