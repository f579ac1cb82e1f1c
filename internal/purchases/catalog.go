package purchases

import "github.com/shopspring/decimal"

// ProcessorFeeRate is the store's cut on every top-up purchase. The wallet is
// credited net of this fee.
var ProcessorFeeRate = decimal.NewFromFloat(0.30)

// TopUpProduct is one purchasable wallet top-up tier.
type TopUpProduct struct {
	ProductID   string
	GrossAmount decimal.Decimal
}

var topUpCatalog = map[string]TopUpProduct{
	"com.routong.topup.6":  {ProductID: "com.routong.topup.6", GrossAmount: decimal.NewFromInt(6)},
	"com.routong.topup.18": {ProductID: "com.routong.topup.18", GrossAmount: decimal.NewFromInt(18)},
	"com.routong.topup.30": {ProductID: "com.routong.topup.30", GrossAmount: decimal.NewFromInt(30)},
	"com.routong.topup.68": {ProductID: "com.routong.topup.68", GrossAmount: decimal.NewFromInt(68)},
}

// LookupTopUpProduct resolves a store product identifier to its tier.
func LookupTopUpProduct(productID string) (TopUpProduct, bool) {
	product, ok := topUpCatalog[productID]
	return product, ok
}
