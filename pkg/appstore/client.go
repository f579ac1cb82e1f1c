package appstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/routong/routong-backend/pkg/config"
	pkgerrors "github.com/routong/routong-backend/pkg/errors"
	"github.com/routong/routong-backend/pkg/logger"
)

const defaultVerifyURL = "https://buy.itunes.apple.com/verifyReceipt"

// Receipt statuses returned by the verification endpoint. Zero means the
// receipt is genuine; everything else is a rejection.
const (
	statusValid          = 0
	statusSandboxReceipt = 21007
)

var errSecretRequired = errors.New("app store shared secret is required")

// Receipt is the verified in-app purchase extracted from a store receipt.
type Receipt struct {
	TransactionID string
	ProductID     string
	Quantity      int
	PurchasedAt   time.Time
}

// Verifier validates an opaque receipt blob with the store backend.
type Verifier interface {
	Verify(ctx context.Context, receiptData string) (*Receipt, error)
}

// Client talks to the App Store verifyReceipt endpoint.
type Client struct {
	httpClient   *http.Client
	verifyURL    string
	sharedSecret string
	logg         *logger.Logger
}

// NewClient builds a receipt verifier from configuration.
func NewClient(cfg config.AppStoreConfig, logg *logger.Logger) (*Client, error) {
	secret := strings.TrimSpace(cfg.SharedSecret)
	if secret == "" {
		return nil, errSecretRequired
	}
	verifyURL := strings.TrimSpace(cfg.VerifyURL)
	if verifyURL == "" {
		verifyURL = defaultVerifyURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		verifyURL:    verifyURL,
		sharedSecret: secret,
		logg:         logg,
	}, nil
}

type verifyRequest struct {
	ReceiptData string `json:"receipt-data"`
	Password    string `json:"password"`
}

type inAppPurchase struct {
	TransactionID  string `json:"transaction_id"`
	ProductID      string `json:"product_id"`
	Quantity       string `json:"quantity"`
	PurchaseDateMS string `json:"purchase_date_ms"`
}

type verifyResponse struct {
	Status  int `json:"status"`
	Receipt struct {
		InApp []inAppPurchase `json:"in_app"`
	} `json:"receipt"`
}

// Verify posts the receipt blob to the store and returns the most recent
// in-app purchase it attests to.
func (c *Client) Verify(ctx context.Context, receiptData string) (*Receipt, error) {
	if strings.TrimSpace(receiptData) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt data required")
	}

	body, err := json.Marshal(verifyRequest{ReceiptData: receiptData, Password: c.sharedSecret})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode receipt request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build receipt request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call receipt verification")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("receipt verification returned %d", resp.StatusCode))
	}

	var parsed verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode receipt response")
	}

	switch parsed.Status {
	case statusValid:
	case statusSandboxReceipt:
		return nil, pkgerrors.New(pkgerrors.CodeUnverifiedReceipt, "sandbox receipt sent to production endpoint")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeUnverifiedReceipt, "receipt rejected by store").WithDetails(map[string]any{
			"status": parsed.Status,
		})
	}

	latest := latestPurchase(parsed.Receipt.InApp)
	if latest == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnverifiedReceipt, "receipt carries no in-app purchase")
	}
	return latest, nil
}

func latestPurchase(purchases []inAppPurchase) *Receipt {
	var (
		latest   *Receipt
		latestMS int64 = -1
	)
	for _, p := range purchases {
		if p.TransactionID == "" || p.ProductID == "" {
			continue
		}
		ms, _ := strconv.ParseInt(p.PurchaseDateMS, 10, 64)
		if ms <= latestMS {
			continue
		}
		quantity, err := strconv.Atoi(p.Quantity)
		if err != nil || quantity <= 0 {
			quantity = 1
		}
		latest = &Receipt{
			TransactionID: p.TransactionID,
			ProductID:     p.ProductID,
			Quantity:      quantity,
			PurchasedAt:   time.UnixMilli(ms).UTC(),
		}
		latestMS = ms
	}
	return latest
}
