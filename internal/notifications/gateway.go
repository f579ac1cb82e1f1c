package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/routong/routong-backend/pkg/config"
	pkgerrors "github.com/routong/routong-backend/pkg/errors"
)

// ShameMessage is a single outbound accountability SMS.
type ShameMessage struct {
	Phone     string `json:"phone"`
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
}

// Gateway delivers shame messages to the configured SMS provider.
type Gateway interface {
	SendShame(ctx context.Context, msg ShameMessage) error
}

type smsGateway struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	sender     string
}

// NewSMSGateway builds a gateway against the provider in SMSConfig.
func NewSMSGateway(cfg config.SMSConfig) (Gateway, error) {
	if cfg.Endpoint == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sms endpoint required")
	}
	if cfg.APIKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sms api key required")
	}
	return &smsGateway{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		sender:     cfg.Sender,
	}, nil
}

type smsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

func (g *smsGateway) SendShame(ctx context.Context, msg ShameMessage) error {
	if msg.Phone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient phone required")
	}

	body, err := json.Marshal(smsRequest{
		From: g.sender,
		To:   msg.Phone,
		Body: msg.Body,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode sms request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build sms request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send sms")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("sms provider returned %d: %s", resp.StatusCode, string(snippet)))
	}
	return nil
}
