// Package notify sends operator alerts about skipped consumption and low
// stock.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/erazemk/krma/internal/config"
)

// Notifier delivers a plain text alert.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// New returns a WhatsApp notifier when credentials are configured, or Nop.
func New(cfg config.WhatsAppConfig) Notifier {
	if !cfg.Enabled() {
		return Nop{}
	}
	return NewWhatsApp(cfg)
}

// Nop discards every alert.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }

// WhatsApp sends text messages through the Meta WhatsApp Cloud API.
type WhatsApp struct {
	http          *resty.Client
	phoneNumberID string
	to            string
}

func NewWhatsApp(cfg config.WhatsAppConfig) *WhatsApp {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	client := resty.New().
		SetBaseURL(fmt.Sprintf("%s/%s", base, cfg.APIVersion)).
		SetHeader("Authorization", "Bearer "+cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &WhatsApp{
		http:          client,
		phoneNumberID: cfg.PhoneNumberID,
		to:            cfg.To,
	}
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (w *WhatsApp) Notify(ctx context.Context, message string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                w.to,
		"type":              "text",
		"text": map[string]any{
			"body":        message,
			"preview_url": false,
		},
	}

	apiErr := new(apiError)
	resp, err := w.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetError(apiErr).
		Post(w.phoneNumberID + "/messages")
	if err != nil {
		return fmt.Errorf("sending whatsapp message: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		code := resp.StatusCode()
		if apiErr.Error.Code != 0 {
			code = apiErr.Error.Code
		}
		return fmt.Errorf("whatsapp api error: code=%d, message=%s", code, apiErr.Error.Message)
	}
	return nil
}
