package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type watiMessage struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// WatiProvider sends session messages through the Wati API. It serves both the
// WhatsApp and SMS channels.
type WatiProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewWatiProvider builds the provider; a nil client gets a 10 second timeout.
func NewWatiProvider(baseURL, apiKey string, client *http.Client) *WatiProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WatiProvider{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: client}
}

func (p *WatiProvider) Send(ctx context.Context, to, body string) error {
	if to == "" {
		return errors.New("wati: recipient phone is empty")
	}
	payload, err := json.Marshal(watiMessage{Phone: to, Message: body})
	if err != nil {
		return errors.Wrap(err, "wati: encode")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/v1/sendSessionMessage", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "wati: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "wati: send")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wati: received status code %d", resp.StatusCode)
	}
	return nil
}
