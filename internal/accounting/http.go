package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// HTTPGateway talks to a JSON REST accounting API:
//
//	POST {base}/v1/{realm}/customers
//	POST {base}/v1/{realm}/invoices
//	POST {base}/v1/{realm}/payments
//	GET  {base}/v1/{realm}/invoices/{id}
//
// Create calls answer {"id": "..."}.
type HTTPGateway struct {
	base   string
	token  string
	client *http.Client
}

// NewHTTPGateway validates cfg and builds the client.
func NewHTTPGateway(cfg ProviderConfig) (*HTTPGateway, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("accounting base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "accounting base url")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/") + "/v1"
	if cfg.RealmID != "" {
		base += "/" + url.PathEscape(cfg.RealmID)
	}
	return &HTTPGateway{
		base:   base,
		token:  cfg.Token,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (g *HTTPGateway) Enabled() bool { return true }

type createdResponse struct {
	ID string `json:"id"`
}

func (g *HTTPGateway) CreateCustomer(ctx context.Context, c Customer) (string, error) {
	return g.create(ctx, "/customers", c)
}

func (g *HTTPGateway) CreateInvoice(ctx context.Context, inv Invoice) (string, error) {
	return g.create(ctx, "/invoices", inv)
}

func (g *HTTPGateway) RecordPayment(ctx context.Context, p PaymentRecord) (string, error) {
	return g.create(ctx, "/payments", p)
}

func (g *HTTPGateway) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	var inv Invoice
	if err := g.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(id), nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (g *HTTPGateway) create(ctx context.Context, path string, payload any) (string, error) {
	var out createdResponse
	if err := g.do(ctx, http.MethodPost, path, payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("accounting %s: response carried no id", path)
	}
	return out.ID, nil
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "accounting %s %s", method, path)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("accounting %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}
