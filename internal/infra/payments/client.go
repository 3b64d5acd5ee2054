package payments

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

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Spok95/storedesk/internal/apperr"
	"github.com/Spok95/storedesk/internal/domain/users"
)

// Client — HTTP-провайдер: POST {base}/checkout, GET {base}/status?email=.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type checkoutRequest struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
}

func (c *Client) CreateCheckout(ctx context.Context, u users.User) (string, error) {
	if u.Email == "" {
		return "", ErrNoEmail
	}
	body, err := json.Marshal(checkoutRequest{UserID: u.ID, Email: u.Email, Name: u.Name})
	if err != nil {
		return "", err
	}
	raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/checkout", body)
	if err != nil {
		return "", err
	}
	link := gjson.GetBytes(raw, "url").String()
	if link == "" {
		return "", ErrNoCheckout
	}
	return link, nil
}

func (c *Client) CheckPaymentStatus(ctx context.Context, email string) (Status, error) {
	if email == "" {
		return StatusPending, ErrNoEmail
	}
	raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/status?email="+url.QueryEscape(email), nil)
	if err != nil {
		return StatusPending, err
	}
	return ParseStatus(gjson.GetBytes(raw, "status").String()), nil
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Network("payments "+method, "", 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Network("payments "+method, "", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Network("payments "+method, "", resp.StatusCode, fmt.Errorf("%s", snippet(raw)))
	}
	return raw, nil
}

func snippet(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
