// Package backend — клиент REST-бэкенда: fetch/create/update/delete над ресурсами магазина.
package backend

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
)

// Ресурсы бэкенда.
const (
	ResourceTransactions     = "transactions"
	ResourceCustomerAccounts = "customer_accounts"
	ResourceProducts         = "products"
	ResourceSuppliers        = "suppliers"
	ResourceServiceOrders    = "service_orders"
	ResourceBankAccounts     = "bank_accounts"
	ResourceCashClosings     = "cash_closings"
)

const maxErrBody = 512

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Fetch: GET /stores/{store}/{resource} -> JSON-массив.
func (c *Client) Fetch(ctx context.Context, storeID, resource string) ([]json.RawMessage, error) {
	body, err := c.do(ctx, "fetch", resource, http.MethodGet, c.storeURL(storeID, resource), nil)
	if err != nil {
		return nil, err
	}
	var out []json.RawMessage
	if len(bytes.TrimSpace(body)) == 0 || string(bytes.TrimSpace(body)) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Network("fetch", resource, 0, fmt.Errorf("decode: %w", err))
	}
	return out, nil
}

// Create: POST /stores/{store}/{resource}. Пустое тело или тело без id — EmptyResponse.
func (c *Client) Create(ctx context.Context, storeID, resource string, payload any) (json.RawMessage, error) {
	body, err := c.do(ctx, "create", resource, http.MethodPost, c.storeURL(storeID, resource), payload)
	if err != nil {
		return nil, err
	}
	if !hasEntity(body) {
		return nil, apperr.EmptyResponse("create", resource)
	}
	return body, nil
}

// Update: PATCH /{resource}/{id}. Тело ответа может быть пустым.
func (c *Client) Update(ctx context.Context, resource, id string, payload any) (json.RawMessage, error) {
	body, err := c.do(ctx, "update", resource, http.MethodPatch, c.entityURL(resource, id), payload)
	if err != nil {
		return nil, err
	}
	if !hasEntity(body) {
		return nil, nil
	}
	return body, nil
}

// Delete: DELETE /{resource}/{id}.
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	_, err := c.do(ctx, "delete", resource, http.MethodDelete, c.entityURL(resource, id), nil)
	return err
}

func (c *Client) storeURL(storeID, resource string) string {
	return c.baseURL + "/stores/" + url.PathEscape(storeID) + "/" + resource
}

func (c *Client) entityURL(resource, id string) string {
	return c.baseURL + "/" + resource + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, op, resource, method, u string, payload any) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("backend %s %s: marshal: %w", op, resource, err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("backend %s %s: %w", op, resource, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Network(op, resource, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Network(op, resource, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > maxErrBody {
			msg = msg[:maxErrBody]
		}
		return nil, apperr.Network(op, resource, resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(msg)))
	}
	return body, nil
}

// hasEntity — в теле есть JSON-объект с непустым id.
func hasEntity(body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return false
	}
	id := res.Get("id")
	return id.Exists() && id.String() != ""
}
