// Package maksekeskus talks to the Maksekeskus payment gateway: outbound
// transaction and method requests, and verification of inbound
// notifications.
package maksekeskus

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zeebo/errs"
)

// Error is error class for gateway API errors.
var Error = errs.Class("maksekeskus client error")

const (
	LiveBaseURL = "https://api.maksekeskus.ee"
	TestBaseURL = "https://api.test.maksekeskus.ee"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// Credentials identify the shop against the gateway API.
type Credentials struct {
	ShopID    string
	SecretKey string
}

// Client handles base API processing.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
}

// NewClient creates new instance of client with provided credentials.
func NewClient(baseURL string, creds Credentials, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// AuthHeader returns the HTTP Basic credential for shopID:secretKey.
func AuthHeader(shopID, secretKey string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(shopID+":"+secretKey))
}

// Transaction is the gateway's answer to a create-transaction request.
type Transaction struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	PaymentMethods json.RawMessage `json:"payment_methods"`
}

// PaymentMethod is one entry of a payment_methods group.
type PaymentMethod struct {
	Name    string `json:"name"`
	Display string `json:"display_name,omitempty"`
	Country string `json:"country,omitempty"`
	URL     string `json:"url"`
	LogoURL string `json:"logo_url,omitempty"`
}

type paymentMethodGroups struct {
	Banklinks []PaymentMethod `json:"banklinks"`
	Cards     []PaymentMethod `json:"cards"`
	Other     []PaymentMethod `json:"other"`
	Paylater  []PaymentMethod `json:"paylater"`
}

// RedirectURL is the hosted payment page link, when the gateway offered one.
func (t *Transaction) RedirectURL() string {
	if len(t.PaymentMethods) == 0 {
		return ""
	}

	var groups paymentMethodGroups
	if err := json.Unmarshal(t.PaymentMethods, &groups); err != nil {
		return ""
	}
	for _, method := range groups.Other {
		if method.Name == "redirect" {
			return method.URL
		}
	}
	return ""
}

// CreateTransaction registers a new transaction with the gateway.
func (c *Client) CreateTransaction(ctx context.Context, payload TransactionPayload) (*Transaction, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	raw, err := c.do(ctx, http.MethodPost, "/v1/transactions", nil, body)
	if err != nil {
		return nil, err
	}

	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, Error.Wrap(err)
	}
	if tx.ID == "" {
		return nil, Error.New("transaction response without id")
	}

	return &tx, nil
}

// ListMethods returns the payment methods enabled for the shop, as sent by
// the gateway.
func (c *Client) ListMethods(ctx context.Context, country, currency string) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("country", country)
	query.Set("currency", currency)

	raw, err := c.do(ctx, http.MethodGet, "/v1/methods", query, nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, Error.New("methods response is not valid json")
	}

	return raw, nil
}

// do handles base API request routines.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (_ json.RawMessage, err error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	req.Header.Set("Authorization", AuthHeader(c.creds.ShopID, c.creds.SecretKey))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	defer func() {
		err = errs.Combine(err, Error.Wrap(resp.Body.Close()))
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, Error.New("unexpected status %d: %s", resp.StatusCode, data)
	}

	return data, nil
}
