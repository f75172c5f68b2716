// Package accounting pushes ledger entries to the external accounting system.
package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gooms-backend/internal/config"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/models"

	"github.com/shopspring/decimal"
)

// Entry is one ledger line in the accounting API's format.
type Entry struct {
	LocalID     uint            `json:"local_id"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Description string          `json:"description,omitempty"`
	Reference   string          `json:"reference,omitempty"`
}

// Result reports the outcome for one pushed entry. ExternalID is empty when
// the remote side rejected it.
type Result struct {
	LocalID    uint   `json:"local_id"`
	ExternalID string `json:"external_id"`
	Error      string `json:"error,omitempty"`
}

func EntryFrom(t models.FinancialTransaction) Entry {
	return Entry{
		LocalID:     t.ID,
		Type:        string(t.Type),
		Category:    t.Category,
		Amount:      t.Amount,
		Date:        t.Date.Format(httpx.DateLayout),
		Description: t.Description,
		Reference:   t.Reference,
	}
}

type Pusher interface {
	PushTransactions(ctx context.Context, entries []Entry) ([]Result, error)
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.AccountingConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type pushRequest struct {
	Transactions []Entry `json:"transactions"`
}

type pushResponse struct {
	Results []Result `json:"results"`
}

// PushTransactions POSTs a batch to {base}/transactions.
func (c *Client) PushTransactions(ctx context.Context, entries []Entry) ([]Result, error) {
	body, err := json.Marshal(pushRequest{Transactions: entries})
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push transactions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("accounting api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Results, nil
}
