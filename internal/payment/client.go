// Package payment предоставляет клиент платёжного шлюза.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Статусы транзакции платёжного шлюза.
const (
	StatusPending   = "pending"
	StatusCaptured  = "captured"
	StatusCancelled = "cancelled"
)

// Client инкапсулирует HTTP-взаимодействие с платёжным шлюзом.
// Открытие транзакции выполняется ровно один раз без повторов: списание
// не идемпотентно. Проверка статуса — идемпотентный GET с повторами.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryClient *retryablehttp.Client
}

// Transaction описывает транзакцию шлюза.
type Transaction struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type createRequest struct {
	AmountCents int64  `json:"amount"`
	Email       string `json:"email"`
}

// NewClient создаёт клиент платёжного шлюза по указанному адресу.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		retryClient: rc,
	}
}

func (c *Client) url(path string) string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path
}

// CreateTransaction открывает транзакцию на указанную сумму в минорных
// единицах и возвращает её идентификатор.
func (c *Client) CreateTransaction(ctx context.Context, amountCents int64, email string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("payment client not configured")
	}

	body, err := json.Marshal(createRequest{
		AmountCents: amountCents,
		Email:       email,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/transactions"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var tx Transaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if tx.ID == "" {
		return "", fmt.Errorf("gateway returned transaction without id")
	}

	return tx.ID, nil
}

// VerifyTransaction запрашивает статус транзакции у шлюза.
func (c *Client) VerifyTransaction(ctx context.Context, txID string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("payment client not configured")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/transactions/"+txID), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.retryClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("transaction %s not found", txID)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var tx Transaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return tx.Status, nil
}
