// Package binance reads Binance balances through the operator's proxy tunnel
// and converts them into unified ledger entries.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/rs/zerolog"
)

const recvWindow = 10000

// Credentials are resolved from settings on every sync
type Credentials struct {
	APIKey        string
	APISecret     string
	TunnelURL     string
	ProxyPassword string
}

// CredentialsFunc returns the current credentials
type CredentialsFunc func(ctx context.Context) Credentials

// Client makes HMAC-SHA256 signed GET requests through the tunnel
type Client struct {
	credentials CredentialsFunc
	httpClient  *http.Client
	now         func() time.Time
	log         zerolog.Logger
}

// NewClient creates a Binance client. httpClient may be nil.
func NewClient(credentials CredentialsFunc, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		credentials: credentials,
		httpClient:  httpClient,
		now:         time.Now,
		log:         log.With().Str("client", "binance").Logger(),
	}
}

// sign returns the hex HMAC-SHA256 of message
func sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// signedGet calls endpoint with params plus timestamp/recvWindow and decodes into out
func (c *Client) signedGet(ctx context.Context, creds Credentials, endpoint string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.Itoa(recvWindow))

	query := params.Encode()
	requestURL := fmt.Sprintf("%s%s?%s&signature=%s",
		strings.TrimRight(creds.TunnelURL, "/"), endpoint, query, sign(creds.APISecret, query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", creds.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-proxy-auth", creds.ProxyPassword)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: binance %s: %v", domain.ErrSourceUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: binance %s: %v", domain.ErrSourceUnavailable, endpoint, err)
	}

	if resp.StatusCode == http.StatusForbidden && strings.Contains(string(body), "Access Denied") {
		return fmt.Errorf("%w: binance proxy auth failed", domain.ErrSourceUnavailable)
	}

	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && (apiErr.Msg != "" || apiErr.Code != 0) {
		return fmt.Errorf("%w: binance %s returned %d: %s", domain.ErrSourceUnavailable, endpoint, apiErr.Code, apiErr.Msg)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: binance %s returned status %d", domain.ErrSourceUnavailable, endpoint, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		bodyStr := string(body)
		if len(bodyStr) > 500 {
			bodyStr = bodyStr[:500] + "..."
		}
		c.log.Error().Err(err).Str("endpoint", endpoint).Str("response_body", bodyStr).Msg("Failed to parse response")
		return fmt.Errorf("%w: binance %s: %v", domain.ErrDataShape, endpoint, err)
	}
	return nil
}

// SpotBalance is one asset of /api/v3/account
type SpotBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// EarnPosition is one flexible simple-earn position
type EarnPosition struct {
	Asset       string `json:"asset"`
	TotalAmount string `json:"totalAmount"`
}

// LoanOrder is one ongoing flexible loan
type LoanOrder struct {
	LoanCoin         string `json:"loanCoin"`
	TotalDebt        string `json:"totalDebt"`
	CollateralCoin   string `json:"collateralCoin"`
	CollateralAmount string `json:"collateralAmount"`
	CurrentLTV       string `json:"currentLTV"`
}

type rowsResponse[T any] struct {
	Rows []T `json:"rows"`
}

// SpotBalances returns the spot account balances
func (c *Client) SpotBalances(ctx context.Context, creds Credentials) ([]SpotBalance, error) {
	var out struct {
		Balances []SpotBalance `json:"balances"`
	}
	if err := c.signedGet(ctx, creds, "/api/v3/account", nil, &out); err != nil {
		return nil, err
	}
	return out.Balances, nil
}

// EarnPositions returns flexible simple-earn positions
func (c *Client) EarnPositions(ctx context.Context, creds Credentials) ([]EarnPosition, error) {
	var out rowsResponse[EarnPosition]
	params := url.Values{"size": {"100"}}
	if err := c.signedGet(ctx, creds, "/sapi/v1/simple-earn/flexible/position", params, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

// LoanOrders returns ongoing flexible loan orders
func (c *Client) LoanOrders(ctx context.Context, creds Credentials) ([]LoanOrder, error) {
	var out rowsResponse[LoanOrder]
	params := url.Values{"limit": {"100"}}
	if err := c.signedGet(ctx, creds, "/sapi/v2/loan/flexible/ongoing/orders", params, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}
