package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
)

// Fetcher retrieves a USD spot price from one origin
type Fetcher interface {
	Name() string
	FetchUSD(ctx context.Context, ticker string) (float64, error)
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

// CryptoPricesFetcher reads the plain-text price endpoint of cryptoprices.cc
type CryptoPricesFetcher struct {
	baseURL string
	client  *http.Client
}

// NewCryptoPricesFetcher creates the fetcher; an empty baseURL uses the public host
func NewCryptoPricesFetcher(baseURL string, client *http.Client) *CryptoPricesFetcher {
	if baseURL == "" {
		baseURL = "https://cryptoprices.cc"
	}
	if client == nil {
		client = defaultHTTPClient()
	}
	return &CryptoPricesFetcher{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Name identifies the origin in logs
func (f *CryptoPricesFetcher) Name() string { return "cryptoprices.cc" }

// FetchUSD returns the latest USD price
func (f *CryptoPricesFetcher) FetchUSD(ctx context.Context, ticker string) (float64, error) {
	url := fmt.Sprintf("%s/%s/", f.baseURL, strings.ToUpper(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, f.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s returned %d", domain.ErrSourceUnavailable, f.Name(), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, f.Name(), err)
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(string(body)), 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: %s returned %q", domain.ErrDataShape, f.Name(), strings.TrimSpace(string(body)))
	}
	return price, nil
}

// CoinMarketCapFetcher queries the CoinMarketCap quotes API
type CoinMarketCapFetcher struct {
	baseURL string
	apiKey  func(ctx context.Context) string
	client  *http.Client
}

// NewCoinMarketCapFetcher creates the fetcher. apiKey is resolved per call so
// a key saved mid-run is picked up.
func NewCoinMarketCapFetcher(baseURL string, apiKey func(ctx context.Context) string, client *http.Client) *CoinMarketCapFetcher {
	if baseURL == "" {
		baseURL = "https://pro-api.coinmarketcap.com"
	}
	if client == nil {
		client = defaultHTTPClient()
	}
	return &CoinMarketCapFetcher{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: client}
}

// Name identifies the origin in logs
func (f *CoinMarketCapFetcher) Name() string { return "coinmarketcap" }

type cmcQuoteResponse struct {
	Data map[string]struct {
		Quote map[string]struct {
			Price float64 `json:"price"`
		} `json:"quote"`
	} `json:"data"`
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

// FetchUSD returns the latest USD quote
func (f *CoinMarketCapFetcher) FetchUSD(ctx context.Context, ticker string) (float64, error) {
	key := ""
	if f.apiKey != nil {
		key = f.apiKey(ctx)
	}
	if key == "" {
		return 0, fmt.Errorf("%w: CMC_API_KEY", domain.ErrMissingCredentials)
	}

	symbol := strings.ToUpper(ticker)
	url := fmt.Sprintf("%s/v1/cryptocurrency/quotes/latest?symbol=%s&convert=USD", f.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-CMC_PRO_API_KEY", key)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, f.Name(), err)
	}
	defer resp.Body.Close()

	var body cmcQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrDataShape, f.Name(), err)
	}
	if resp.StatusCode != http.StatusOK || body.Status.ErrorCode != 0 {
		return 0, fmt.Errorf("%w: %s returned %d: %s", domain.ErrSourceUnavailable, f.Name(), resp.StatusCode, body.Status.ErrorMessage)
	}

	quote, ok := body.Data[symbol].Quote["USD"]
	if !ok || quote.Price <= 0 {
		return 0, fmt.Errorf("%w: %s has no USD quote for %s", domain.ErrDataShape, f.Name(), symbol)
	}
	return quote.Price, nil
}
