package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/domain"
	"github.com/Larry-kang/GAS-Asset-Tracker/internal/modules/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVenue(t *testing.T, handler http.HandlerFunc) *Venue {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	creds := func(context.Context) Credentials {
		return Credentials{APIKey: "key", APISecret: "secret", TunnelURL: srv.URL, ProxyPassword: "pw"}
	}
	client := NewClient(creds, srv.Client(), zerolog.New(nil).Level(zerolog.Disabled))
	client.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return NewVenue(client)
}

func verifySignature(t *testing.T, r *http.Request) {
	t.Helper()
	q := r.URL.Query()
	sig := q.Get("signature")
	q.Del("signature")
	raw := r.URL.RawQuery
	unsigned := raw[:len(raw)-len("&signature=")-len(sig)]
	assert.Equal(t, sign("secret", unsigned), sig)
	assert.Equal(t, "1700000000000", q.Get("timestamp"))
	assert.Equal(t, "key", r.Header.Get("X-MBX-APIKEY"))
	assert.Equal(t, "pw", r.Header.Get("x-proxy-auth"))
}

func TestVenue_FetchEntries(t *testing.T) {
	venue := newTestVenue(t, func(w http.ResponseWriter, r *http.Request) {
		verifySignature(t, r)
		switch r.URL.Path {
		case "/api/v3/account":
			fmt.Fprint(w, `{"balances":[
				{"asset":"BTC","free":"0.5","locked":"0.1"},
				{"asset":"LDBTC","free":"1","locked":"0"},
				{"asset":"ETH","free":"0","locked":"0"}]}`)
		case "/sapi/v1/simple-earn/flexible/position":
			fmt.Fprint(w, `{"rows":[{"asset":"USDT","totalAmount":"1200"}],"total":1}`)
		case "/sapi/v2/loan/flexible/ongoing/orders":
			fmt.Fprint(w, `{"rows":[{"loanCoin":"USDT","totalDebt":"5000","collateralCoin":"BTC","collateralAmount":"0.3","currentLTV":"0.4512"}],"total":1}`)
		default:
			http.NotFound(w, r)
		}
	})

	entries, err := venue.FetchEntries(context.Background())

	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, ledger.StatusAvailable, entries[0].Status)
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, ledger.StatusFrozen, entries[1].Status)
	assert.Equal(t, ledger.TypeEarn, entries[2].Type)

	debt := entries[3]
	assert.Equal(t, ledger.StatusDebt, debt.Status)
	assert.True(t, debt.Amount.Equal(decimal.NewFromInt(-5000)))
	assert.Equal(t, "LTV: 45.12%", debt.Meta)

	collateral := entries[4]
	assert.Equal(t, "BTC", collateral.Currency)
	assert.Equal(t, "Ref: USDT", collateral.Meta)
}

func TestVenue_EndpointFailureFailsFetch(t *testing.T) {
	venue := newTestVenue(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sapi/v1/simple-earn/flexible/position" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":-1021,"msg":"Timestamp outside recvWindow"}`)
			return
		}
		fmt.Fprint(w, `{"balances":[],"rows":[]}`)
	})

	_, err := venue.FetchEntries(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "recvWindow")
}

func TestVenue_ProxyAuthFailure(t *testing.T) {
	venue := newTestVenue(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "Access Denied")
	})

	_, err := venue.FetchEntries(context.Background())

	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "proxy auth")
}

func TestVenue_MissingCredentials(t *testing.T) {
	client := NewClient(func(context.Context) Credentials {
		return Credentials{APIKey: "key", APISecret: "secret"}
	}, nil, zerolog.New(nil).Level(zerolog.Disabled))

	_, err := NewVenue(client).FetchEntries(context.Background())

	assert.True(t, errors.Is(err, domain.ErrMissingCredentials))
}

func TestSign(t *testing.T) {
	// Binance API documentation example
	got := sign("NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j",
		"symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559")
	assert.Equal(t, "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71", got)
}
