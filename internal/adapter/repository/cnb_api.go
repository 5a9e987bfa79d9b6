package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/dnscache"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"cnb-rate-service/internal/domain/model"
	"cnb-rate-service/internal/domain/ports"
	"cnb-rate-service/pkg/logger"
	"cnb-rate-service/pkg/utils"
)

var _ ports.RateRepository = (*CNBAPI)(nil)

var (
	ErrUpstreamStatus  = errors.New("upstream returned non-OK status")
	ErrMalformedRates  = errors.New("malformed upstream rate payload")
	ErrNoRatesReturned = errors.New("upstream returned no rates")
)

// maxBodySize caps the daily fixing payload; a real one is a few KiB.
const maxBodySize = 1 << 20

// CNBAPI reads the daily fixing from the Czech National Bank JSON API:
//
//	GET {base}/cnbapi/exrates/daily?lang=EN&date=2025-01-02
//	{"rates":[{"validFor":"2025-01-02","amount":100,"currencyCode":"JPY","rate":15.416}, ...]}
//
// Rates are quoted per Amount units; they are normalized to one unit.
type CNBAPI struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
	now        func() time.Time
}

func NewCNBAPI(baseURL string, timeout time.Duration, resolver *dnscache.Resolver, log *logger.Logger) *CNBAPI {
	return &CNBAPI{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: NewTransport(resolver),
		},
		log: log,
		now: time.Now,
	}
}

// NewTransport returns a pooled transport that resolves hosts through the
// DNS cache when resolver is set.
func NewTransport(resolver *dnscache.Resolver) *http.Transport {
	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			var lastErr error
			for _, ip := range ips {
				conn, err := d.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			return nil, lastErr
		}
	}
	return t
}

func (c *CNBAPI) FetchDailyRates(ctx context.Context, date time.Time) (*model.RateSet, error) {
	query := url.Values{}
	query.Set("lang", "EN")
	if !date.IsZero() {
		query.Set("date", utils.FormatDate(date))
	}
	endpoint := fmt.Sprintf("%s/cnbapi/exrates/daily?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	set, err := parseDailyRates(body)
	if err != nil {
		return nil, err
	}
	set.FetchedAt = c.now().UTC()

	c.log.Debug("Fetched CNB daily rates", "count", len(set.Rates), "date", utils.FormatDate(date))
	return set, nil
}

func parseDailyRates(body []byte) (*model.RateSet, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedRates)
	}
	rates := gjson.GetBytes(body, "rates")
	if !rates.IsArray() {
		return nil, fmt.Errorf("%w: missing rates array", ErrMalformedRates)
	}

	set := &model.RateSet{TargetCurrency: model.CZK}
	var parseErr error
	rates.ForEach(func(_, item gjson.Result) bool {
		rate, validFor, err := parseRate(item)
		if err != nil {
			parseErr = err
			return false
		}
		if set.ValidFor == nil && validFor != nil {
			set.ValidFor = validFor
		}
		set.Rates = append(set.Rates, rate)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(set.Rates) == 0 {
		return nil, ErrNoRatesReturned
	}
	return set, nil
}

func parseRate(item gjson.Result) (model.ExchangeRate, *time.Time, error) {
	code := model.ParseCurrency(item.Get("currencyCode").String())
	if code == "" {
		return model.ExchangeRate{}, nil, fmt.Errorf("%w: rate without currencyCode", ErrMalformedRates)
	}

	rawRate := item.Get("rate")
	if rawRate.Type != gjson.Number {
		return model.ExchangeRate{}, nil, fmt.Errorf("%w: rate for %s is not a number", ErrMalformedRates, code)
	}
	// Raw keeps the exact decimal literal instead of a float64 round trip.
	rate, err := decimal.NewFromString(rawRate.Raw)
	if err != nil {
		return model.ExchangeRate{}, nil, fmt.Errorf("%w: rate for %s: %v", ErrMalformedRates, code, err)
	}

	amount := int64(1)
	if a := item.Get("amount"); a.Exists() {
		amount = a.Int()
	}
	if amount <= 0 {
		return model.ExchangeRate{}, nil, fmt.Errorf("%w: amount for %s must be positive", ErrMalformedRates, code)
	}

	var validFor *time.Time
	if v := item.Get("validFor").String(); v != "" {
		d, err := utils.ParseDate(v)
		if err != nil {
			return model.ExchangeRate{}, nil, fmt.Errorf("%w: validFor %q: %v", ErrMalformedRates, v, err)
		}
		validFor = &d
	}

	return model.ExchangeRate{
		SourceCurrency: code,
		TargetCurrency: model.CZK,
		Rate:           rate.Div(decimal.NewFromInt(amount)),
	}, validFor, nil
}
