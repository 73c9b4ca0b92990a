package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/stock-price-alerts/internal/models"
	"github.com/trogers1052/stock-price-alerts/internal/quote"
)

// globalQuoteResponse is the GLOBAL_QUOTE payload. Error payloads reuse the
// same 200 response with one of the message fields set.
type globalQuoteResponse struct {
	GlobalQuote  map[string]string `json:"Global Quote"`
	ErrorMessage string            `json:"Error Message"`
	Note         string            `json:"Note"`
	Information  string            `json:"Information"`
}

// Quote fetches the current quote for symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	query := maps.Clone(c.query)
	query.Set("function", "GLOBAL_QUOTE")
	query.Set("symbol", symbol)

	url := fmt.Sprintf("%s/query?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, quote.Permanent(symbol, fmt.Errorf("creating request: %w", err))
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, quote.Transient(symbol, fmt.Errorf("performing request: %w", err))
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, quote.Transient(symbol, errors.New("rate limited"))
	case res.StatusCode >= 500:
		return nil, quote.Transient(symbol, fmt.Errorf("unexpected status code: %d", res.StatusCode))
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return nil, quote.Permanent(symbol, errors.New("unauthorized"))
	default:
		return nil, quote.Permanent(symbol, fmt.Errorf("unexpected status code: %d", res.StatusCode))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, quote.Transient(symbol, fmt.Errorf("reading response: %w", err))
	}

	var payload globalQuoteResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, quote.Transient(symbol, fmt.Errorf("decoding response: %w", err))
	}

	switch {
	case payload.ErrorMessage != "":
		return nil, quote.Permanent(symbol, fmt.Errorf("api error: %s", payload.ErrorMessage))
	case payload.Information != "" && strings.Contains(strings.ToLower(payload.Information), "apikey"):
		return nil, quote.Permanent(symbol, fmt.Errorf("api key rejected: %s", payload.Information))
	case payload.Note != "":
		return nil, quote.Transient(symbol, fmt.Errorf("rate limited: %s", payload.Note))
	case payload.Information != "":
		return nil, quote.Transient(symbol, fmt.Errorf("rate limited: %s", payload.Information))
	case len(payload.GlobalQuote) == 0:
		return nil, quote.Permanent(symbol, errors.New("no quote data, symbol may be invalid"))
	}

	return c.parseGlobalQuote(symbol, payload.GlobalQuote)
}

func (c *Client) parseGlobalQuote(symbol string, fields map[string]string) (*models.Quote, error) {
	price, err := decimal.NewFromString(fields["05. price"])
	if err != nil {
		return nil, quote.Permanent(symbol, fmt.Errorf("invalid price %q: %w", fields["05. price"], err))
	}

	// The requested symbol is kept even when "01. symbol" spells it
	// differently, so history stays keyed by the watchlist entry.
	q := &models.Quote{
		Symbol:    symbol,
		Price:     price,
		Timestamp: c.clock.Now().UTC(),
	}
	if v, err := strconv.ParseInt(fields["06. volume"], 10, 64); err == nil {
		q.Volume = &v
	}
	if h, err := decimal.NewFromString(fields["03. high"]); err == nil {
		q.DayHigh = &h
	}
	if l, err := decimal.NewFromString(fields["04. low"]); err == nil {
		q.DayLow = &l
	}
	if ch, err := decimal.NewFromString(fields["09. change"]); err == nil {
		q.Change = &ch
	}
	pct := strings.TrimSuffix(strings.TrimSpace(fields["10. change percent"]), "%")
	if p, err := decimal.NewFromString(pct); err == nil {
		q.ChangePercent = &p
	}
	return q, nil
}
