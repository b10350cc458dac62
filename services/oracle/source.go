package oracle

import (
	"context"
	"fmt"

	"campaign-settlement/pkg/config"
	"campaign-settlement/pkg/errutil"

	"github.com/go-resty/resty/v2"
)

// MarketSource reads a single quote for the configured asset.
type MarketSource interface {
	Fetch(ctx context.Context) (Quote, error)
}

type httpSource struct {
	client *resty.Client
	asset  string
}

type quoteResponse struct {
	Asset       string  `json:"asset"`
	MarketCap   float64 `json:"market_cap"`
	PriceUSD    float64 `json:"price_usd"`
	RetrievedAt string  `json:"retrieved_at"`
}

// NewHTTPSource returns a MarketSource backed by the configured market data
// HTTP endpoint.
func NewHTTPSource(cfg *config.Config) MarketSource {
	client := resty.New().
		SetBaseURL(cfg.Oracle.SourceURL).
		SetTimeout(cfg.Oracle.FetchTimeout)

	return &httpSource{
		client: client,
		asset:  cfg.Oracle.Asset,
	}
}

func (s *httpSource) Fetch(ctx context.Context) (Quote, error) {
	var out quoteResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("asset", s.asset).
		SetResult(&out).
		Get("/v1/quote")
	if err != nil {
		return Quote{}, err
	}

	if resp.IsError() {
		return Quote{}, errutil.BadGateway("market data source returned error",
			errutil.WithErr(fmt.Errorf("status %s", resp.Status())))
	}

	return Quote{MarketValue: out.MarketCap, UnitPrice: out.PriceUSD}, nil
}
