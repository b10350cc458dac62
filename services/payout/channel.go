package payout

import (
	"context"
	"fmt"

	"campaign-settlement/pkg/config"
	"campaign-settlement/pkg/errutil"

	"github.com/go-resty/resty/v2"
)

// Channel sends one transfer instruction to the external payment channel
// and returns the channel-assigned transaction id. Implementations must not
// assume any atomicity or ordering across calls; the channel offers none.
type Channel interface {
	Send(ctx context.Context, attempt Attempt) (string, error)
}

type httpChannel struct {
	client *resty.Client
}

type transferRequest struct {
	Address     string  `json:"address"`
	AmountUnits float64 `json:"amount_units"`
	Reference   string  `json:"reference"`
}

type transferResponse struct {
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error,omitempty"`
}

// NewHTTPChannel returns a Channel backed by the configured payment channel
// HTTP endpoint.
func NewHTTPChannel(cfg *config.Config) Channel {
	client := resty.New().
		SetBaseURL(cfg.Settlement.ChannelURL).
		SetTimeout(cfg.Settlement.AttemptTimeout)

	return &httpChannel{client: client}
}

func (c *httpChannel) Send(ctx context.Context, attempt Attempt) (string, error) {
	var out transferResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(transferRequest{
			Address:     attempt.PayoutAddress,
			AmountUnits: attempt.AmountUnits,
			Reference:   attempt.ParticipantID,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/v1/transfers")
	if err != nil {
		return "", err
	}

	if resp.IsError() {
		msg := out.Error
		if msg == "" {
			msg = resp.Status()
		}
		return "", errutil.BadGateway("payment channel rejected transfer",
			errutil.WithErr(fmt.Errorf("%s", msg)))
	}

	if out.TransactionID == "" {
		return "", errutil.BadGateway("payment channel returned no transaction id")
	}

	return out.TransactionID, nil
}
