package adapters

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chigozzdevv/zecflow-sub000/common/config"
	"github.com/chigozzdevv/zecflow-sub000/common/logger"
)

// ZcashClient submits shielded transfers through the transfer service,
// which fronts a Zcash node. The engine sees opaque transaction and
// operation identifiers only.
type ZcashClient struct {
	rest        *restClient
	fromAddress string
	log         *logger.Logger
}

// NewZcashClient creates a client from adapter configuration
func NewZcashClient(cfg config.AdapterConfig, log *logger.Logger) *ZcashClient {
	return &ZcashClient{
		rest:        newRESTClient(cfg.ZcashRPCURL, "", cfg.HTTPTimeout, log),
		fromAddress: cfg.ZcashFromAddress,
		log:         log,
	}
}

type sendResponse struct {
	TxID        string `json:"txid"`
	OperationID string `json:"operation_id"`
}

// Send submits a shielded transfer. Optional parameters default from
// configuration (from address) or are omitted from the request.
func (c *ZcashClient) Send(ctx context.Context, address string, amount float64, opts *TransferOptions) (*TransferResult, error) {
	if address == "" {
		return nil, fmt.Errorf("transfer requires a destination address")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("transfer requires a positive amount")
	}
	if opts == nil {
		opts = &TransferOptions{}
	}

	from := opts.FromAddress
	if from == "" {
		from = c.fromAddress
	}

	req := map[string]any{
		"to":     address,
		"amount": amount,
		"from":   from,
	}
	if opts.Memo != "" {
		req["memo"] = opts.Memo
	}
	if opts.MinConfirmations > 0 {
		req["min_confirmations"] = opts.MinConfirmations
	}
	if opts.Fee > 0 {
		req["fee"] = opts.Fee
	}
	if opts.PrivacyPolicy != "" {
		req["privacy_policy"] = opts.PrivacyPolicy
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	var resp sendResponse
	if err := c.rest.doJSON(ctx, http.MethodPost, "/v1/transfers", req, &resp); err != nil {
		return nil, err
	}

	c.log.Info("shielded transfer submitted",
		"operation_id", resp.OperationID,
		"duration_ms", time.Since(start).Milliseconds())

	return &TransferResult{TxID: resp.TxID, OperationID: resp.OperationID}, nil
}
