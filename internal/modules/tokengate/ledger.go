package tokengate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Ledger reports how much of a fungible token a wallet holds, as the ledger
// reports it. A wallet that holds none yields zero.
type Ledger interface {
	Balance(ctx context.Context, wallet, token string) (decimal.Decimal, error)
}

// HeliusLedger queries a DAS getAssetsByOwner JSON-RPC endpoint.
type HeliusLedger struct {
	endpoint string
	client   *http.Client
	limit    int
	maxPages int
}

type HeliusOptions struct {
	Endpoint string
	Timeout  time.Duration
	Limit    int
	MaxPages int
}

func NewHeliusLedger(opts HeliusOptions) *HeliusLedger {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Limit <= 0 || opts.Limit > 1000 {
		opts.Limit = 1000
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	return &HeliusLedger{
		endpoint: opts.Endpoint,
		client:   &http.Client{Timeout: opts.Timeout},
		limit:    opts.Limit,
		maxPages: opts.MaxPages,
	}
}

type rpcRequest struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      string              `json:"id"`
	Method  string              `json:"method"`
	Params  assetsByOwnerParams `json:"params"`
}

type assetsByOwnerParams struct {
	OwnerAddress   string         `json:"ownerAddress"`
	Page           int            `json:"page"`
	Limit          int            `json:"limit"`
	DisplayOptions displayOptions `json:"displayOptions"`
}

type displayOptions struct {
	ShowFungible bool `json:"showFungible"`
}

type rpcResponse struct {
	Result *struct {
		Total int     `json:"total"`
		Items []asset `json:"items"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type asset struct {
	ID      string `json:"id"`
	Mint    string `json:"mint"`
	Content struct {
		Metadata struct {
			Mint string `json:"mint"`
		} `json:"metadata"`
	} `json:"content"`
	TokenInfo *struct {
		Balance json.Number `json:"balance"`
	} `json:"token_info"`
}

func (a asset) identifier() string {
	switch {
	case a.ID != "":
		return a.ID
	case a.Mint != "":
		return a.Mint
	default:
		return a.Content.Metadata.Mint
	}
}

func (l *HeliusLedger) Balance(ctx context.Context, wallet, token string) (decimal.Decimal, error) {
	for page := 1; page <= l.maxPages; page++ {
		items, err := l.fetch(ctx, wallet, page)
		if err != nil {
			return decimal.Zero, err
		}
		for _, a := range items {
			if !strings.EqualFold(a.identifier(), token) {
				continue
			}
			if a.TokenInfo == nil || a.TokenInfo.Balance == "" {
				return decimal.Zero, nil
			}
			// The ledger's balance is compared as reported, without
			// rescaling by the token's decimals.
			balance, err := decimal.NewFromString(a.TokenInfo.Balance.String())
			if err != nil {
				return decimal.Zero, eris.Wrapf(ErrLedgerUnavailable, "token balance %q: %v", a.TokenInfo.Balance, err)
			}
			return balance, nil
		}
		if len(items) < l.limit {
			break
		}
	}
	return decimal.Zero, nil
}

func (l *HeliusLedger) fetch(ctx context.Context, wallet string, page int) ([]asset, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "token-holdings",
		Method:  "getAssetsByOwner",
		Params: assetsByOwnerParams{
			OwnerAddress:   wallet,
			Page:           page,
			Limit:          l.limit,
			DisplayOptions: displayOptions{ShowFungible: true},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "encode ledger request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "build ledger request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(ErrLedgerUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, eris.Wrap(ErrLedgerUnavailable, fmt.Sprintf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(ErrLedgerUnavailable, "decode response: "+err.Error())
	}
	if out.Error != nil {
		return nil, eris.Wrap(ErrLedgerUnavailable, fmt.Sprintf("rpc error %d: %s", out.Error.Code, out.Error.Message))
	}
	if out.Result == nil {
		return nil, nil
	}
	return out.Result.Items, nil
}
