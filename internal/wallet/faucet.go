package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"xrpdash.live/xrd/internal/xrpamount"
)

// DefaultFaucetURL is the public testnet faucet endpoint.
const DefaultFaucetURL = "https://faucet.altnet.rippletest.net/accounts"

// FaucetAccount is the funded account returned by the faucet: the address,
// the seed the faucet generated for it, and the starting balance. The seed is
// handed to the caller exactly once and is never retained by the client.
type FaucetAccount struct {
	Address string
	Seed    string
	Balance xrpamount.Amount
}

// FaucetClient requests funded testnet accounts over HTTP.
type FaucetClient struct {
	url    string
	client *http.Client
}

// NewFaucetClient creates a faucet client for the given endpoint. An empty
// URL selects the public testnet faucet.
func NewFaucetClient(url string) *FaucetClient {
	if url == "" {
		url = DefaultFaucetURL
	}

	return &FaucetClient{
		url: url,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fund requests a new funded account from the faucet. The call typically
// takes several seconds while the faucet submits and waits for the funding
// payment.
func (fc *FaucetClient) Fund(ctx context.Context) (*FaucetAccount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fc.url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("failed to build faucet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := fc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach faucet: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read faucet response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("faucet returned status %d: %s", resp.StatusCode, string(respBytes))
	}

	var faucetResp struct {
		Account struct {
			Address string `json:"address"`
			Secret  string `json:"secret"`
		} `json:"account"`
		Seed    string  `json:"seed"`
		Balance float64 `json:"balance"`
	}

	if err := json.Unmarshal(respBytes, &faucetResp); err != nil {
		return nil, fmt.Errorf("failed to parse faucet response: %w (body: %s)", err, string(respBytes))
	}

	if faucetResp.Account.Address == "" {
		return nil, fmt.Errorf("faucet response missing account address: %s", string(respBytes))
	}

	// Newer faucet deployments return the seed at the top level; older ones
	// nest it under account.secret.
	seed := faucetResp.Seed
	if seed == "" {
		seed = faucetResp.Account.Secret
	}
	if seed == "" {
		return nil, fmt.Errorf("faucet response missing seed for %s", faucetResp.Account.Address)
	}

	// The faucet reports the balance in whole XRP.
	return &FaucetAccount{
		Address: faucetResp.Account.Address,
		Seed:    seed,
		Balance: xrpamount.FromXRP(faucetResp.Balance),
	}, nil
}
