package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
	"go.uber.org/zap"
)

// NIP-47 event kinds.
const (
	kindNWCRequest  = 23194
	kindNWCResponse = 23195
)

const defaultRPCTimeout = time.Second * 15

// NWCDialer builds Nostr Wallet Connect clients. One Client per credential;
// sessions are not shared between users.
type NWCDialer struct {
	rpcTimeout time.Duration
}

func NewNWCDialer() *NWCDialer {
	return &NWCDialer{rpcTimeout: defaultRPCTimeout}
}

func (d *NWCDialer) Dial(uri string) (Client, error) {
	cred, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return &nwcClient{
		cred:       cred,
		rpcTimeout: d.rpcTimeout,
	}, nil
}

type nwcClient struct {
	cred       *Credential
	rpcTimeout time.Duration
	relay      *nostr.Relay
}

func (c *nwcClient) Connect(ctx context.Context) error {
	relay, err := nostr.RelayConnect(ctx, c.cred.RelayURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	c.relay = relay
	return nil
}

func (c *nwcClient) Disconnect() {
	if c.relay == nil {
		return
	}
	if err := c.relay.Close(); err != nil {
		zap.L().Warn("failed to close relay connection", zap.Error(err))
	}
	c.relay = nil
}

type nwcRequest struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

type nwcResponse struct {
	ResultType string `json:"result_type"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Result json.RawMessage `json:"result"`
}

type makeInvoiceParams struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type makeInvoiceResult struct {
	Invoice     string `json:"invoice"`
	PaymentHash string `json:"payment_hash"`
}

type lookupInvoiceParams struct {
	PaymentHash string `json:"payment_hash"`
}

type lookupInvoiceResult struct {
	SettledAt *int64 `json:"settled_at"`
	Preimage  string `json:"preimage"`
}

func (c *nwcClient) CreateInvoice(ctx context.Context, amountSats int64, description string) (string, string, error) {
	// NIP-47 amounts are millisats.
	raw, err := c.rpc(ctx, nwcRequest{
		Method: "make_invoice",
		Params: makeInvoiceParams{Amount: amountSats * 1000, Description: description},
	})
	if err != nil {
		return "", "", err
	}

	var result makeInvoiceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", "", fmt.Errorf("can't parse make_invoice result: %w", err)
	}
	if result.Invoice == "" {
		return "", "", &Error{Code: "INTERNAL", Message: "wallet returned empty invoice"}
	}
	return result.Invoice, result.PaymentHash, nil
}

func (c *nwcClient) CheckPaymentStatus(ctx context.Context, paymentHash string) bool {
	raw, err := c.rpc(ctx, nwcRequest{
		Method: "lookup_invoice",
		Params: lookupInvoiceParams{PaymentHash: paymentHash},
	})
	if err != nil {
		zap.L().Debug("invoice lookup failed, treating as unpaid",
			zap.String("paymentHash", paymentHash), zap.Error(err))
		return false
	}

	var result lookupInvoiceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		zap.L().Debug("can't parse lookup_invoice result, treating as unpaid", zap.Error(err))
		return false
	}
	return (result.SettledAt != nil && *result.SettledAt > 0) || result.Preimage != ""
}

// rpc sends one encrypted NIP-47 request and waits for the matching response.
func (c *nwcClient) rpc(ctx context.Context, req nwcRequest) (json.RawMessage, error) {
	if c.relay == nil {
		return nil, ErrConnection
	}

	ctx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	shared, err := nip04.ComputeSharedSecret(c.cred.WalletPubkey, c.cred.Secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCredential, err)
	}
	content, err := nip04.Encrypt(string(payload), shared)
	if err != nil {
		return nil, err
	}

	pub, err := nostr.GetPublicKey(c.cred.Secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCredential, err)
	}

	ev := nostr.Event{
		PubKey:    pub,
		CreatedAt: nostr.Now(),
		Kind:      kindNWCRequest,
		Tags:      nostr.Tags{{"p", c.cred.WalletPubkey}},
		Content:   content,
	}
	if err := ev.Sign(c.cred.Secret); err != nil {
		return nil, err
	}

	sub, err := c.relay.Subscribe(ctx, nostr.Filters{{
		Kinds:   []int{kindNWCResponse},
		Authors: []string{c.cred.WalletPubkey},
		Tags:    nostr.TagMap{"e": []string{ev.ID}},
	}})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer sub.Unsub()

	if err := c.relay.Publish(ctx, ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case respEv, ok := <-sub.Events:
		if !ok {
			return nil, ErrConnection
		}
		plain, err := nip04.Decrypt(respEv.Content, shared)
		if err != nil {
			return nil, fmt.Errorf("can't decrypt wallet response: %w", err)
		}
		var resp nwcResponse
		if err := json.Unmarshal([]byte(plain), &resp); err != nil {
			return nil, fmt.Errorf("can't parse wallet response: %w", err)
		}
		if resp.Error != nil {
			return nil, &Error{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return resp.Result, nil
	}
}
