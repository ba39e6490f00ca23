package noderpc

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	bankBalancesPath     = "/custom/bank/balances/"
	stakingValidatorPath = "/custom/staking/validator/"
)

// GetNodeStatus returns the node's status document (node, sync and validator info).
func (c *Client) GetNodeStatus(ctx context.Context) CallResult[NodeStatus] {
	return call[NodeStatus](ctx, c, "status", nil, c.policy, RetryTransient)
}

// GetLatestBlock returns a summary of the most recent block the node has committed.
func (c *Client) GetLatestBlock(ctx context.Context) CallResult[LatestBlock] {
	res := call[BlockResult](ctx, c, "block", nil, c.policy, RetryTransient)
	return mapResult(res, func(b BlockResult) LatestBlock {
		return LatestBlock{
			Hash:     b.BlockID.Hash,
			ChainID:  b.Block.Header.ChainID,
			Height:   int64(b.Block.Header.Height),
			Time:     b.Block.Header.Time,
			Proposer: b.Block.Header.ProposerAddress,
			NumTxs:   len(b.Block.Data.Txs),
			Raw:      b,
		}
	})
}

// QueryBalance asks the bank module for the balances of address.
func (c *Client) QueryBalance(ctx context.Context, address string) CallResult[Balance] {
	address = strings.TrimSpace(address)
	if address == "" {
		return invalidRequest[Balance]("address cannot be empty")
	}

	res := c.abciQuery(ctx, bankBalancesPath+address)
	return mapResult(res, func(r ABCIResponse) Balance {
		return Balance{
			Address: address,
			Denom:   c.endpoint.Denom,
			Found:   r.Code == 0 && len(r.Value) > 0,
			Height:  int64(r.Height),
			Value:   r.Value,
			Log:     r.Log,
		}
	})
}

// GetValidatorInfo asks the staking module for the validator record of address.
func (c *Client) GetValidatorInfo(ctx context.Context, address string) CallResult[ValidatorRecord] {
	address = strings.TrimSpace(address)
	if address == "" {
		return invalidRequest[ValidatorRecord]("validator address cannot be empty")
	}

	res := c.abciQuery(ctx, stakingValidatorPath+address)
	return mapResult(res, func(r ABCIResponse) ValidatorRecord {
		return ValidatorRecord{
			Address: address,
			Found:   r.Code == 0 && len(r.Value) > 0,
			Height:  int64(r.Height),
			Value:   r.Value,
			Log:     r.Log,
		}
	})
}

func (c *Client) abciQuery(ctx context.Context, path string) CallResult[ABCIResponse] {
	params := map[string]any{
		"path":  path,
		"data":  "",
		"prove": false,
	}
	res := call[abciQueryResult](ctx, c, "abci_query", params, c.policy, RetryTransient)
	return mapResult(res, func(r abciQueryResult) ABCIResponse { return r.Response })
}

// BroadcastTransaction submits signedTx with broadcast_tx_sync.
//
// Broadcasts are not idempotent, so the default policy does not apply: the call is
// retried at most once, and only when the connection was refused before anything
// was written. A timeout or cancellation after the request was written is reported
// as KindAmbiguousOutcome; the caller must check the transaction hash before
// resubmitting.
func (c *Client) BroadcastTransaction(ctx context.Context, signedTx []byte) CallResult[BroadcastResult] {
	if len(signedTx) == 0 {
		return invalidRequest[BroadcastResult]("signed transaction cannot be empty")
	}

	policy := c.policy
	if policy.MaxAttempts > 2 {
		policy.MaxAttempts = 2
	}
	params := map[string]any{"tx": base64.StdEncoding.EncodeToString(signedTx)}

	const method = "broadcast_tx_sync"
	res := execute[BroadcastResult](ctx, c, method, params, policy, retryUnsent)
	if res.Err != nil && res.Err.Sent && (res.Err.Kind == KindTimeout || res.Err.Kind == KindCanceled) {
		res.Err = &CallError{
			Kind:    KindAmbiguousOutcome,
			Message: "request was sent but no response arrived; the node may have accepted the transaction: " + res.Err.Message,
			Sent:    true,
			err:     res.Err,
		}
		c.metrics.observeAmbiguous()
		log.Warn().
			Int("attempts", res.Attempts).
			Msg("broadcast outcome is ambiguous")
	}
	res = record(c, method, res)
	if res.Success {
		log.Info().
			Str("hash", res.Payload.Hash).
			Uint32("code", res.Payload.Code).
			Bool("accepted", res.Payload.Accepted()).
			Msg("transaction broadcast")
	}
	return res
}

func retryUnsent(ce *CallError) bool {
	return ce.Kind == KindConnectionRefused && !ce.Sent
}
