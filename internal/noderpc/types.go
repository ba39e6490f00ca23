package noderpc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Int64String handles fields the node encodes either as a number or as a decimal string.
type Int64String int64

// UnmarshalJSON accepts numbers (e.g. 12345) or strings ("12345").
func (h *Int64String) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*h = 0
		return nil
	}

	var s string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		*h = 0
		return nil
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid decimal integer: %s", s)
	}
	*h = Int64String(v)
	return nil
}

func (h Int64String) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(h), 10))), nil
}

// rpcRequest is the JSON-RPC 2.0 envelope sent to the node.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type NodeStatus struct {
	NodeInfo      NodeInfo      `json:"node_info"`
	SyncInfo      SyncInfo      `json:"sync_info"`
	ValidatorInfo ValidatorInfo `json:"validator_info"`
}

type NodeInfo struct {
	ID      string `json:"id"`
	Network string `json:"network"`
	Version string `json:"version"`
	Moniker string `json:"moniker"`
}

type SyncInfo struct {
	LatestBlockHash   string      `json:"latest_block_hash"`
	LatestBlockHeight Int64String `json:"latest_block_height"`
	LatestBlockTime   time.Time   `json:"latest_block_time"`
	CatchingUp        bool        `json:"catching_up"`
}

type ValidatorInfo struct {
	Address     string      `json:"address"`
	VotingPower Int64String `json:"voting_power"`
}

type BlockResult struct {
	BlockID BlockID `json:"block_id"`
	Block   Block   `json:"block"`
}

type BlockID struct {
	Hash string `json:"hash"`
}

type Block struct {
	Header BlockHeader `json:"header"`
	Data   BlockData   `json:"data"`
}

type BlockHeader struct {
	ChainID         string      `json:"chain_id"`
	Height          Int64String `json:"height"`
	Time            time.Time   `json:"time"`
	ProposerAddress string      `json:"proposer_address"`
}

type BlockData struct {
	Txs []string `json:"txs"`
}

// LatestBlock is the summary returned by GetLatestBlock.
type LatestBlock struct {
	Hash     string      `json:"hash"`
	ChainID  string      `json:"chain_id"`
	Height   int64       `json:"height"`
	Time     time.Time   `json:"time"`
	Proposer string      `json:"proposer"`
	NumTxs   int         `json:"num_txs"`
	Raw      BlockResult `json:"raw"`
}

type abciQueryResult struct {
	Response ABCIResponse `json:"response"`
}

// ABCIResponse is the node's answer to an abci_query. Value is base64 on the wire.
type ABCIResponse struct {
	Code      uint32      `json:"code"`
	Log       string      `json:"log"`
	Info      string      `json:"info"`
	Key       []byte      `json:"key"`
	Value     []byte      `json:"value"`
	Height    Int64String `json:"height"`
	Codespace string      `json:"codespace"`
}

// Balance is the raw bank balance answer for an address.
type Balance struct {
	Address string `json:"address"`
	Denom   string `json:"denom"`
	Found   bool   `json:"found"`
	Height  int64  `json:"height"`
	// Value is the undecoded query payload; the client does not interpret it.
	Value []byte `json:"value"`
	Log   string `json:"log,omitempty"`
}

// ValidatorRecord is the raw staking answer for a validator address.
type ValidatorRecord struct {
	Address string `json:"address"`
	Found   bool   `json:"found"`
	Height  int64  `json:"height"`
	Value   []byte `json:"value"`
	Log     string `json:"log,omitempty"`
}

// BroadcastResult is the node's broadcast_tx_sync answer. Code 0 means CheckTx accepted it.
type BroadcastResult struct {
	Code      uint32 `json:"code"`
	Data      string `json:"data"`
	Log       string `json:"log"`
	Codespace string `json:"codespace"`
	Hash      string `json:"hash"`
}

// Accepted reports whether the node admitted the transaction to its mempool.
func (b BroadcastResult) Accepted() bool { return b.Code == 0 }
