package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event is a decoded log emitted by the entry point.
type Event struct {
	Name        string                 `json:"ev"`
	Address     common.Address         `json:"address"`
	BlockNumber uint64                 `json:"block_number"`
	TxHash      common.Hash            `json:"tx_hash"`
	LogIndex    uint                   `json:"log_index"`
	Args        map[string]interface{} `json:"args"`
}

// InclusionRecord is produced once per operation after it is mined.
type InclusionRecord struct {
	RunID           string         `json:"run_id"`
	Identity        common.Address `json:"identity"`
	OperationHash   common.Hash    `json:"operation_hash"`
	TransactionHash common.Hash    `json:"transaction_hash"`
	BlockNumber     uint64         `json:"block_number"`
	GasUsed         uint64         `json:"gas_used"`
	PreBalance      *big.Int       `json:"pre_balance"`
	PostBalance     *big.Int       `json:"post_balance"`
	FeePaid         *big.Int       `json:"fee_paid"`
	Events          []Event        `json:"events"`
	EventsError     string         `json:"events_error,omitempty"`
	CounterBefore   string         `json:"counter_before,omitempty"`
	CounterAfter    string         `json:"counter_after,omitempty"`
	ExplorerLink    string         `json:"explorer_link,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ComputeFee returns pre - post exactly, in wei.
func ComputeFee(pre, post *big.Int) *big.Int {
	return new(big.Int).Sub(zeroIfNil(pre), zeroIfNil(post))
}

// FeeGwei renders FeePaid / 1e9 for display. Comparisons use FeePaid.
func (r *InclusionRecord) FeeGwei() string {
	if r.FeePaid == nil {
		return "unknown"
	}
	return FormatGwei(r.FeePaid)
}

// EventsFrom returns the events emitted by addr.
func (r *InclusionRecord) EventsFrom(addr common.Address) []Event {
	var out []Event
	for _, ev := range r.Events {
		if ev.Address == addr {
			out = append(out, ev)
		}
	}
	return out
}
