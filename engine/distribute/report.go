package distribute

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the outcome of one transfer.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Result is the outcome of the transfer to one recipient.
type Result struct {
	Recipient common.Address `json:"recipient"`
	Status    Status         `json:"status"`
	// TxHash is set once a transaction was signed and submitted, even when the node rejected it
	// or it later failed. After a rejection it is the hash of the last attempt.
	TxHash   *common.Hash `json:"txHash,omitempty"`
	Nonce    *uint64      `json:"nonce,omitempty"`
	Attempts uint         `json:"attempts"`
	Error    string       `json:"error,omitempty"`

	Err error `json:"-"`
}

// Report summarizes a distribution run. Every failed recipient is listed with its error so that
// the run can be reconciled.
type Report struct {
	RunID      string         `json:"runId"`
	Chain      string         `json:"chain"`
	Token      common.Address `json:"token"`
	Amount     string         `json:"amount"`
	Units      string         `json:"units"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Attempted  int            `json:"attempted"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Results    []Result       `json:"results"`
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	r.Attempted++
	if res.Status == StatusConfirmed {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

// FailedResults returns the results of the recipients that did not receive their tokens.
func (r *Report) FailedResults() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			failed = append(failed, res)
		}
	}

	return failed
}

// WriteJSON writes the report to path as indented JSON.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}

	return nil
}
