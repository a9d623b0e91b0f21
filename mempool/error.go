// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import "fmt"

// RejectCode identifies why a transaction was refused admission,
// matching the reject code taxonomy assigns to mempool
// rejections: malformed, invalid, obsolete, duplicate, nonstandard,
// dust, insufficientfee, checkpoint.
type RejectCode int

const (
	RejectMalformed RejectCode = iota
	RejectInvalid
	RejectObsolete
	RejectDuplicate
	RejectNonstandard
	RejectDust
	RejectInsufficientFee
	RejectCheckpoint
)

var rejectCodeStrings = map[RejectCode]string{
	RejectMalformed: "malformed",
	RejectInvalid: "invalid",
	RejectObsolete: "obsolete",
	RejectDuplicate: "duplicate",
	RejectNonstandard: "nonstandard",
	RejectDust: "dust",
	RejectInsufficientFee: "insufficientfee",
	RejectCheckpoint: "checkpoint",
}

func (c RejectCode) String() string {
	if s, ok := rejectCodeStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("RejectCode(%d)", int(c))
}

// TxRuleError carries a mempool admission rejection, its reject code
// and the misbehavior Score a source peer should receive, matching
// Verify error shape: {code, reason, score, hash, height}.
type TxRuleError struct {
	RejectCode RejectCode
	Description string
	Hash [32]byte

	// Score is the misbehavior increment a source peer should receive
	// for having relayed the offending transaction, in [-1, 100]. -1
	// suppresses the outgoing reject packet entirely.
	Score int
}

func (e TxRuleError) Error() string { return e.Description }

func txRuleError(c RejectCode, score int, desc string) TxRuleError {
	return TxRuleError{RejectCode: c, Description: desc, Score: score}
}

// IsRejectCode reports whether err is a TxRuleError of code c.
func IsRejectCode(err error, c RejectCode) bool {
	rerr, ok := err.(TxRuleError)
	return ok && rerr.RejectCode == c
}
