// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import "fmt"

// ErrorCode identifies a specific consensus rule violation, matching the
// Verify error taxonomy of.
type ErrorCode int

const (
	ErrDuplicateBlock ErrorCode = iota
	ErrMissingParent
	ErrBadPOW
	ErrBadDifficultyBits
	ErrTimeTooOld
	ErrTimeTooNew
	ErrBadMerkleRoot
	ErrBadWitnessCommitment
	ErrBlockTooBig
	ErrBlockWeightTooHigh
	ErrNoTransactions
	ErrFirstTxNotCoinbase
	ErrMultipleCoinbases
	ErrBadCoinbaseScriptLen
	ErrMissingTxOut
	ErrImmatureSpend
	ErrSpendTooHigh
	ErrTooManySigOps
	ErrScriptValidation
	ErrDuplicateTx
	ErrCheckpointMismatch
	ErrForkTooOld
	ErrBadBlockHeight
	ErrInvalidAncestor
	ErrOverwriteTx
	ErrNoTxInputs
	ErrNoTxOutputs
	ErrBadTxOutValue
	ErrDuplicateTxInputs
	ErrBadTxInput
)

var errorCodeStrings = map[ErrorCode]string{
	ErrDuplicateBlock: "ErrDuplicateBlock",
	ErrMissingParent: "ErrMissingParent",
	ErrBadPOW: "ErrBadPOW",
	ErrBadDifficultyBits: "ErrBadDifficultyBits",
	ErrTimeTooOld: "ErrTimeTooOld",
	ErrTimeTooNew: "ErrTimeTooNew",
	ErrBadMerkleRoot: "ErrBadMerkleRoot",
	ErrBadWitnessCommitment: "ErrBadWitnessCommitment",
	ErrBlockTooBig: "ErrBlockTooBig",
	ErrBlockWeightTooHigh: "ErrBlockWeightTooHigh",
	ErrNoTransactions: "ErrNoTransactions",
	ErrFirstTxNotCoinbase: "ErrFirstTxNotCoinbase",
	ErrMultipleCoinbases: "ErrMultipleCoinbases",
	ErrBadCoinbaseScriptLen: "ErrBadCoinbaseScriptLen",
	ErrMissingTxOut: "ErrMissingTxOut",
	ErrImmatureSpend: "ErrImmatureSpend",
	ErrSpendTooHigh: "ErrSpendTooHigh",
	ErrTooManySigOps: "ErrTooManySigOps",
	ErrScriptValidation: "ErrScriptValidation",
	ErrDuplicateTx: "ErrDuplicateTx",
	ErrCheckpointMismatch: "ErrCheckpointMismatch",
	ErrForkTooOld: "ErrForkTooOld",
	ErrBadBlockHeight: "ErrBadBlockHeight",
	ErrInvalidAncestor: "ErrInvalidAncestor",
	ErrOverwriteTx: "ErrOverwriteTx",
	ErrNoTxInputs: "ErrNoTxInputs",
	ErrNoTxOutputs: "ErrNoTxOutputs",
	ErrBadTxOutValue: "ErrBadTxOutValue",
	ErrDuplicateTxInputs: "ErrDuplicateTxInputs",
	ErrBadTxInput: "ErrBadTxInput",
}

func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(e))
}

// RuleError carries a consensus error, its misbehavior Score, and the
// block hash it was raised against, matching Verify error
// shape: {code, reason, score, hash, height}.
type RuleError struct {
	ErrorCode ErrorCode
	Description string
	Hash [32]byte
	Height int32

	// Score is the misbehavior increment a source peer should receive
	// for having relayed the offending block, in [-1, 100]. -1
	// suppresses the outgoing reject packet entirely.
	Score int
}

func (e RuleError) Error() string { return e.Description }

func ruleError(c ErrorCode, score int, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc, Score: score}
}

// IsErrorCode reports whether err is a RuleError of code c.
func IsErrorCode(err error, c ErrorCode) bool {
	rerr, ok := err.(RuleError)
	return ok && rerr.ErrorCode == c
}
