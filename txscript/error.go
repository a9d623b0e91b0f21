// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import "fmt"

// ErrorCode identifies a category of script failure, matching the
// tagged error-variant taxonomy a script verifier must surface.
type ErrorCode int

const (
	ErrInternal ErrorCode = iota
	ErrBadOpcode
	ErrDisabledOpcode
	ErrStackUnderflow
	ErrInvalidStackOperation
	ErrBadPush
	ErrMinimalData
	ErrPushSize
	ErrOpCount
	ErrEqualVerify
	ErrNumEqualVerify
	ErrCheckSigVerify
	ErrCheckMultisigVerify
	ErrStackSize
	ErrSigCount
	ErrPubKeyCount
	ErrSigPushOnly
	ErrSigDER
	ErrSigHashType
	ErrSigHighS
	ErrSigNullDummy
	ErrWitnessProgramMismatch
	ErrWitnessProgramEmpty
	ErrWitnessProgramWrongLength
	ErrWitnessMalleated
	ErrWitnessMalleatedP2SH
	ErrWitnessUnexpected
	ErrMinimalIf
	ErrDiscourageUpgradableNOPs
	ErrDiscourageUpgradableWitnessProgram
	ErrCleanStack
	ErrNegativeLockTime
	ErrUnsatisfiedLockTime
	ErrScriptTooLarge
	ErrNullFail
	ErrVerify
	ErrReturn
	ErrInvalidProgramCounter
	ErrUnbalancedConditional
	ErrEvalFalse
	ErrWitnessPubKeyType
	ErrTooManyRequiredSigs
	ErrNumberTooBig
)

var errorCodeStrings = map[ErrorCode]string{
	ErrInternal:                           "ErrInternal",
	ErrBadOpcode:                          "ErrBadOpcode",
	ErrDisabledOpcode:                     "ErrDisabledOpcode",
	ErrStackUnderflow:                     "ErrStackUnderflow",
	ErrInvalidStackOperation:              "ErrInvalidStackOperation",
	ErrBadPush:                            "ErrBadPush",
	ErrMinimalData:                        "ErrMinimalData",
	ErrPushSize:                           "ErrPushSize",
	ErrOpCount:                            "ErrOpCount",
	ErrEqualVerify:                        "ErrEqualVerify",
	ErrNumEqualVerify:                     "ErrNumEqualVerify",
	ErrCheckSigVerify:                     "ErrCheckSigVerify",
	ErrCheckMultisigVerify:                "ErrCheckMultisigVerify",
	ErrStackSize:                          "ErrStackSize",
	ErrSigCount:                           "ErrSigCount",
	ErrPubKeyCount:                        "ErrPubKeyCount",
	ErrSigPushOnly:                        "ErrSigPushOnly",
	ErrSigDER:                             "ErrSigDER",
	ErrSigHashType:                        "ErrSigHashType",
	ErrSigHighS:                           "ErrSigHighS",
	ErrSigNullDummy:                       "ErrSigNullDummy",
	ErrWitnessProgramMismatch:             "ErrWitnessProgramMismatch",
	ErrWitnessProgramEmpty:                "ErrWitnessProgramEmpty",
	ErrWitnessProgramWrongLength:          "ErrWitnessProgramWrongLength",
	ErrWitnessMalleated:                   "ErrWitnessMalleated",
	ErrWitnessMalleatedP2SH:               "ErrWitnessMalleatedP2SH",
	ErrWitnessUnexpected:                  "ErrWitnessUnexpected",
	ErrMinimalIf:                          "ErrMinimalIf",
	ErrDiscourageUpgradableNOPs:           "ErrDiscourageUpgradableNOPs",
	ErrDiscourageUpgradableWitnessProgram: "ErrDiscourageUpgradableWitnessProgram",
	ErrCleanStack:                         "ErrCleanStack",
	ErrNegativeLockTime:                   "ErrNegativeLockTime",
	ErrUnsatisfiedLockTime:                "ErrUnsatisfiedLockTime",
	ErrScriptTooLarge:                     "ErrScriptTooLarge",
	ErrNullFail:                           "ErrNullFail",
	ErrVerify:                             "ErrVerify",
	ErrReturn:                             "ErrReturn",
	ErrInvalidProgramCounter:              "ErrInvalidProgramCounter",
	ErrUnbalancedConditional:              "ErrUnbalancedConditional",
	ErrEvalFalse:                          "ErrEvalFalse",
	ErrWitnessPubKeyType:                  "ErrWitnessPubKeyType",
	ErrTooManyRequiredSigs:                "ErrTooManyRequiredSigs",
	ErrNumberTooBig:                       "ErrNumberTooBig",
}

func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(e))
}

// Error satisfies the error interface and carries an ErrorCode so
// callers can discriminate failure categories without string matching.
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

func (e Error) Error() string {
	return e.Description
}

func scriptError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode reports whether err is a script Error of code c.
func IsErrorCode(err error, c ErrorCode) bool {
	serr, ok := err.(Error)
	return ok && serr.ErrorCode == c
}
