// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

// ScriptFlags is a bitmask of flags that modify the behavior of script
// execution and verification, matching the flag set 
// requires the verifier to honor.
type ScriptFlags uint32

const (
	// ScriptBip16 defines whether the bip16 threshold has passed and
	// thus pay-to-script-hash transactions will be fully validated.
	ScriptBip16 ScriptFlags = 1 << iota

	// ScriptVerifyNullDummy defines whether to verify the stack item
	// used by CHECKMULTISIG is an empty byte array.
	ScriptVerifyNullDummy

	// ScriptVerifyDERSignatures defines that signatures are required
	// to compliant with the DER format.
	ScriptVerifyDERSignatures

	// ScriptVerifyLowS defines that signatures are required to comply
	// with the low S component requirement.
	ScriptVerifyLowS

	// ScriptVerifySigPushOnly defines whether a signature script is
	// limited to only push data.
	ScriptVerifySigPushOnly

	// ScriptVerifyMinimalData defines that a minimal push must be used
	// for all data elements pushed onto the stack.
	ScriptVerifyMinimalData

	// ScriptVerifyStrictEncoding defines that signature scripts and
	// public keys must follow the strict encoding requirements.
	ScriptVerifyStrictEncoding

	// ScriptDiscourageUpgradableNops defines whether to verify the
	// NOP1 through NOP10 opcodes are reserved for future soft-fork
	// upgrades and that their use in a script is an error.
	ScriptDiscourageUpgradableNops

	// ScriptVerifyCleanStack defines that the stack must contain only
	// one stack element after evaluation and that the element must be
	// true.
	ScriptVerifyCleanStack

	// ScriptVerifyCheckLockTimeVerify defines whether to allow
	// execution of OP_CHECKLOCKTIMEVERIFY (BIP65).
	ScriptVerifyCheckLockTimeVerify

	// ScriptVerifyCheckSequenceVerify defines whether to allow
	// execution of OP_CHECKSEQUENCEVERIFY (BIP112).
	ScriptVerifyCheckSequenceVerify

	// ScriptVerifyWitness defines whether or not to verify a
	// transaction output using the witness program template defined
	// in BIP141.
	ScriptVerifyWitness

	// ScriptVerifyDiscourageUpgradeableWitnessProgram makes witness
	// program versions 2-16 non-standard.
	ScriptVerifyDiscourageUpgradeableWitnessProgram

	// ScriptVerifyMinimalIf makes a script with an OP_IF/OP_NOTIF
	// whose operand is anything other than empty vector or {0x01}
	// non-standard.
	ScriptVerifyMinimalIf

	// ScriptVerifyWitnessPubKeyType makes a script within a check-sig
	// operation whose public key isn't serialized in a compressed
	// format non-standard.
	ScriptVerifyWitnessPubKeyType

	// ScriptVerifyTaprootSpend is reserved for a future segwit v1
	// soft fork; no SPEC_FULL.md component requests it and it is not
	// exercised here.
	ScriptVerifyTaprootSpend
)

// StandardVerifyFlags is the set of flags used when verifying that a
// transaction meets standard relay-policy rules, layered on top of the
// strict consensus flags.
const StandardVerifyFlags = ScriptBip16 |
	ScriptVerifyDERSignatures |
	ScriptVerifyLowS |
	ScriptVerifyNullDummy |
	ScriptVerifySigPushOnly |
	ScriptVerifyMinimalData |
	ScriptVerifyStrictEncoding |
	ScriptDiscourageUpgradableNops |
	ScriptVerifyCleanStack |
	ScriptVerifyCheckLockTimeVerify |
	ScriptVerifyCheckSequenceVerify |
	ScriptVerifyWitness |
	ScriptVerifyDiscourageUpgradeableWitnessProgram |
	ScriptVerifyMinimalIf |
	ScriptVerifyWitnessPubKeyType

// StandardFlags is an alias kept for callers that name the flag set
// after its role rather than its derivation.
const StandardFlags = StandardVerifyFlags

// MandatoryVerifyFlags is the minimal flag set every block-validating
// script execution must honor regardless of relay policy. A mempool
// admission that fails under StandardVerifyFlags is re-run under this
// set (step 9) to tell a "non-mandatory-script-verify-flag"
// policy rejection apart from a hard consensus failure.
const MandatoryVerifyFlags = ScriptBip16 | ScriptVerifyWitness

// HasFlag reports whether f is set within flags.
func (flags ScriptFlags) HasFlag(f ScriptFlags) bool {
	return flags&f == f
}
