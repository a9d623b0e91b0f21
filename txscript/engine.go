// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// SigVersion identifies the signature-hashing rules a script executes
// under: the legacy pre-segwit rules, or BIP143 witness v0, where
// version is BASE (0) or WITNESS_V0 (1).
type SigVersion int

const (
	SigVersionBase SigVersion = iota
	SigVersionWitnessV0
)

const (
	// MaxScriptSize is the maximum allowed length of a raw script.
	MaxScriptSize = 10000

	// MaxScriptElementSize is the maximum allowed size, in bytes, of an
	// element pushed onto the stack, per limits.
	MaxScriptElementSize = 520

	// MaxStackSize is the maximum combined size, in items, of the data
	// and alt stacks.
	MaxStackSize = 1000

	// MaxOpsPerScript bounds the number of non-push opcodes (those
	// above OP_16) a single script may execute.
	MaxOpsPerScript = 201

	// MaxPubKeysPerMultiSig is the most public keys allowed in a single
	// CHECKMULTISIG.
	MaxPubKeysPerMultiSig = 20

	// payToWitnessPubKeyHashDataSize and payToWitnessScriptHashDataSize
	// are the program lengths for the two recognized witness v0
	// templates.
	payToWitnessPubKeyHashDataSize = 20
	payToWitnessScriptHashDataSize = 32

	// lockTimeThreshold is the point (in seconds since the Unix epoch)
	// at which a locktime/sequence value is interpreted as a timestamp
	// rather than a block height (LOCKTIME_THRESHOLD).
	lockTimeThreshold = 500000000

	// sequenceLockTimeDisabled, sequenceLockTimeIsSeconds, and
	// sequenceLockTimeMask decode a relative-locktime sequence field
	// per BIP68/BIP112.
	sequenceLockTimeDisabled = 1 << 31
	sequenceLockTimeIsSeconds = 1 << 22
	sequenceLockTimeMask = 0x0000ffff
)

// Engine is the virtual machine that executes the combined scriptSig,
// scriptPubKey, and (for segwit) witness stack of a single transaction
// input. It is stateless across calls: a fresh Engine is built for
// every verification.
type Engine struct {
	scriptSig []parsedOpcode
	scriptPubKey []parsedOpcode

	tx *wire.MsgTx
	txIdx int
	flags ScriptFlags

	sigCache *SigCache
	prevOutFetcher PrevOutputFetcher
	inputAmount int64

	dstack stack
	astack stack

	condStack []int
	numOps int

	scriptVersion SigVersion
	witness [][]byte

	lastCodeSep int
	script []parsedOpcode
	opcodeIdx int

	bip16 bool
	sigHashes *txSigHashes
}

const (
	// condStack values.
	opCondFalse = 0
	opCondTrue = 1
	opCondSkip = 2
)

// NewEngine returns an Engine configured to verify the idx'th input of
// tx, spending an output with the given scriptPubKey and amount. sigCache
// may be nil to disable signature-result caching.
func NewEngine(scriptPubKey []byte, tx *wire.MsgTx, idx int, flags ScriptFlags, amount int64, sigCache *SigCache, prevOutFetcher PrevOutputFetcher) (*Engine, error) {
	if idx >= len(tx.TxIn) {
		return nil, scriptError(ErrInvalidProgramCounter,
			fmt.Sprintf("transaction input index %d >= %d", idx, len(tx.TxIn)))
	}
	scriptSig := tx.TxIn[idx].SignatureScript
	if len(scriptSig) > MaxScriptSize || len(scriptPubKey) > MaxScriptSize {
		return nil, scriptError(ErrScriptTooLarge, "script too large")
	}

	sigScriptOps, err := tokenizeScript(scriptSig)
	if err != nil {
		return nil, err
	}
	pkScriptOps, err := tokenizeScript(scriptPubKey)
	if err != nil {
		return nil, err
	}

	vm := &Engine{
		scriptSig: sigScriptOps,
		scriptPubKey: pkScriptOps,
		tx: tx,
		txIdx: idx,
		flags: flags,
		sigCache: sigCache,
		prevOutFetcher: prevOutFetcher,
		inputAmount: amount,
		witness: tx.TxIn[idx].Witness,
	}
	vm.dstack.verifyMinimalData = flags.HasFlag(ScriptVerifyMinimalData)
	vm.astack.verifyMinimalData = flags.HasFlag(ScriptVerifyMinimalData)

	if flags.HasFlag(ScriptVerifySigPushOnly) {
		for _, pop := range sigScriptOps {
			if !pop.isPush() {
				return nil, scriptError(ErrSigPushOnly,
					"signature script is not push only")
			}
		}
	}

	return vm, nil
}

// Verify is the top-level entry point: it builds an Engine for the
// idx'th input of tx against scriptPubKey and runs it to completion.
func Verify(tx *wire.MsgTx, idx int, scriptPubKey []byte, amount int64, flags ScriptFlags, sigCache *SigCache, prevOutFetcher PrevOutputFetcher) error {
	vm, err := NewEngine(scriptPubKey, tx, idx, flags, amount, sigCache, prevOutFetcher)
	if err != nil {
		return err
	}
	return vm.Execute()
}

// Execute runs the combined scriptSig/scriptPubKey/witness program to
// completion, implementing the P2SH (BIP16) and witness v0 (BIP141/143)
// escalation rules.
func (vm *Engine) Execute() error {
	if err := vm.run(vm.scriptSig); err != nil {
		return err
	}

	savedStack := vm.dstack.stk
	vm.dstack.stk = append([][]byte(nil), savedStack...)

	if err := vm.run(vm.scriptPubKey); err != nil {
		return err
	}

	top, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !top {
		return scriptError(ErrEvalFalse, "script evaluated to false")
	}

	isP2SH := vm.flags.HasFlag(ScriptBip16) && isScriptHashTemplate(vm.scriptPubKey)
	isWitness, witVersion, witProgram := isWitnessTemplate(vm.scriptPubKey)

	switch {
	case isP2SH:
		vm.bip16 = true
		if len(savedStack) == 0 {
			return scriptError(ErrEvalFalse, "p2sh scriptSig pushed nothing")
		}
		redeemScript := savedStack[len(savedStack)-1]
		vm.dstack.stk = savedStack[:len(savedStack)-1]
		if err := vm.executeP2SHOrWitness(redeemScript); err != nil {
			return err
		}
	case isWitness:
		if err := vm.verifyWitnessProgram(witVersion, witProgram); err != nil {
			return err
		}
	default:
		if vm.flags.HasFlag(ScriptVerifyCleanStack) && vm.dstack.Depth() != 0 {
			return scriptError(ErrCleanStack, "stack is not clean after execution")
		}
	}

	return nil
}

// executeP2SHOrWitness evaluates redeemScript as the effective
// scriptPubKey under the original (pre-scriptPubKey) stack, re-checking
// for a witness template underneath (P2SH-wrapped segwit).
func (vm *Engine) executeP2SHOrWitness(redeemScript []byte) error {
	ops, err := tokenizeScript(redeemScript)
	if err != nil {
		return scriptError(ErrBadPush, "malformed p2sh redeem script")
	}
	for _, pop := range vm.scriptSig {
		if !pop.isPush() {
			return scriptError(ErrSigPushOnly, "p2sh scriptSig is not push only")
		}
	}

	if isWitness, witVersion, witProgram := isWitnessTemplate(ops); isWitness {
		if err := vm.verifyWitnessProgram(witVersion, witProgram); err != nil {
			return err
		}
		return nil
	}

	if err := vm.run(ops); err != nil {
		return err
	}
	top, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !top {
		return scriptError(ErrEvalFalse, "p2sh script evaluated to false")
	}
	if vm.flags.HasFlag(ScriptVerifyCleanStack) && vm.dstack.Depth() != 0 {
		return scriptError(ErrCleanStack, "stack is not clean after p2sh execution")
	}
	return nil
}

// verifyWitnessProgram implements the BIP141/BIP143 witness v0 rules:
// rebuild the scriptPubKey from the witness version and expand the
// final witness stack element as a script when it is a P2WSH program.
func (vm *Engine) verifyWitnessProgram(version int, program []byte) error {
	if !vm.flags.HasFlag(ScriptVerifyWitness) {
		return nil
	}
	if vm.bip16 && len(vm.scriptSig) != 1 {
		return scriptError(ErrWitnessMalleatedP2SH, "p2sh wrapped witness scriptSig is not a single push")
	}
	witness := vm.witness

	switch {
	case version == 0 && len(program) == payToWitnessPubKeyHashDataSize:
		if len(witness) != 2 {
			return scriptError(ErrWitnessProgramMismatch, "p2wpkh witness must have 2 items")
		}
		scriptCode := P2WPKHScriptCode(program)
		return vm.executeWitnessScript(scriptCode, witness)
	case version == 0 && len(program) == payToWitnessScriptHashDataSize:
		if len(witness) == 0 {
			return scriptError(ErrWitnessProgramEmpty, "p2wsh witness is empty")
		}
		witnessScript := witness[len(witness)-1]
		h := sha256.Sum256(witnessScript)
		if !bytes.Equal(h[:], program) {
			return scriptError(ErrWitnessProgramMismatch, "p2wsh witness script does not match program")
		}
		return vm.executeWitnessScript(witnessScript, witness[:len(witness)-1])
	case version == 0:
		return scriptError(ErrWitnessProgramWrongLength, "witness v0 program has invalid length")
	default:
		if vm.flags.HasFlag(ScriptVerifyDiscourageUpgradeableWitnessProgram) {
			return scriptError(ErrDiscourageUpgradableWitnessProgram,
				"new witness program versions are non-standard")
		}
		// Future witness versions succeed unconditionally, per BIP141.
		return nil
	}
}

// executeWitnessScript evaluates scriptCode under BIP143 sighash rules
// with the witness stack as the initial data stack.
func (vm *Engine) executeWitnessScript(scriptCode []byte, witnessStack [][]byte) error {
	ops, err := tokenizeScript(scriptCode)
	if err != nil {
		return scriptError(ErrBadPush, "malformed witness script")
	}
	for _, item := range witnessStack {
		if len(item) > MaxScriptElementSize {
			return scriptError(ErrPushSize, "witness item exceeds maximum size")
		}
	}

	sub := &Engine{
		tx: vm.tx,
		txIdx: vm.txIdx,
		flags: vm.flags,
		sigCache: vm.sigCache,
		prevOutFetcher: vm.prevOutFetcher,
		inputAmount: vm.inputAmount,
		witness: vm.witness,
		scriptVersion: SigVersionWitnessV0,
	}
	sub.dstack.verifyMinimalData = vm.flags.HasFlag(ScriptVerifyMinimalData)
	sub.astack.verifyMinimalData = vm.flags.HasFlag(ScriptVerifyMinimalData)
	sub.dstack.stk = append([][]byte(nil), witnessStack...)

	if err := sub.run(ops); err != nil {
		return err
	}
	top, err := sub.dstack.PopBool()
	if err != nil {
		return err
	}
	if !top {
		return scriptError(ErrEvalFalse, "witness script evaluated to false")
	}
	if sub.dstack.Depth() != 0 {
		return scriptError(ErrCleanStack, "stack is not clean after witness execution")
	}
	return nil
}

// run executes a single parsed script against the engine's current data
// and alt stacks, dispatching each opcode through the jump table.
func (vm *Engine) run(script []parsedOpcode) error {
	savedScript, savedIdx := vm.script, vm.opcodeIdx
	vm.script = script
	vm.condStack = vm.condStack[:0]
	vm.numOps = 0
	vm.lastCodeSep = 0

	for ip := 0; ip < len(script); ip++ {
		vm.opcodeIdx = ip
		pop := script[ip]

		executing := vm.shouldExec()

		if executing && disabledOpcodes[pop.opcode] {
			return scriptError(ErrDisabledOpcode,
				fmt.Sprintf("attempt to execute disabled opcode %x", pop.opcode))
		}

		if pop.opcode > OP_16 {
			vm.numOps++
			if vm.numOps > MaxOpsPerScript {
				return scriptError(ErrOpCount, "exceeded max operation limit")
			}
		}

		if pop.isPush() && len(pop.data) > MaxScriptElementSize {
			return scriptError(ErrPushSize, "element size exceeds max allowed size")
		}

		isBranch := pop.opcode == OP_IF || pop.opcode == OP_NOTIF ||
		pop.opcode == OP_ELSE || pop.opcode == OP_ENDIF

		if !executing && !isBranch {
			continue
		}

		if vm.dstack.Depth()+vm.astack.Depth() > MaxStackSize {
			return scriptError(ErrStackSize, "combined stack size exceeds max allowed size")
		}

		if err := vm.executeOpcode(&pop); err != nil {
			return err
		}
	}

	if len(vm.condStack) != 0 {
		return scriptError(ErrUnbalancedConditional, "end of script reached in conditional execution")
	}

	vm.script, vm.opcodeIdx = savedScript, savedIdx
	return nil
}

// shouldExec reports whether the opcode at the current conditional
// nesting depth should actually execute its effect.
func (vm *Engine) shouldExec() bool {
	for _, c := range vm.condStack {
		if c != opCondTrue {
			return false
		}
	}
	return true
}

// executeOpcode dispatches a single opcode through opcodeArray.
func (vm *Engine) executeOpcode(pop *parsedOpcode) error {
	op := opcodeArray[pop.opcode]
	return op.exec(pop, vm)
}

// subScript returns the portion of the currently executing script
// following the most recent OP_CODESEPARATOR, the "current subscript"
// signed by legacy CHECKSIG/CHECKMULTISIG.
func (vm *Engine) subScript() []byte {
	var buf bytes.Buffer
	for _, pop := range vm.script[vm.lastCodeSep:] {
		buf.Write(reencodeOpcode(pop))
	}
	return buf.Bytes()
}

// isScriptHashTemplate reports whether ops is the canonical P2SH
// template: HASH160 <20> EQUAL.
func isScriptHashTemplate(ops []parsedOpcode) bool {
	return len(ops) == 3 &&
	ops[0].opcode == OP_HASH160 &&
	ops[1].opcode == OP_DATA_20 &&
	ops[2].opcode == OP_EQUAL
}

// isWitnessTemplate reports whether ops is a well-formed witness program
// template (a single small-int push opcode followed by a single data
// push of 2 to 40 bytes), returning the encoded version and program.
func isWitnessTemplate(ops []parsedOpcode) (ok bool, version int, program []byte) {
	if len(ops) != 2 {
		return false, 0, nil
	}
	if !isSmallInt(ops[0].opcode) {
		return false, 0, nil
	}
	if ops[1].opcode < OP_DATA_1 || ops[1].opcode > OP_DATA_75 {
		return false, 0, nil
	}
	if len(ops[1].data) < 2 || len(ops[1].data) > 40 {
		return false, 0, nil
	}
	return true, asSmallInt(ops[0].opcode), ops[1].data
}

// checkPubKeyEncoding enforces strict public key encoding (STRICTENC) and
// the compressed-only requirement used by WITNESS_PUBKEYTYPE.
func (vm *Engine) checkPubKeyEncoding(pubKey []byte) error {
	if vm.flags.HasFlag(ScriptVerifyWitnessPubKeyType) &&
	vm.scriptVersion == SigVersionWitnessV0 && !isCompressedPubKey(pubKey) {
		return scriptError(ErrWitnessPubKeyType, "only compressed keys are accepted in segwit")
	}
	if !vm.flags.HasFlag(ScriptVerifyStrictEncoding) {
		return nil
	}
	if !isValidPubKeyEncoding(pubKey) {
		return scriptError(ErrPubKeyCount, "unsupported public key encoding")
	}
	return nil
}

func isCompressedPubKey(pubKey []byte) bool {
	return len(pubKey) == 33 && (pubKey[0] == 0x02 || pubKey[0] == 0x03)
}

// checkSignatureEncoding enforces the DERSIG/LOW_S/STRICTENC encoding
// rules on sig (hash type byte included), returning an error on the
// first rule it breaks.
func (vm *Engine) checkSignatureEncoding(sig []byte) error {
	if len(sig) == 0 {
		return nil
	}
	hashType := SigHashType(sig[len(sig)-1])
	body := sig[:len(sig)-1]

	if vm.flags.HasFlag(ScriptVerifyDERSignatures) ||
	vm.flags.HasFlag(ScriptVerifyLowS) ||
	vm.flags.HasFlag(ScriptVerifyStrictEncoding) {
		if err := checkCanonicalSignature(body); err != nil {
			return err
		}
	}
	if vm.flags.HasFlag(ScriptVerifyLowS) {
		parsed, err := ecdsa.ParseDERSignature(body)
		if err != nil {
			return scriptError(ErrSigDER, "malformed signature")
		}
		if !isLowS(parsed) {
			return scriptError(ErrSigHighS, "signature s value exceeds half the group order")
		}
	}
	if vm.flags.HasFlag(ScriptVerifyStrictEncoding) {
		switch hashType &^ SigHashAnyOneCanPay {
		case SigHashAll, SigHashNone, SigHashSingle:
		default:
			return scriptError(ErrSigHashType, "invalid hash type")
		}
	}
	return nil
}

// checkCanonicalSignature enforces strict DER encoding independent of
// the low-S requirement, by attempting a strict parse.
func checkCanonicalSignature(sig []byte) error {
	if _, err := ecdsa.ParseDERSignature(sig); err != nil {
		return scriptError(ErrSigDER, "signature is not strict DER encoded")
	}
	return nil
}

// isLowS reports whether sig's S component is at most half the group
// order, the malleability-resistant form required by BIP62/LOW_S.
func isLowS(sig *ecdsa.Signature) bool {
	return !sig.S().IsOverHalfOrder()
}

// verifySignature checks a single ECDSA signature/pubkey pair against
// the appropriate sighash for vm's current script version, consulting
// and populating the signature cache when available.
func (vm *Engine) verifySignature(sigBytes, pubKeyBytes []byte, subscript []byte) (bool, error) {
	if len(sigBytes) == 0 {
		return false, nil
	}
	hashType := SigHashType(sigBytes[len(sigBytes)-1])
	rawSig := sigBytes[:len(sigBytes)-1]

	if err := vm.checkSignatureEncoding(sigBytes); err != nil {
		return false, err
	}
	if err := vm.checkPubKeyEncoding(pubKeyBytes); err != nil {
		return false, err
	}

	pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		if vm.flags.HasFlag(ScriptVerifyStrictEncoding) {
			return false, scriptError(ErrPubKeyCount, "invalid public key")
		}
		return false, nil
	}
	sig, err := ecdsa.ParseDERSignature(rawSig)
	if err != nil {
		if vm.flags.HasFlag(ScriptVerifyStrictEncoding) || vm.flags.HasFlag(ScriptVerifyDERSignatures) {
			return false, scriptError(ErrSigDER, "invalid signature")
		}
		return false, nil
	}

	var sigHash []byte
	if vm.scriptVersion == SigVersionWitnessV0 {
		if vm.sigHashes == nil {
			vm.sigHashes = newTxSigHashes(vm.tx)
		}
		sigHash, err = CalcWitnessSigHash(subscript, vm.sigHashes, hashType, vm.tx, vm.txIdx, vm.inputAmount)
	} else {
		sigHash, err = CalcSignatureHash(subscript, hashType, vm.tx, vm.txIdx)
	}
	if err != nil {
		return false, err
	}

	var hashArr chainhash.Hash
	copy(hashArr[:], sigHash)
	if vm.sigCache != nil && vm.sigCache.Exists(hashArr, sig, pubKey) {
		return true, nil
	}

	valid := sig.Verify(sigHash, pubKey)
	if valid && vm.sigCache != nil {
		vm.sigCache.Add(hashArr, sig, pubKey, vm.tx)
	}
	return valid, nil
}
