// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
	"golang.org/x/crypto/ripemd160"
)

// opcodeEntry is a single slot of the dense, byte-indexed dispatch table
// calls for: "Script opcodes dispatch through a dense jump
// table indexed by byte; no virtual calls needed."
type opcodeEntry struct {
	value byte
	name string
	exec func(*parsedOpcode, *Engine) error
}

// opcodeArray is the 256-entry jump table. It is built once in init:
// every byte defaults to opInvalid, then the opcodes this engine
// recognizes overwrite their slot.
var opcodeArray [256]opcodeEntry

func init() {
	for i := 0; i < 256; i++ {
		opcodeArray[i] = opcodeEntry{value: byte(i), name: fmt.Sprintf("OP_UNKNOWN%d", i), exec: opInvalid}
	}

	for op := byte(OP_0); op <= OP_PUSHDATA4; op++ {
		set(op, "OP_PUSHDATA", opPushData)
	}
	set(OP_1NEGATE, "OP_1NEGATE", op1Negate)
	set(OP_RESERVED, "OP_RESERVED", opInvalid)
	for op := byte(OP_1); op <= OP_16; op++ {
		set(op, "OP_N", opN)
	}

	set(OP_NOP, "OP_NOP", opNop)
	set(OP_VER, "OP_VER", opInvalid)
	set(OP_IF, "OP_IF", opIf)
	set(OP_NOTIF, "OP_NOTIF", opNotIf)
	set(OP_VERIF, "OP_VERIF", opInvalid)
	set(OP_VERNOTIF, "OP_VERNOTIF", opInvalid)
	set(OP_ELSE, "OP_ELSE", opElse)
	set(OP_ENDIF, "OP_ENDIF", opEndIf)
	set(OP_VERIFY, "OP_VERIFY", opVerify)
	set(OP_RETURN, "OP_RETURN", opReturn)

	set(OP_TOALTSTACK, "OP_TOALTSTACK", opToAltStack)
	set(OP_FROMALTSTACK, "OP_FROMALTSTACK", opFromAltStack)
	set(OP_2DROP, "OP_2DROP", opDropN(2))
	set(OP_2DUP, "OP_2DUP", opDupN(2))
	set(OP_3DUP, "OP_3DUP", opDupN(3))
	set(OP_2OVER, "OP_2OVER", opOverN(2))
	set(OP_2ROT, "OP_2ROT", opRotN(2))
	set(OP_2SWAP, "OP_2SWAP", opSwapN(2))
	set(OP_IFDUP, "OP_IFDUP", opIfDup)
	set(OP_DEPTH, "OP_DEPTH", opDepth)
	set(OP_DROP, "OP_DROP", opDropN(1))
	set(OP_DUP, "OP_DUP", opDupN(1))
	set(OP_NIP, "OP_NIP", opNip)
	set(OP_OVER, "OP_OVER", opOverN(1))
	set(OP_PICK, "OP_PICK", opPick)
	set(OP_ROLL, "OP_ROLL", opRoll)
	set(OP_ROT, "OP_ROT", opRotN(1))
	set(OP_SWAP, "OP_SWAP", opSwapN(1))
	set(OP_TUCK, "OP_TUCK", opTuck)

	set(OP_SIZE, "OP_SIZE", opSize)

	set(OP_EQUAL, "OP_EQUAL", opEqual)
	set(OP_EQUALVERIFY, "OP_EQUALVERIFY", opEqualVerify)

	set(OP_1ADD, "OP_1ADD", opNumUnary(func(n scriptNum) scriptNum { return n + 1 }))
	set(OP_1SUB, "OP_1SUB", opNumUnary(func(n scriptNum) scriptNum { return n - 1 }))
	set(OP_NEGATE, "OP_NEGATE", opNumUnary(func(n scriptNum) scriptNum { return -n }))
	set(OP_ABS, "OP_ABS", opNumUnary(func(n scriptNum) scriptNum {
				if n < 0 {
					return -n
				}
				return n
	}))
	set(OP_NOT, "OP_NOT", opNumUnaryBool(func(n scriptNum) bool { return n == 0 }))
	set(OP_0NOTEQUAL, "OP_0NOTEQUAL", opNumUnaryBool(func(n scriptNum) bool { return n != 0 }))

	set(OP_ADD, "OP_ADD", opNumBinary(func(a, b scriptNum) scriptNum { return a + b }))
	set(OP_SUB, "OP_SUB", opNumBinary(func(a, b scriptNum) scriptNum { return a - b }))
	set(OP_BOOLAND, "OP_BOOLAND", opNumBinaryBool(func(a, b scriptNum) bool { return a != 0 && b != 0 }))
	set(OP_BOOLOR, "OP_BOOLOR", opNumBinaryBool(func(a, b scriptNum) bool { return a != 0 || b != 0 }))
	set(OP_NUMEQUAL, "OP_NUMEQUAL", opNumBinaryBool(func(a, b scriptNum) bool { return a == b }))
	set(OP_NUMEQUALVERIFY, "OP_NUMEQUALVERIFY", opNumEqualVerify)
	set(OP_NUMNOTEQUAL, "OP_NUMNOTEQUAL", opNumBinaryBool(func(a, b scriptNum) bool { return a != b }))
	set(OP_LESSTHAN, "OP_LESSTHAN", opNumBinaryBool(func(a, b scriptNum) bool { return a < b }))
	set(OP_GREATERTHAN, "OP_GREATERTHAN", opNumBinaryBool(func(a, b scriptNum) bool { return a > b }))
	set(OP_LESSTHANOREQUAL, "OP_LESSTHANOREQUAL", opNumBinaryBool(func(a, b scriptNum) bool { return a <= b }))
	set(OP_GREATERTHANOREQUAL, "OP_GREATERTHANOREQUAL", opNumBinaryBool(func(a, b scriptNum) bool { return a >= b }))
	set(OP_MIN, "OP_MIN", opNumBinary(func(a, b scriptNum) scriptNum {
				if a < b {
					return a
				}
				return b
	}))
	set(OP_MAX, "OP_MAX", opNumBinary(func(a, b scriptNum) scriptNum {
				if a > b {
					return a
				}
				return b
	}))
	set(OP_WITHIN, "OP_WITHIN", opWithin)

	set(OP_RIPEMD160, "OP_RIPEMD160", opHashUnary(func(b []byte) []byte {
				h := ripemd160.New()
				h.Write(b)
				return h.Sum(nil)
	}))
	set(OP_SHA1, "OP_SHA1", opHashUnary(func(b []byte) []byte {
				h := sha1.Sum(b)
				return h[:]
	}))
	set(OP_SHA256, "OP_SHA256", opHashUnary(func(b []byte) []byte {
				h := sha256.Sum256(b)
				return h[:]
	}))
	set(OP_HASH160, "OP_HASH160", opHashUnary(chainhash.Hash160))
	set(OP_HASH256, "OP_HASH256", opHashUnary(func(b []byte) []byte {
				h := chainhash.HashH(b)
				return h[:]
	}))
	set(OP_CODESEPARATOR, "OP_CODESEPARATOR", opCodeSeparator)
	set(OP_CHECKSIG, "OP_CHECKSIG", opCheckSig)
	set(OP_CHECKSIGVERIFY, "OP_CHECKSIGVERIFY", opCheckSigVerify)
	set(OP_CHECKMULTISIG, "OP_CHECKMULTISIG", opCheckMultiSig)
	set(OP_CHECKMULTISIGVERIFY, "OP_CHECKMULTISIGVERIFY", opCheckMultiSigVerify)

	set(OP_NOP1, "OP_NOP1", opDiscouragedNop)
	set(OP_CHECKLOCKTIMEVERIFY, "OP_CHECKLOCKTIMEVERIFY", opCheckLockTimeVerify)
	set(OP_CHECKSEQUENCEVERIFY, "OP_CHECKSEQUENCEVERIFY", opCheckSequenceVerify)
	for op := byte(OP_NOP4); op <= OP_NOP10; op++ {
		set(op, "OP_NOP", opDiscouragedNop)
	}
}

func set(op byte, name string, fn func(*parsedOpcode, *Engine) error) {
	opcodeArray[op] = opcodeEntry{value: op, name: name, exec: fn}
}

func opInvalid(pop *parsedOpcode, vm *Engine) error {
	return scriptError(ErrBadOpcode, fmt.Sprintf("attempt to execute reserved/unknown opcode %x", pop.opcode))
}

func opNop(pop *parsedOpcode, vm *Engine) error { return nil }

// opDiscouragedNop implements OP_NOP1 and OP_NOP4 through OP_NOP10: a
// no-op unless ScriptDiscourageUpgradableNops is set, in which case
// their use is rejected as reserved for future soft forks.
func opDiscouragedNop(pop *parsedOpcode, vm *Engine) error {
	if vm.flags.HasFlag(ScriptDiscourageUpgradableNops) {
		return scriptError(ErrDiscourageUpgradableNOPs,
			fmt.Sprintf("OP_NOP%d reserved for soft-fork upgrades", pop.opcode-OP_NOP1+1))
	}
	return nil
}

func opPushData(pop *parsedOpcode, vm *Engine) error {
	if vm.flags.HasFlag(ScriptVerifyMinimalData) && !isMinimalPush(pop) {
		return scriptError(ErrMinimalData, "push uses non-minimal encoding")
	}
	vm.dstack.PushByteArray(pop.data)
	return nil
}

// isMinimalPush reports whether pop's opcode is the shortest possible
// encoding for its data, per MINIMALDATA rule.
func isMinimalPush(pop *parsedOpcode) bool {
	data := pop.data
	op := pop.opcode
	switch {
	case len(data) == 0:
		return op == OP_0
	case len(data) == 1 && data[0] >= 1 && data[0] <= 16:
		return op == OP_1+data[0]-1
	case len(data) == 1 && data[0] == 0x81:
		return op == OP_1NEGATE
	case len(data) <= 75:
		return int(op) == len(data)
	case len(data) <= 255:
		return op == OP_PUSHDATA1
	case len(data) <= 65535:
		return op == OP_PUSHDATA2
	default:
		return op == OP_PUSHDATA4
	}
}

func op1Negate(pop *parsedOpcode, vm *Engine) error {
	vm.dstack.PushInt(scriptNum(-1))
	return nil
}

func opN(pop *parsedOpcode, vm *Engine) error {
	vm.dstack.PushInt(scriptNum(asSmallInt(pop.opcode)))
	return nil
}

func opIf(pop *parsedOpcode, vm *Engine) error { return evalBranch(pop, vm, false) }
func opNotIf(pop *parsedOpcode, vm *Engine) error { return evalBranch(pop, vm, true) }

func evalBranch(pop *parsedOpcode, vm *Engine, negate bool) error {
	cond := opCondFalse
	if vm.shouldExec() {
		value, err := vm.dstack.PopByteArray()
		if err != nil {
			return err
		}
		if vm.scriptVersion == SigVersionWitnessV0 && vm.flags.HasFlag(ScriptVerifyMinimalIf) {
			if len(value) > 1 || (len(value) == 1 && value[0] != 1) {
				return scriptError(ErrMinimalIf, "conditional operand must be minimally encoded")
			}
		}
		b := asBool(value)
		if negate {
			b = !b
		}
		if b {
			cond = opCondTrue
		}
	} else {
		cond = opCondSkip
	}
	vm.condStack = append(vm.condStack, cond)
	return nil
}

func opElse(pop *parsedOpcode, vm *Engine) error {
	if len(vm.condStack) == 0 {
		return scriptError(ErrUnbalancedConditional, "no matching OP_IF for OP_ELSE")
	}
	top := len(vm.condStack) - 1
	switch vm.condStack[top] {
	case opCondTrue:
		vm.condStack[top] = opCondFalse
	case opCondFalse:
		vm.condStack[top] = opCondTrue
	}
	return nil
}

func opEndIf(pop *parsedOpcode, vm *Engine) error {
	if len(vm.condStack) == 0 {
		return scriptError(ErrUnbalancedConditional, "no matching OP_IF for OP_ENDIF")
	}
	vm.condStack = vm.condStack[:len(vm.condStack)-1]
	return nil
}

func opVerify(pop *parsedOpcode, vm *Engine) error {
	v, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !v {
		return scriptError(ErrVerify, "OP_VERIFY failed")
	}
	return nil
}

func opReturn(pop *parsedOpcode, vm *Engine) error {
	return scriptError(ErrReturn, "OP_RETURN executed")
}

func opToAltStack(pop *parsedOpcode, vm *Engine) error {
	v, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	vm.astack.PushByteArray(v)
	return nil
}

func opFromAltStack(pop *parsedOpcode, vm *Engine) error {
	v, err := vm.astack.PopByteArray()
	if err != nil {
		return scriptError(ErrInvalidStackOperation, "alt stack is empty")
	}
	vm.dstack.PushByteArray(v)
	return nil
}

func opDropN(n int32) func(*parsedOpcode, *Engine) error {
	return func(pop *parsedOpcode, vm *Engine) error { return vm.dstack.DropN(n) }
}
func opDupN(n int32) func(*parsedOpcode, *Engine) error {
	return func(pop *parsedOpcode, vm *Engine) error { return vm.dstack.DupN(n) }
}
func opOverN(n int32) func(*parsedOpcode, *Engine) error {
	return func(pop *parsedOpcode, vm *Engine) error { return vm.dstack.OverN(n) }
}
func opRotN(n int32) func(*parsedOpcode, *Engine) error {
	return func(pop *parsedOpcode, vm *Engine) error { return vm.dstack.RotN(n) }
}
func opSwapN(n int32) func(*parsedOpcode, *Engine) error {
	return func(pop *parsedOpcode, vm *Engine) error { return vm.dstack.SwapN(n) }
}

func opIfDup(pop *parsedOpcode, vm *Engine) error {
	v, err := vm.dstack.PeekByteArray(0)
	if err != nil {
		return err
	}
	if asBool(v) {
		vm.dstack.PushByteArray(v)
	}
	return nil
}

func opDepth(pop *parsedOpcode, vm *Engine) error {
	vm.dstack.PushInt(scriptNum(vm.dstack.Depth()))
	return nil
}

func opNip(pop *parsedOpcode, vm *Engine) error { return vm.dstack.NipN(1) }

func opPick(pop *parsedOpcode, vm *Engine) error {
	n, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	return vm.dstack.PickN(int32(n))
}

func opRoll(pop *parsedOpcode, vm *Engine) error {
	n, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	return vm.dstack.RollN(int32(n))
}

func opTuck(pop *parsedOpcode, vm *Engine) error { return vm.dstack.Tuck() }

func opSize(pop *parsedOpcode, vm *Engine) error {
	v, err := vm.dstack.PeekByteArray(0)
	if err != nil {
		return err
	}
	vm.dstack.PushInt(scriptNum(len(v)))
	return nil
}

func opEqual(pop *parsedOpcode, vm *Engine) error {
	b, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	a, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	vm.dstack.PushBool(bytes.Equal(a, b))
	return nil
}

func opEqualVerify(pop *parsedOpcode, vm *Engine) error {
	if err := opEqual(pop, vm); err != nil {
		return err
	}
	v, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !v {
		return scriptError(ErrEqualVerify, "OP_EQUALVERIFY failed")
	}
	return nil
}

func opNumUnary(f func(scriptNum) scriptNum) func(*parsedOpcode, *Engine) error {
	return func(pop *parsedOpcode, vm *Engine) error {
		n, err := vm.dstack.PopInt()
		if err != nil {
			return err
		}
		vm.dstack.PushInt(f(n))
		return nil
	}
}

func opNumUnaryBool(f func(scriptNum) bool) func(*parsedOpcode, *Engine) error {
	return func(pop *parsedOpcode, vm *Engine) error {
		n, err := vm.dstack.PopInt()
		if err != nil {
			return err
		}
		vm.dstack.PushBool(f(n))
		return nil
	}
}

func opNumBinary(f func(a, b scriptNum) scriptNum) func(*parsedOpcode, *Engine) error {
	return func(pop *parsedOpcode, vm *Engine) error {
		b, err := vm.dstack.PopInt()
		if err != nil {
			return err
		}
		a, err := vm.dstack.PopInt()
		if err != nil {
			return err
		}
		vm.dstack.PushInt(f(a, b))
		return nil
	}
}

func opNumBinaryBool(f func(a, b scriptNum) bool) func(*parsedOpcode, *Engine) error {
	return func(pop *parsedOpcode, vm *Engine) error {
		b, err := vm.dstack.PopInt()
		if err != nil {
			return err
		}
		a, err := vm.dstack.PopInt()
		if err != nil {
			return err
		}
		vm.dstack.PushBool(f(a, b))
		return nil
	}
}

func opNumEqualVerify(pop *parsedOpcode, vm *Engine) error {
	b, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	a, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	if a != b {
		return scriptError(ErrNumEqualVerify, "OP_NUMEQUALVERIFY failed")
	}
	return nil
}

func opWithin(pop *parsedOpcode, vm *Engine) error {
	max, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	min, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	x, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	vm.dstack.PushBool(x >= min && x < max)
	return nil
}

func opHashUnary(f func([]byte) []byte) func(*parsedOpcode, *Engine) error {
	return func(pop *parsedOpcode, vm *Engine) error {
		v, err := vm.dstack.PopByteArray()
		if err != nil {
			return err
		}
		vm.dstack.PushByteArray(f(v))
		return nil
	}
}

func opCodeSeparator(pop *parsedOpcode, vm *Engine) error {
	vm.lastCodeSep = vm.opcodeIdx + 1
	return nil
}

func opCheckSig(pop *parsedOpcode, vm *Engine) error {
	valid, err := checkSig(vm)
	if err != nil {
		return err
	}
	vm.dstack.PushBool(valid)
	return nil
}

func opCheckSigVerify(pop *parsedOpcode, vm *Engine) error {
	valid, err := checkSig(vm)
	if err != nil {
		return err
	}
	if !valid {
		return scriptError(ErrCheckSigVerify, "OP_CHECKSIGVERIFY failed")
	}
	return nil
}

func checkSig(vm *Engine) (bool, error) {
	pubKeyBytes, err := vm.dstack.PopByteArray()
	if err != nil {
		return false, err
	}
	sigBytes, err := vm.dstack.PopByteArray()
	if err != nil {
		return false, err
	}
	return vm.verifySignature(sigBytes, pubKeyBytes, vm.subScript())
}

func opCheckMultiSig(pop *parsedOpcode, vm *Engine) error {
	valid, err := checkMultiSig(vm)
	if err != nil {
		return err
	}
	vm.dstack.PushBool(valid)
	return nil
}

func opCheckMultiSigVerify(pop *parsedOpcode, vm *Engine) error {
	valid, err := checkMultiSig(vm)
	if err != nil {
		return err
	}
	if !valid {
		return scriptError(ErrCheckMultisigVerify, "OP_CHECKMULTISIGVERIFY failed")
	}
	return nil
}

func checkMultiSig(vm *Engine) (bool, error) {
	numKeys, err := vm.dstack.PopInt()
	if err != nil {
		return false, err
	}
	n := int(numKeys)
	if n < 0 || n > MaxPubKeysPerMultiSig {
		return false, scriptError(ErrPubKeyCount, "number of pubkeys out of range")
	}
	vm.numOps += n
	if vm.numOps > MaxOpsPerScript {
		return false, scriptError(ErrOpCount, "exceeded max operation limit")
	}

	pubKeys := make([][]byte, n)
	for i := 0; i < n; i++ {
		pk, err := vm.dstack.PopByteArray()
		if err != nil {
			return false, err
		}
		pubKeys[i] = pk
	}

	numSigsVal, err := vm.dstack.PopInt()
	if err != nil {
		return false, err
	}
	m := int(numSigsVal)
	if m < 0 || m > n {
		return false, scriptError(ErrSigCount, "number of signatures out of range")
	}

	sigs := make([][]byte, m)
	for i := 0; i < m; i++ {
		sig, err := vm.dstack.PopByteArray()
		if err != nil {
			return false, err
		}
		sigs[i] = sig
	}

	// The well-known CHECKMULTISIG off-by-one bug consumes one extra
	// stack element; NULLDUMMY requires it to be empty.
	dummy, err := vm.dstack.PopByteArray()
	if err != nil {
		return false, err
	}
	if vm.flags.HasFlag(ScriptVerifyNullDummy) && len(dummy) != 0 {
		return false, scriptError(ErrSigNullDummy, "multisig dummy value is not empty")
	}

	subscript := vm.subScript()
	sigIdx, pubIdx := 0, 0
	for sigIdx < len(sigs) {
		if pubIdx >= len(pubKeys) {
			return false, nil
		}
		if len(sigs)-sigIdx > len(pubKeys)-pubIdx {
			return false, nil
		}
		valid, err := vm.verifySignature(sigs[sigIdx], pubKeys[pubIdx], subscript)
		if err != nil {
			return false, err
		}
		if valid {
			sigIdx++
		}
		pubIdx++
	}
	return sigIdx == len(sigs), nil
}

func opCheckLockTimeVerify(pop *parsedOpcode, vm *Engine) error {
	if !vm.flags.HasFlag(ScriptVerifyCheckLockTimeVerify) {
		return opDiscouragedNop(pop, vm)
	}

	lockTimeBytes, err := vm.dstack.PeekByteArray(0)
	if err != nil {
		return err
	}
	lockTime, err := makeScriptNum(lockTimeBytes, vm.flags.HasFlag(ScriptVerifyMinimalData), maxScriptNumLen)
	if err != nil {
		return err
	}
	if lockTime < 0 {
		return scriptError(ErrNegativeLockTime, "negative locktime")
	}

	txLockTime := scriptNum(vm.tx.LockTime)
	if (lockTime < lockTimeThreshold) != (txLockTime < lockTimeThreshold) {
		return scriptError(ErrUnsatisfiedLockTime, "locktime and transaction locktime types differ")
	}
	if lockTime > txLockTime {
		return scriptError(ErrUnsatisfiedLockTime, "locktime requirement not satisfied")
	}
	if vm.tx.TxIn[vm.txIdx].Sequence == wire.MaxTxInSequenceNum {
		return scriptError(ErrUnsatisfiedLockTime, "transaction input is finalized")
	}
	return nil
}

func opCheckSequenceVerify(pop *parsedOpcode, vm *Engine) error {
	if !vm.flags.HasFlag(ScriptVerifyCheckSequenceVerify) {
		return opDiscouragedNop(pop, vm)
	}

	seqBytes, err := vm.dstack.PeekByteArray(0)
	if err != nil {
		return err
	}
	sequence, err := makeScriptNum(seqBytes, vm.flags.HasFlag(ScriptVerifyMinimalData), maxScriptNumLen)
	if err != nil {
		return err
	}
	if sequence < 0 {
		return scriptError(ErrNegativeLockTime, "negative sequence")
	}
	if int64(sequence)&sequenceLockTimeDisabled != 0 {
		return nil
	}
	if vm.tx.Version < 2 {
		return scriptError(ErrUnsatisfiedLockTime, "transaction version does not support relative locktime")
	}

	txSequence := int64(vm.tx.TxIn[vm.txIdx].Sequence)
	if txSequence&sequenceLockTimeDisabled != 0 {
		return scriptError(ErrUnsatisfiedLockTime, "input sequence has the disable flag set")
	}

	const mask = sequenceLockTimeIsSeconds | sequenceLockTimeMask
	seqMasked := int64(sequence) & mask
	txSeqMasked := txSequence & mask
	if (seqMasked < sequenceLockTimeIsSeconds) != (txSeqMasked < sequenceLockTimeIsSeconds) {
		return scriptError(ErrUnsatisfiedLockTime, "sequence and input sequence types differ")
	}
	if seqMasked > txSeqMasked {
		return scriptError(ErrUnsatisfiedLockTime, "sequence requirement not satisfied")
	}
	return nil
}
