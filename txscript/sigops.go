// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

// GetSigOpCount returns the number of signature operations script
// spends, counting every CHECKSIG/CHECKSIGVERIFY as one and every
// CHECKMULTISIG/CHECKMULTISIGVERIFY as the number of public keys it
// references when immediately preceded by a small-integer push, or the
// historical worst case of 20 otherwise. Used for the per-block sigops
// cost limit of.
func GetSigOpCount(script []byte) int {
	ops, err := tokenizeScript(script)
	if err != nil {
		return 0
	}
	return countSigOps(ops, true)
}

func countSigOps(ops []parsedOpcode, precise bool) int {
	count := 0
	lastOp := byte(OP_INVALIDOPCODE)
	for _, pop := range ops {
		switch pop.opcode {
		case OP_CHECKSIG, OP_CHECKSIGVERIFY:
			count++
		case OP_CHECKMULTISIG, OP_CHECKMULTISIGVERIFY:
			if precise && lastOp >= OP_1 && lastOp <= OP_16 {
				count += asSmallInt(lastOp)
			} else {
				count += MaxPubKeysPerMultiSig
			}
		}
		lastOp = pop.opcode
	}
	return count
}

// GetP2SHSigOpCount returns the sigop count of a P2SH redeem script
// pulled from scriptSig's final push, or 0 if scriptSig is malformed or
// not push-only. When scriptPubKey isn't P2SH it returns the legacy
// sigop count of scriptPubKey itself.
func GetP2SHSigOpCount(scriptSig, scriptPubKey []byte) int {
	if !IsScriptHashScript(scriptPubKey) {
		return GetSigOpCount(scriptPubKey)
	}

	sigOps, err := tokenizeScript(scriptSig)
	if err != nil || len(sigOps) == 0 {
		return 0
	}
	for _, pop := range sigOps {
		if !pop.isPush() {
			return 0
		}
	}
	redeemScript := sigOps[len(sigOps)-1].data
	return GetSigOpCount(redeemScript)
}

// GetWitnessSigOpCount returns the witness-version sigop count for an
// input, which is weighted at 1x rather than the legacy 4x (the
// witness scale factor of 4 applies to virtual-size computations, not
// to this count: witness sigops are already "cheap" and are added to
// the legacy count unscaled by the caller).
func GetWitnessSigOpCount(scriptSig, scriptPubKey []byte, witness [][]byte) int {
	version, program, ok := ExtractWitnessProgramInfo(scriptPubKey)
	if ok {
		return witnessProgramSigOps(version, program, witness)
	}

	if IsScriptHashScript(scriptPubKey) {
		sigOps, err := tokenizeScript(scriptSig)
		if err != nil || len(sigOps) == 0 {
			return 0
		}
		last := sigOps[len(sigOps)-1]
		if last.isPush() {
			if v, p, ok := ExtractWitnessProgramInfo(last.data); ok {
				return witnessProgramSigOps(v, p, witness)
			}
		}
	}
	return 0
}

func witnessProgramSigOps(version int, program []byte, witness [][]byte) int {
	switch {
	case version == 0 && len(program) == payToWitnessPubKeyHashDataSize:
		return 1
	case version == 0 && len(program) == payToWitnessScriptHashDataSize && len(witness) > 0:
		witnessScript := witness[len(witness)-1]
		ops, err := tokenizeScript(witnessScript)
		if err != nil {
			return 0
		}
		return countSigOps(ops, true)
	default:
		return 0
	}
}
