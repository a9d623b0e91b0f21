// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import "testing"

func TestGetSigOpCountP2PKH(t *testing.T) {
	// OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG
	script := append([]byte{OP_DUP, OP_HASH160, 20}, make([]byte, 20)...)
	script = append(script, OP_EQUALVERIFY, OP_CHECKSIG)

	if got := GetSigOpCount(script); got != 1 {
		t.Fatalf("GetSigOpCount(P2PKH) = %d, want 1", got)
	}
}

func TestGetSigOpCountMultisigPrecise(t *testing.T) {
	// OP_2 <pub1> <pub2> <pub3> OP_3 OP_CHECKMULTISIG
	pub := make([]byte, 33)
	script := []byte{OP_1 + 1} // OP_2
	for i := 0; i < 3; i++ {
		script = append(script, 33)
		script = append(script, pub...)
	}
	script = append(script, OP_1+2, OP_CHECKMULTISIG) // OP_3 OP_CHECKMULTISIG

	if got := GetSigOpCount(script); got != 3 {
		t.Fatalf("GetSigOpCount(2-of-3 multisig) = %d, want 3", got)
	}
}

func TestGetSigOpCountMultisigImprecise(t *testing.T) {
	// A bare OP_CHECKMULTISIG with no preceding small-int push counts
	// as the historical worst case.
	script := []byte{OP_CHECKMULTISIG}
	if got := GetSigOpCount(script); got != MaxPubKeysPerMultiSig {
		t.Fatalf("GetSigOpCount(bare CHECKMULTISIG) = %d, want %d", got, MaxPubKeysPerMultiSig)
	}
}

func TestGetP2SHSigOpCount(t *testing.T) {
	redeem := []byte{OP_CHECKSIG}
	scriptPubKey := []byte{OP_HASH160, 20}
	scriptPubKey = append(scriptPubKey, make([]byte, 20)...)
	scriptPubKey = append(scriptPubKey, OP_EQUAL)

	scriptSig := append([]byte{byte(len(redeem))}, redeem...)

	if got := GetP2SHSigOpCount(scriptSig, scriptPubKey); got != 1 {
		t.Fatalf("GetP2SHSigOpCount = %d, want 1", got)
	}
}

func TestGetP2SHSigOpCountNonP2SH(t *testing.T) {
	scriptPubKey := []byte{OP_CHECKSIG}
	if got := GetP2SHSigOpCount(nil, scriptPubKey); got != 1 {
		t.Fatalf("GetP2SHSigOpCount(non-P2SH) = %d, want GetSigOpCount(scriptPubKey)=1", got)
	}
}

func TestGetWitnessSigOpCountP2WPKH(t *testing.T) {
	program := make([]byte, payToWitnessPubKeyHashDataSize)
	scriptPubKey := append([]byte{OP_0, byte(len(program))}, program...)
	if got := GetWitnessSigOpCount(nil, scriptPubKey, nil); got != 1 {
		t.Fatalf("GetWitnessSigOpCount(P2WPKH) = %d, want 1", got)
	}
}
