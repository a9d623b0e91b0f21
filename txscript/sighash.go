// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
)

// SigHashType represents the hash type bits at the end of a signature.
type SigHashType uint32

const (
	SigHashOld          SigHashType = 0x0
	SigHashAll          SigHashType = 0x1
	SigHashNone         SigHashType = 0x2
	SigHashSingle       SigHashType = 0x3
	SigHashAnyOneCanPay SigHashType = 0x80

	sigHashMask = 0x1f
)

// PrevOutputFetcher supplies the previous output (value and
// scriptPubKey) being spent by a given outpoint, needed to compute a
// BIP143 witness signature hash and to evaluate native/P2SH-wrapped
// witness programs.
type PrevOutputFetcher interface {
	FetchPrevOutput(wire.OutPoint) wire.TxOut
}

// MultiPrevOutFetcher is a PrevOutputFetcher backed by a plain map,
// suitable when every input's previous output is already known (e.g.
// mempool validation with the UTXO set loaded).
type MultiPrevOutFetcher map[wire.OutPoint]wire.TxOut

// FetchPrevOutput implements PrevOutputFetcher.
func (m MultiPrevOutFetcher) FetchPrevOutput(op wire.OutPoint) wire.TxOut {
	return m[op]
}

// NewMultiPrevOutFetcher returns a MultiPrevOutFetcher populated with
// the given map, or an empty one if perOutput is nil.
func NewMultiPrevOutFetcher(perOutput map[wire.OutPoint]wire.TxOut) MultiPrevOutFetcher {
	if perOutput == nil {
		return make(MultiPrevOutFetcher)
	}
	return MultiPrevOutFetcher(perOutput)
}

// removeOpcode returns the script minus any occurrences of the given
// opcode, used to strip OP_CODESEPARATOR (and, historically, signature
// bytes) from the subscript before hashing.
func removeOpcode(script []byte, opcode byte) []byte {
	tokens, err := tokenizeScript(script)
	if err != nil {
		return script
	}
	var out []byte
	for _, tok := range tokens {
		if tok.opcode == opcode {
			continue
		}
		out = append(out, reencodeOpcode(tok)...)
	}
	return out
}

func reencodeOpcode(pop parsedOpcode) []byte {
	switch {
	case pop.opcode >= OP_DATA_1 && pop.opcode <= OP_DATA_75:
		return append([]byte{pop.opcode}, pop.data...)
	case pop.opcode == OP_PUSHDATA1:
		return append([]byte{pop.opcode, byte(len(pop.data))}, pop.data...)
	case pop.opcode == OP_PUSHDATA2:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(len(pop.data)))
		return append(append([]byte{pop.opcode}, buf...), pop.data...)
	case pop.opcode == OP_PUSHDATA4:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(len(pop.data)))
		return append(append([]byte{pop.opcode}, buf...), pop.data...)
	default:
		return []byte{pop.opcode}
	}
}

// CalcSignatureHash computes the legacy (pre-segwit) signature hash for
// the idx'th input of tx, signing over subScript as the effective
// scriptPubKey/redeemScript with OP_CODESEPARATOR occurrences removed.
func CalcSignatureHash(subScript []byte, hashType SigHashType, tx *wire.MsgTx, idx int) ([]byte, error) {
	if idx >= len(tx.TxIn) {
		return nil, fmt.Errorf("txscript: input index %d out of range (tx has %d inputs)", idx, len(tx.TxIn))
	}

	sigHashType := hashType & sigHashMask
	if sigHashType == SigHashSingle && idx >= len(tx.TxOut) {
		var out [32]byte
		out[0] = 1
		return out[:], nil
	}

	cleaned := removeOpcode(subScript, OP_CODESEPARATOR)

	txCopy := tx.Copy()
	for i := range txCopy.TxIn {
		if i == idx {
			txCopy.TxIn[i].SignatureScript = cleaned
		} else {
			txCopy.TxIn[i].SignatureScript = nil
		}
	}

	switch sigHashType {
	case SigHashNone:
		txCopy.TxOut = txCopy.TxOut[:0]
		for i := range txCopy.TxIn {
			if i != idx {
				txCopy.TxIn[i].Sequence = 0
			}
		}
	case SigHashSingle:
		txCopy.TxOut = txCopy.TxOut[:idx+1]
		for i := 0; i < idx; i++ {
			txCopy.TxOut[i].Value = -1
			txCopy.TxOut[i].PkScript = nil
		}
		for i := range txCopy.TxIn {
			if i != idx {
				txCopy.TxIn[i].Sequence = 0
			}
		}
	}

	if hashType&SigHashAnyOneCanPay != 0 {
		txCopy.TxIn = []*wire.TxIn{txCopy.TxIn[idx]}
	}

	var buf bytes.Buffer
	_ = txCopy.BtcEncode(&buf, 0)
	binary.Write(&buf, binary.LittleEndian, uint32(hashType))

	h := chainhash.HashH(buf.Bytes())
	return h[:], nil
}

// txSigHashes caches the three BIP143 midstate hashes shared by every
// input of a given transaction so verifying N inputs costs O(1) extra
// hashing passes over the tx rather than O(N).
type txSigHashes struct {
	hashPrevOuts chainhash.Hash
	hashSequence chainhash.Hash
	hashOutputs  chainhash.Hash
}

// newTxSigHashes precomputes the BIP143 midstate hashes for tx.
func newTxSigHashes(tx *wire.MsgTx) *txSigHashes {
	var prevOuts, sequence, outputs bytes.Buffer
	for _, in := range tx.TxIn {
		prevOuts.Write(in.PreviousOutPoint.Hash[:])
		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], in.PreviousOutPoint.Index)
		prevOuts.Write(idx[:])

		var seq [4]byte
		binary.LittleEndian.PutUint32(seq[:], in.Sequence)
		sequence.Write(seq[:])
	}
	for _, out := range tx.TxOut {
		var val [8]byte
		binary.LittleEndian.PutUint64(val[:], uint64(out.Value))
		outputs.Write(val[:])
		wire.WriteVarBytes(&outputs, 0, out.PkScript)
	}

	return &txSigHashes{
		hashPrevOuts: chainhash.HashH(prevOuts.Bytes()),
		hashSequence: chainhash.HashH(sequence.Bytes()),
		hashOutputs:  chainhash.HashH(outputs.Bytes()),
	}
}

// CalcWitnessSigHash computes the BIP143 witness program signature
// hash for the idx'th input of tx, given the effective scriptCode
// (the witness script, or 0x1976a914<hash>88ac for a P2WPKH program)
// and the value of the output being spent.
func CalcWitnessSigHash(scriptCode []byte, sigHashes *txSigHashes, hashType SigHashType, tx *wire.MsgTx, idx int, amt int64) ([]byte, error) {
	if idx >= len(tx.TxIn) {
		return nil, fmt.Errorf("txscript: input index %d out of range (tx has %d inputs)", idx, len(tx.TxIn))
	}

	var sigHash bytes.Buffer

	var verBuf [4]byte
	binary.LittleEndian.PutUint32(verBuf[:], uint32(tx.Version))
	sigHash.Write(verBuf[:])

	var zeroHash chainhash.Hash
	anyoneCanPay := hashType&SigHashAnyOneCanPay != 0
	sht := hashType & sigHashMask

	if !anyoneCanPay {
		sigHash.Write(sigHashes.hashPrevOuts[:])
	} else {
		sigHash.Write(zeroHash[:])
	}

	if !anyoneCanPay && sht != SigHashSingle && sht != SigHashNone {
		sigHash.Write(sigHashes.hashSequence[:])
	} else {
		sigHash.Write(zeroHash[:])
	}

	in := tx.TxIn[idx]
	sigHash.Write(in.PreviousOutPoint.Hash[:])
	var idxBuf [4]byte
	binary.LittleEndian.PutUint32(idxBuf[:], in.PreviousOutPoint.Index)
	sigHash.Write(idxBuf[:])

	wire.WriteVarBytes(&sigHash, 0, scriptCode)

	var valBuf [8]byte
	binary.LittleEndian.PutUint64(valBuf[:], uint64(amt))
	sigHash.Write(valBuf[:])

	var seqBuf [4]byte
	binary.LittleEndian.PutUint32(seqBuf[:], in.Sequence)
	sigHash.Write(seqBuf[:])

	if sht != SigHashSingle && sht != SigHashNone {
		sigHash.Write(sigHashes.hashOutputs[:])
	} else if sht == SigHashSingle && idx < len(tx.TxOut) {
		var outBuf bytes.Buffer
		out := tx.TxOut[idx]
		var val [8]byte
		binary.LittleEndian.PutUint64(val[:], uint64(out.Value))
		outBuf.Write(val[:])
		wire.WriteVarBytes(&outBuf, 0, out.PkScript)
		h := chainhash.HashH(outBuf.Bytes())
		sigHash.Write(h[:])
	} else {
		sigHash.Write(zeroHash[:])
	}

	var lockBuf [4]byte
	binary.LittleEndian.PutUint32(lockBuf[:], tx.LockTime)
	sigHash.Write(lockBuf[:])

	var htBuf [4]byte
	binary.LittleEndian.PutUint32(htBuf[:], uint32(hashType))
	sigHash.Write(htBuf[:])

	h := chainhash.HashH(sigHash.Bytes())
	return h[:], nil
}

// P2WPKHScriptCode builds the implicit scriptCode used to sign a
// pay-to-witness-pubkey-hash input: the legacy P2PKH template over the
// same hash (BIP143).
func P2WPKHScriptCode(pubKeyHash []byte) []byte {
	script := make([]byte, 0, 25)
	script = append(script, OP_DUP, OP_HASH160, OP_DATA_20)
	script = append(script, pubKeyHash...)
	script = append(script, OP_EQUALVERIFY, OP_CHECKSIG)
	return script
}
