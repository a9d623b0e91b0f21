// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/chaincore/btcnode/chainhash"
)

const (
	// TxVersion is the default transaction version.
	TxVersion = 2

	// MaxTxInSequenceNum is the maximum sequence number an input can have
	// that does not opt into the relative-locktime (CSV) semantics.
	MaxTxInSequenceNum uint32 = 0xffffffff

	// witnessMarker and witnessFlag are the two bytes inserted immediately
	// after the version field when any input carries a non-empty witness,
	//.
	witnessMarker = 0x00
	witnessFlag = 0x01

	// maxWitnessItemsPerInput and maxWitnessItemSize bound the size of a
	// decoded witness to avoid a hostile peer forcing unbounded
	// allocation.
	maxWitnessItemsPerInput = 500000
	maxWitnessItemSize = 11000000

	// MaxTxPerBlock is a defensive cap on the number of transactions
	// decoded from a single block message.
	MaxTxPerBlock = 1000000
)

// OutPoint defines a reference to a specific output of a specific
// transaction (Outpoint value type).
type OutPoint struct {
	Hash chainhash.Hash
	Index uint32
}

// NewOutPoint returns a new OutPoint.
func NewOutPoint(hash *chainhash.Hash, index uint32) *OutPoint {
	return &OutPoint{Hash: *hash, Index: index}
}

func (o OutPoint) String() string {
	return o.Hash.String() + ":" + itoa(o.Index)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// TxIn defines a transaction input (TxInput entity). Witness
// is a sequence of byte strings; it is empty for a legacy (non-segwit)
// input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript []byte
	Witness [][]byte
	Sequence uint32
}

// SerializeSize returns the base (non-witness) serialized size of the
// input in bytes.
func (t *TxIn) SerializeSize() int {
	return 40 + VarIntSerializeSize(uint64(len(t.SignatureScript))) + len(t.SignatureScript) + 4
}

// TxOut defines a transaction output (TxOutput entity).
type TxOut struct {
	Value int64
	PkScript []byte
}

// SerializeSize returns the serialized size of the output in bytes.
func (t *TxOut) SerializeSize() int {
	return 8 + VarIntSerializeSize(uint64(len(t.PkScript))) + len(t.PkScript)
}

// MsgTx defines a Bitcoin transaction (Transaction entity).
// It is treated as immutable once constructed; callers that need to
// mutate a transaction under construction (e.g. while signing) should
// build a fresh MsgTx rather than mutate a shared one, mirroring the
// teacher's immutable-wire-type / mutable-builder split.
type MsgTx struct {
	Version int32
	TxIn []*TxIn
	TxOut []*TxOut
	LockTime uint32
}

// NewMsgTx returns a new transaction with the given version and no
// inputs or outputs.
func NewMsgTx(version int32) *MsgTx {
	return &MsgTx{Version: version}
}

// HasWitness reports whether any input carries a non-empty witness.
func (msg *MsgTx) HasWitness() bool {
	for _, txIn := range msg.TxIn {
		if len(txIn.Witness) > 0 {
			return true
		}
	}
	return false
}

// TxHash returns the transaction's identifier: the double-SHA-256 of the
// base (non-witness) serialization, matching consensus txid semantics.
func (msg *MsgTx) TxHash() chainhash.Hash {
	var buf bytes.Buffer
	_ = msg.serialize(&buf, false)
	return chainhash.HashH(buf.Bytes())
}

// WitnessHash returns the transaction's witness identifier: the
// double-SHA-256 of the full (witness-included) serialization. For a
// transaction with no witness data this is identical to TxHash.
func (msg *MsgTx) WitnessHash() chainhash.Hash {
	if !msg.HasWitness() {
		return msg.TxHash()
	}
	var buf bytes.Buffer
	_ = msg.serialize(&buf, true)
	return chainhash.HashH(buf.Bytes())
}

// IsCoinBase reports whether the transaction is a coinbase transaction,
// i.e. it has exactly one input whose previous outpoint has a null hash
// and a max-value index, per Coin entity discussion of
// coinbase outputs.
func (msg *MsgTx) IsCoinBase() bool {
	if len(msg.TxIn) != 1 {
		return false
	}
	prevOut := &msg.TxIn[0].PreviousOutPoint
	return prevOut.Index == 0xffffffff && prevOut.Hash == (chainhash.Hash{})
}

// SerializeSize returns the number of bytes it would take to serialize
// the transaction, including witness data if present.
func (msg *MsgTx) SerializeSize() int {
	n := 8 // version + locktime
	if msg.HasWitness() {
		n += 2 // marker + flag
	}
	n += VarIntSerializeSize(uint64(len(msg.TxIn)))
	for _, ti := range msg.TxIn {
		n += ti.SerializeSize()
	}
	n += VarIntSerializeSize(uint64(len(msg.TxOut)))
	for _, to := range msg.TxOut {
		n += to.SerializeSize()
	}
	if msg.HasWitness() {
		for _, ti := range msg.TxIn {
			n += VarIntSerializeSize(uint64(len(ti.Witness)))
			for _, item := range ti.Witness {
				n += VarIntSerializeSize(uint64(len(item))) + len(item)
			}
		}
	}
	return n
}

// BtcDecode decodes r into the receiver using the wire protocol encoding,
// transparently handling the segwit marker/flag.
func (msg *MsgTx) BtcDecode(r io.Reader, pver uint32) error {
	ver, err := binarySerializer.Uint32(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg.Version = int32(ver)

	count, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}

	var flag [1]byte
	hasWitness := false
	if count == 0 {
		// Possible segwit marker: a zero-length input count is never
		// valid on its own, so peek at the next byte as the flag.
		if _, err := io.ReadFull(r, flag[:]); err != nil {
			return err
		}
		if flag[0] != witnessFlag {
			return messageError("MsgTx.BtcDecode", "unsupported segwit flag")
		}
		hasWitness = true
		count, err = ReadVarInt(r, pver)
		if err != nil {
			return err
		}
	}
	if count > MaxTxPerBlock {
		return messageError("MsgTx.BtcDecode", "too many inputs")
	}

	txIns := make([]TxIn, count)
	msg.TxIn = make([]*TxIn, count)
	for i := uint64(0); i < count; i++ {
		ti := &txIns[i]
		msg.TxIn[i] = ti
		if err := readTxIn(r, pver, ti); err != nil {
			return err
		}
	}

	outCount, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}
	if outCount > MaxTxPerBlock {
		return messageError("MsgTx.BtcDecode", "too many outputs")
	}
	txOuts := make([]TxOut, outCount)
	msg.TxOut = make([]*TxOut, outCount)
	for i := uint64(0); i < outCount; i++ {
		to := &txOuts[i]
		msg.TxOut[i] = to
		if err := readTxOut(r, pver, to); err != nil {
			return err
		}
	}

	if hasWitness {
		for _, ti := range msg.TxIn {
			itemCount, err := ReadVarInt(r, pver)
			if err != nil {
				return err
			}
			if itemCount > maxWitnessItemsPerInput {
				return messageError("MsgTx.BtcDecode", "too many witness items")
			}
			ti.Witness = make([][]byte, itemCount)
			for j := uint64(0); j < itemCount; j++ {
				item, err := ReadVarBytes(r, pver, maxWitnessItemSize, "witness item")
				if err != nil {
					return err
				}
				ti.Witness[j] = item
			}
		}
	}

	lockTime, err := binarySerializer.Uint32(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg.LockTime = lockTime
	return nil
}

// BtcEncode encodes the receiver to w using the wire protocol encoding.
func (msg *MsgTx) BtcEncode(w io.Writer, pver uint32) error {
	return msg.serialize(w, msg.HasWitness())
}

func (msg *MsgTx) serialize(w io.Writer, withWitness bool) error {
	if err := binarySerializer.PutUint32(w, binary.LittleEndian, uint32(msg.Version)); err != nil {
		return err
	}

	if withWitness {
		if err := binarySerializer.PutUint8(w, witnessMarker); err != nil {
			return err
		}
		if err := binarySerializer.PutUint8(w, witnessFlag); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, 0, uint64(len(msg.TxIn))); err != nil {
		return err
	}
	for _, ti := range msg.TxIn {
		if err := writeTxIn(w, ti); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, 0, uint64(len(msg.TxOut))); err != nil {
		return err
	}
	for _, to := range msg.TxOut {
		if err := writeTxOut(w, to); err != nil {
			return err
		}
	}

	if withWitness {
		for _, ti := range msg.TxIn {
			if err := WriteVarInt(w, 0, uint64(len(ti.Witness))); err != nil {
				return err
			}
			for _, item := range ti.Witness {
				if err := WriteVarBytes(w, 0, item); err != nil {
					return err
				}
			}
		}
	}

	return binarySerializer.PutUint32(w, binary.LittleEndian, msg.LockTime)
}

func readTxIn(r io.Reader, pver uint32, ti *TxIn) error {
	if _, err := io.ReadFull(r, ti.PreviousOutPoint.Hash[:]); err != nil {
		return err
	}
	idx, err := binarySerializer.Uint32(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	ti.PreviousOutPoint.Index = idx

	script, err := ReadVarBytes(r, pver, MaxMessagePayload, "signature script")
	if err != nil {
		return err
	}
	ti.SignatureScript = script

	seq, err := binarySerializer.Uint32(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	ti.Sequence = seq
	return nil
}

func writeTxIn(w io.Writer, ti *TxIn) error {
	if _, err := w.Write(ti.PreviousOutPoint.Hash[:]); err != nil {
		return err
	}
	if err := binarySerializer.PutUint32(w, binary.LittleEndian, ti.PreviousOutPoint.Index); err != nil {
		return err
	}
	if err := WriteVarBytes(w, 0, ti.SignatureScript); err != nil {
		return err
	}
	return binarySerializer.PutUint32(w, binary.LittleEndian, ti.Sequence)
}

func readTxOut(r io.Reader, pver uint32, to *TxOut) error {
	value, err := binarySerializer.Uint64(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	to.Value = int64(value)

	script, err := ReadVarBytes(r, pver, MaxMessagePayload, "pk script")
	if err != nil {
		return err
	}
	to.PkScript = script
	return nil
}

func writeTxOut(w io.Writer, to *TxOut) error {
	if err := binarySerializer.PutUint64(w, binary.LittleEndian, uint64(to.Value)); err != nil {
		return err
	}
	return WriteVarBytes(w, 0, to.PkScript)
}

// Copy returns a deep copy of the transaction, suitable for a caller
// that needs to mutate fields (e.g. blanking inputs/outputs while
// computing a legacy signature hash) without disturbing the original.
func (msg *MsgTx) Copy() *MsgTx {
	txCopy := &MsgTx{
		Version: msg.Version,
		LockTime: msg.LockTime,
		TxIn: make([]*TxIn, len(msg.TxIn)),
		TxOut: make([]*TxOut, len(msg.TxOut)),
	}
	for i, ti := range msg.TxIn {
		var witness [][]byte
		if ti.Witness != nil {
			witness = make([][]byte, len(ti.Witness))
			for j, item := range ti.Witness {
				witness[j] = append([]byte(nil), item...)
			}
		}
		txCopy.TxIn[i] = &TxIn{
			PreviousOutPoint: ti.PreviousOutPoint,
			SignatureScript: append([]byte(nil), ti.SignatureScript...),
			Witness: witness,
			Sequence: ti.Sequence,
		}
	}
	for i, to := range msg.TxOut {
		txCopy.TxOut[i] = &TxOut{
			Value: to.Value,
			PkScript: append([]byte(nil), to.PkScript...),
		}
	}
	return txCopy
}

// Command returns "tx".
func (msg *MsgTx) Command() string { return CmdTx }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgTx) MaxPayloadLength(pver uint32) uint32 {
	return MaxMessagePayload
}

// VirtualSize computes the virtual size used for fee-rate and policy
// limits: (base_size*4 + witness_size + 3) / 4, per the GLOSSARY.
func (msg *MsgTx) VirtualSize() int64 {
	var baseBuf, fullBuf bytes.Buffer
	_ = msg.serialize(&baseBuf, false)
	_ = msg.serialize(&fullBuf, msg.HasWitness())
	baseSize := int64(baseBuf.Len())
	totalSize := int64(fullBuf.Len())
	witnessSize := totalSize - baseSize
	return (baseSize*4 + witnessSize + 3) / 4
}
