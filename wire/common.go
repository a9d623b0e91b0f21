// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/chaincore/btcnode/chainhash"
)

// MaxVarIntPayload is the maximum payload size for a variable length
// integer.
const MaxVarIntPayload = 9

// binaryFreeList houses a free list of byte slices to be used for binary
// reads and writes, which helps eliminate the need to allocate new buffers
// for every read/write call performed on the encoded messages.
type binaryFreeList chan []byte

var binarySerializer binaryFreeList = make(chan []byte, 32)

func (l binaryFreeList) Borrow() []byte {
	var buf []byte
	select {
	case buf = <-l:
	default:
		buf = make([]byte, 8)
	}
	return buf[:8]
}

func (l binaryFreeList) Return(buf []byte) {
	select {
	case l <- buf:
	default:
	}
}

func (l binaryFreeList) Uint8(r io.Reader) (uint8, error) {
	buf := l.Borrow()[:1]
	defer l.Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (l binaryFreeList) Uint16(r io.Reader, byteOrder binary.ByteOrder) (uint16, error) {
	buf := l.Borrow()[:2]
	defer l.Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return byteOrder.Uint16(buf), nil
}

func (l binaryFreeList) Uint32(r io.Reader, byteOrder binary.ByteOrder) (uint32, error) {
	buf := l.Borrow()[:4]
	defer l.Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(buf), nil
}

func (l binaryFreeList) Uint64(r io.Reader, byteOrder binary.ByteOrder) (uint64, error) {
	buf := l.Borrow()[:8]
	defer l.Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return byteOrder.Uint64(buf), nil
}

func (l binaryFreeList) PutUint8(w io.Writer, val uint8) error {
	buf := l.Borrow()[:1]
	defer l.Return(buf)
	buf[0] = val
	_, err := w.Write(buf)
	return err
}

func (l binaryFreeList) PutUint16(w io.Writer, byteOrder binary.ByteOrder, val uint16) error {
	buf := l.Borrow()[:2]
	defer l.Return(buf)
	byteOrder.PutUint16(buf, val)
	_, err := w.Write(buf)
	return err
}

func (l binaryFreeList) PutUint32(w io.Writer, byteOrder binary.ByteOrder, val uint32) error {
	buf := l.Borrow()[:4]
	defer l.Return(buf)
	byteOrder.PutUint32(buf, val)
	_, err := w.Write(buf)
	return err
}

func (l binaryFreeList) PutUint64(w io.Writer, byteOrder binary.ByteOrder, val uint64) error {
	buf := l.Borrow()[:8]
	defer l.Return(buf)
	byteOrder.PutUint64(buf, val)
	_, err := w.Write(buf)
	return err
}

// messageErr is the error type for malformed wire data, such as a varint
// not encoded in its shortest possible form.
type messageErr string

func (e messageErr) Error() string { return string(e) }

func messageError(op, desc string) error {
	return messageErr(fmt.Sprintf("%s: %s", op, desc))
}

// ReadVarInt reads a variable length integer (Bitcoin's CompactSize) from r
// and returns it as a uint64.
func ReadVarInt(r io.Reader, pver uint32) (uint64, error) {
	discriminant, err := binarySerializer.Uint8(r)
	if err != nil {
		return 0, err
	}

	var rv uint64
	switch discriminant {
	case 0xff:
		sv, err := binarySerializer.Uint64(r, binary.LittleEndian)
		if err != nil {
			return 0, err
		}
		rv = sv
		if rv < 0x100000000 {
			return 0, messageError("ReadVarInt", "non-canonical varint")
		}
	case 0xfe:
		sv, err := binarySerializer.Uint32(r, binary.LittleEndian)
		if err != nil {
			return 0, err
		}
		rv = uint64(sv)
		if rv < 0x10000 {
			return 0, messageError("ReadVarInt", "non-canonical varint")
		}
	case 0xfd:
		sv, err := binarySerializer.Uint16(r, binary.LittleEndian)
		if err != nil {
			return 0, err
		}
		rv = uint64(sv)
		if rv < 0xfd {
			return 0, messageError("ReadVarInt", "non-canonical varint")
		}
	default:
		rv = uint64(discriminant)
	}
	return rv, nil
}

// WriteVarInt serializes val to w using the CompactSize encoding.
func WriteVarInt(w io.Writer, pver uint32, val uint64) error {
	if val < 0xfd {
		return binarySerializer.PutUint8(w, uint8(val))
	}
	if val <= 0xffff {
		if err := binarySerializer.PutUint8(w, 0xfd); err != nil {
			return err
		}
		return binarySerializer.PutUint16(w, binary.LittleEndian, uint16(val))
	}
	if val <= 0xffffffff {
		if err := binarySerializer.PutUint8(w, 0xfe); err != nil {
			return err
		}
		return binarySerializer.PutUint32(w, binary.LittleEndian, uint32(val))
	}
	if err := binarySerializer.PutUint8(w, 0xff); err != nil {
		return err
	}
	return binarySerializer.PutUint64(w, binary.LittleEndian, val)
}

// VarIntSerializeSize returns the number of bytes it would take to
// serialize val as a variable length integer.
func VarIntSerializeSize(val uint64) int {
	if val < 0xfd {
		return 1
	}
	if val <= 0xffff {
		return 3
	}
	if val <= 0xffffffff {
		return 5
	}
	return 9
}

// ReadVarString reads a variable length string from r.
func ReadVarString(r io.Reader, pver uint32) (string, error) {
	count, err := ReadVarInt(r, pver)
	if err != nil {
		return "", err
	}
	if count > MaxMessagePayload {
		return "", messageError("ReadVarString", "variable length string too long")
	}
	buf := make([]byte, count)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteVarString serializes str to w as a variable length string.
func WriteVarString(w io.Writer, pver uint32, str string) error {
	if err := WriteVarInt(w, pver, uint64(len(str))); err != nil {
		return err
	}
	_, err := w.Write([]byte(str))
	return err
}

// ReadVarBytes reads a variable length byte array from r, rejecting
// anything longer than maxAllowed (the wire contract never allocates a
// buffer sized from untrusted input without a cap).
func ReadVarBytes(r io.Reader, pver uint32, maxAllowed uint32, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r, pver)
	if err != nil {
		return nil, err
	}
	if count > uint64(maxAllowed) {
		return nil, messageError("ReadVarBytes", fmt.Sprintf(
			"%s is larger than the max allowed size [count %d, max %d]",
			fieldName, count, maxAllowed))
	}
	buf := make([]byte, count)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteVarBytes serializes bytes to w as a variable length byte array.
func WriteVarBytes(w io.Writer, pver uint32, bytes []byte) error {
	if err := WriteVarInt(w, pver, uint64(len(bytes))); err != nil {
		return err
	}
	_, err := w.Write(bytes)
	return err
}

var hashPool = sync.Pool{
	New: func() interface{} { return new(chainhash.Hash) },
}

// readElement reads a single element from r using little endian encoding
// for multi-byte integer fields, dispatching by concrete type the way the
// teacher's own readElement does.
func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *int32:
		v, err := binarySerializer.Uint32(r, binary.LittleEndian)
		if err != nil {
			return err
		}
		*e = int32(v)
		return nil
	case *uint32:
		v, err := binarySerializer.Uint32(r, binary.LittleEndian)
		if err != nil {
			return err
		}
		*e = v
		return nil
	case *int64:
		v, err := binarySerializer.Uint64(r, binary.LittleEndian)
		if err != nil {
			return err
		}
		*e = int64(v)
		return nil
	case *uint64:
		v, err := binarySerializer.Uint64(r, binary.LittleEndian)
		if err != nil {
			return err
		}
		*e = v
		return nil
	case *bool:
		v, err := binarySerializer.Uint8(r)
		if err != nil {
			return err
		}
		*e = v != 0
		return nil
	case *chainhash.Hash:
		_, err := io.ReadFull(r, e[:])
		return err
	}
	return fmt.Errorf("readElement: unhandled type %T", element)
}

// writeElement writes a single element to w mirroring readElement.
func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case int32:
		return binarySerializer.PutUint32(w, binary.LittleEndian, uint32(e))
	case uint32:
		return binarySerializer.PutUint32(w, binary.LittleEndian, e)
	case int64:
		return binarySerializer.PutUint64(w, binary.LittleEndian, uint64(e))
	case uint64:
		return binarySerializer.PutUint64(w, binary.LittleEndian, e)
	case bool:
		var v uint8
		if e {
			v = 1
		}
		return binarySerializer.PutUint8(w, v)
	case *chainhash.Hash:
		_, err := w.Write(e[:])
		return err
	case chainhash.Hash:
		_, err := w.Write(e[:])
		return err
	}
	return fmt.Errorf("writeElement: unhandled type %T", element)
}
