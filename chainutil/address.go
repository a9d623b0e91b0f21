// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainutil renders scriptPubKeys as human-readable addresses for
// the chain store's optional address index (the T/ and C/ key prefixes).
// It is display/indexing support only; wallet key management stays out of
// scope.
package chainutil

import (
	"errors"
	"fmt"

	"github.com/decred/base58"

	"github.com/chaincore/btcnode/bech32"
	"github.com/chaincore/btcnode/chainhash"
)

// ErrUnknownAddressType is returned when an address cannot be classified
// into any of the supported encodings.
var ErrUnknownAddressType = errors.New("chainutil: unknown address type")

// AddressParams is the subset of chaincfg.Params an address encoder needs:
// the version bytes for P2PKH/P2SH base58check addresses and the bech32
// human-readable part for witness addresses.
type AddressParams struct {
	PubKeyHashAddrID byte
	ScriptHashAddrID byte
	Bech32HRP string
}

// EncodeP2PKH renders a 20-byte public key hash as a base58check P2PKH
// address.
func EncodeP2PKH(hash160 []byte, params AddressParams) (string, error) {
	return encodeBase58Check(hash160, params.PubKeyHashAddrID)
}

// EncodeP2SH renders a 20-byte script hash as a base58check P2SH address.
func EncodeP2SH(hash160 []byte, params AddressParams) (string, error) {
	return encodeBase58Check(hash160, params.ScriptHashAddrID)
}

func encodeBase58Check(hash []byte, version byte) (string, error) {
	if len(hash) != 20 {
		return "", fmt.Errorf("chainutil: hash must be 20 bytes, got %d", len(hash))
	}
	buf := make([]byte, 0, 1+20+4)
	buf = append(buf, version)
	buf = append(buf, hash...)
	cksum := chainhash.HashB(buf)
	buf = append(buf, cksum[:4]...)
	return base58.Encode(buf), nil
}

// DecodeBase58Check decodes and verifies a base58check string, returning
// the version byte and payload.
func DecodeBase58Check(addr string) (byte, []byte, error) {
	decoded := base58.Decode(addr)
	if len(decoded) < 5 {
		return 0, nil, fmt.Errorf("chainutil: decoded address too short")
	}
	payload := decoded[:len(decoded)-4]
	cksum := decoded[len(decoded)-4:]
	expected := chainhash.HashB(payload)
	for i := 0; i < 4; i++ {
		if cksum[i] != expected[i] {
			return 0, nil, fmt.Errorf("chainutil: checksum mismatch")
		}
	}
	return payload[0], payload[1:], nil
}

// EncodeWitness renders a witness program (version + 2-to-40-byte program,
// e.g. the 20-byte P2WPKH hash or 32-byte P2WSH hash) as a bech32 native
// segwit address.
func EncodeWitness(version byte, program []byte, hrp string) (string, error) {
	if version > 16 {
		return "", fmt.Errorf("chainutil: invalid witness version %d", version)
	}
	conv, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", err
	}
	data := append([]byte{version}, conv...)
	return bech32.Encode(hrp, data)
}

// DecodeWitness decodes a bech32 native segwit address, returning the
// witness version and program.
func DecodeWitness(addr, expectedHRP string) (byte, []byte, error) {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return 0, nil, err
	}
	if hrp != expectedHRP {
		return 0, nil, fmt.Errorf("chainutil: wrong human-readable part %q", hrp)
	}
	if len(data) < 1 {
		return 0, nil, fmt.Errorf("chainutil: empty witness data")
	}
	version := data[0]
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return 0, nil, err
	}
	if len(program) < 2 || len(program) > 40 {
		return 0, nil, fmt.Errorf("chainutil: invalid witness program length %d", len(program))
	}
	return version, program, nil
}
