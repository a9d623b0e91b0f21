// Copyright (c) 2017-2019 The btcsuite developers
// Copyright (c) 2019-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bech32 implements the BIP173 bech32 checksummed text encoding,
// used to render witness-v0 (and later witness versions) scriptPubKeys as
// human-readable native segwit addresses.
package bech32

import (
	"fmt"
	"strings"
)

const charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

var charsetRev = func() [128]int8 {
	var rev [128]int8
	for i := range rev {
		rev[i] = -1
	}
	for i, c := range charset {
		rev[c] = int8(i)
	}
	return rev
}()

// Encode encodes a human-readable part and a sequence of 5-bit groups into
// a bech32 string.
func Encode(hrp string, data []byte) (string, error) {
	combined := append(data, checksum(hrp, data)...)

	var b strings.Builder
	b.WriteString(hrp)
	b.WriteByte('1')
	for _, p := range combined {
		if int(p) >= len(charset) {
			return "", fmt.Errorf("bech32: invalid data byte %d", p)
		}
		b.WriteByte(charset[p])
	}
	return b.String(), nil
}

// Decode decodes a bech32 string into its human-readable part and 5-bit
// groups, verifying the checksum.
func Decode(bech string) (string, []byte, error) {
	if len(bech) < 8 || len(bech) > 90 {
		return "", nil, fmt.Errorf("bech32: invalid length %d", len(bech))
	}
	lower := strings.ToLower(bech)
	upper := strings.ToUpper(bech)
	if bech != lower && bech != upper {
		return "", nil, fmt.Errorf("bech32: mixed case string %q", bech)
	}
	bech = lower

	sep := strings.LastIndexByte(bech, '1')
	if sep < 1 || sep+7 > len(bech) {
		return "", nil, fmt.Errorf("bech32: invalid separator position")
	}

	hrp := bech[:sep]
	data := make([]byte, 0, len(bech)-sep-1)
	for i := sep + 1; i < len(bech); i++ {
		c := bech[i]
		if c >= 128 || charsetRev[c] == -1 {
			return "", nil, fmt.Errorf("bech32: invalid character %q", c)
		}
		data = append(data, byte(charsetRev[c]))
	}

	if !verifyChecksum(hrp, data) {
		return "", nil, fmt.Errorf("bech32: invalid checksum")
	}
	return hrp, data[:len(data)-6], nil
}

func polymod(values []byte) uint32 {
	gen := [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}
	chk := uint32(1)
	for _, v := range values {
		b := byte(chk >> 25)
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (b>>uint(i))&1 == 1 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}

func hrpExpand(hrp string) []byte {
	out := make([]byte, 0, len(hrp)*2+1)
	for _, c := range hrp {
		out = append(out, byte(c)>>5)
	}
	out = append(out, 0)
	for _, c := range hrp {
		out = append(out, byte(c)&31)
	}
	return out
}

func checksum(hrp string, data []byte) []byte {
	values := append(hrpExpand(hrp), data...)
	values = append(values, 0, 0, 0, 0, 0, 0)
	mod := polymod(values) ^ 1
	ret := make([]byte, 6)
	for i := 0; i < 6; i++ {
		ret[i] = byte((mod >> uint(5*(5-i))) & 31)
	}
	return ret
}

func verifyChecksum(hrp string, data []byte) bool {
	return polymod(append(hrpExpand(hrp), data...)) == 1
}

// ConvertBits repacks a byte slice of groups of `fromBits` bits into groups
// of `toBits` bits, used to translate between 8-bit witness-program bytes
// and bech32's 5-bit alphabet.
func ConvertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	if fromBits < 1 || fromBits > 8 || toBits < 1 || toBits > 8 {
		return nil, fmt.Errorf("bech32: invalid bit groups %d/%d", fromBits, toBits)
	}

	var acc uint32
	var bits uint
	maxv := uint32(1<<toBits) - 1
	var ret []byte
	for _, value := range data {
		v := uint32(value)
		if bits+fromBits > 32 {
			return nil, fmt.Errorf("bech32: accumulator overflow")
		}
		acc = (acc << fromBits) | v
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			ret = append(ret, byte((acc>>bits)&maxv))
		}
	}
	if pad {
		if bits > 0 {
			ret = append(ret, byte((acc<<(toBits-bits))&maxv))
		}
	} else if bits >= fromBits || (acc<<(toBits-bits))&maxv != 0 {
		return nil, fmt.Errorf("bech32: invalid padding")
	}
	return ret, nil
}
