// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import "fmt"

// parsedOpcode represents an opcode that has been parsed and includes
// any potential data associated with it.
type parsedOpcode struct {
	opcode byte
	data   []byte
}

// isPush reports whether the parsed opcode pushes data onto the stack,
// i.e. everything below OP_RESERVED other than OP_RESERVED itself and
// excluding OP_1NEGATE/OP_1..OP_16, which push via the opcode value
// rather than accompanying data.
func (pop *parsedOpcode) isPush() bool {
	return pop.opcode <= OP_PUSHDATA4
}

// canonicalPushLen returns the number of bytes the associated data requires
// when canonically encoded.
func canonicalPushLen(data []byte) int {
	n := len(data)
	switch {
	case n == 0:
		return 1
	case n == 1 && data[0] >= 1 && data[0] <= 16:
		return 1
	case n == 1 && data[0] == 0x81:
		return 1
	case n <= 75:
		return 1 + n
	case n <= 255:
		return 2 + n
	case n <= 65535:
		return 3 + n
	default:
		return 5 + n
	}
}

// tokenizeScript parses script into a sequence of parsedOpcode values,
// validating push-data lengths against the remaining script length but
// not opcode semantics (flow control, stack effects, and so on are the
// engine's concern).
func tokenizeScript(script []byte) ([]parsedOpcode, error) {
	var tokens []parsedOpcode
	for i := 0; i < len(script); {
		op := script[i]
		pop := parsedOpcode{opcode: op}

		switch {
		case op == OP_0:
			i++
		case op >= OP_DATA_1 && op <= OP_DATA_75:
			n := int(op)
			if i+1+n > len(script) {
				return nil, scriptError(ErrBadPush,
					fmt.Sprintf("opcode %x requires %d bytes but script "+
						"only has %d remaining", op, n, len(script)-i-1))
			}
			pop.data = script[i+1 : i+1+n]
			i += 1 + n
		case op == OP_PUSHDATA1:
			if i+2 > len(script) {
				return nil, scriptError(ErrBadPush, "OP_PUSHDATA1 missing length byte")
			}
			n := int(script[i+1])
			if i+2+n > len(script) {
				return nil, scriptError(ErrBadPush, "OP_PUSHDATA1 data overruns script")
			}
			pop.data = script[i+2 : i+2+n]
			i += 2 + n
		case op == OP_PUSHDATA2:
			if i+3 > len(script) {
				return nil, scriptError(ErrBadPush, "OP_PUSHDATA2 missing length bytes")
			}
			n := int(script[i+1]) | int(script[i+2])<<8
			if i+3+n > len(script) {
				return nil, scriptError(ErrBadPush, "OP_PUSHDATA2 data overruns script")
			}
			pop.data = script[i+3 : i+3+n]
			i += 3 + n
		case op == OP_PUSHDATA4:
			if i+5 > len(script) {
				return nil, scriptError(ErrBadPush, "OP_PUSHDATA4 missing length bytes")
			}
			n := int(script[i+1]) | int(script[i+2])<<8 | int(script[i+3])<<16 | int(script[i+4])<<24
			if n < 0 || i+5+n > len(script) {
				return nil, scriptError(ErrBadPush, "OP_PUSHDATA4 data overruns script")
			}
			pop.data = script[i+5 : i+5+n]
			i += 5 + n
		default:
			i++
		}

		tokens = append(tokens, pop)
	}
	return tokens, nil
}
