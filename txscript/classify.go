// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

// ScriptType identifies the recognized shape of a scriptPubKey, used by
// callers that need to reason about standardness or choose a signing
// path without walking the raw opcode stream themselves.
type ScriptType byte

const (
	STNonStandard ScriptType = iota
	STPubKey
	STPubKeyHash
	STScriptHash
	STMultiSig
	STNullData
	STWitnessV0PubKeyHash
	STWitnessV0ScriptHash
)

var scriptTypeNames = map[ScriptType]string{
	STNonStandard:         "nonstandard",
	STPubKey:              "pubkey",
	STPubKeyHash:          "pubkeyhash",
	STScriptHash:          "scripthash",
	STMultiSig:            "multisig",
	STNullData:            "nulldata",
	STWitnessV0PubKeyHash: "witness_v0_keyhash",
	STWitnessV0ScriptHash: "witness_v0_scripthash",
}

func (t ScriptType) String() string {
	if s, ok := scriptTypeNames[t]; ok {
		return s
	}
	return "invalid"
}

// IsPubKeyHashScript returns whether script is a standard pay-to-pubkey-hash
// script.
func IsPubKeyHashScript(script []byte) bool {
	return extractPubKeyHash(script) != nil
}

// extractPubKeyHash extracts the public key hash from the passed script if
// it is a standard pay-to-pubkey-hash script.
func extractPubKeyHash(script []byte) []byte {
	if len(script) == 25 &&
		script[0] == OP_DUP &&
		script[1] == OP_HASH160 &&
		script[2] == OP_DATA_20 &&
		script[23] == OP_EQUALVERIFY &&
		script[24] == OP_CHECKSIG {
		return script[3:23]
	}
	return nil
}

// IsScriptHashScript returns whether script is a standard
// pay-to-script-hash script.
func IsScriptHashScript(script []byte) bool {
	return extractScriptHash(script) != nil
}

// extractScriptHash extracts the script hash from the passed script if it
// is a standard pay-to-script-hash script.
func extractScriptHash(script []byte) []byte {
	if len(script) == 23 &&
		script[0] == OP_HASH160 &&
		script[1] == OP_DATA_20 &&
		script[22] == OP_EQUAL {
		return script[2:22]
	}
	return nil
}

// IsPubKeyScript returns whether script is a standard pay-to-pubkey
// script that pays to a valid compressed or uncompressed public key.
func IsPubKeyScript(script []byte) bool {
	return extractPubKey(script) != nil
}

// extractPubKey extracts the public key from the passed script if it is
// a standard pay-to-pubkey script.
func extractPubKey(script []byte) []byte {
	if len(script) == 35 && script[0] == OP_DATA_33 && script[34] == OP_CHECKSIG &&
		isValidPubKeyEncoding(script[1:34]) {
		return script[1:34]
	}
	if len(script) == 67 && script[0] == OP_DATA_65 && script[66] == OP_CHECKSIG &&
		isValidPubKeyEncoding(script[1:66]) {
		return script[1:66]
	}
	return nil
}

func isValidPubKeyEncoding(pubKey []byte) bool {
	switch len(pubKey) {
	case 33:
		return pubKey[0] == 0x02 || pubKey[0] == 0x03
	case 65:
		return pubKey[0] == 0x04
	}
	return false
}

// IsWitnessPubKeyHashScript returns whether script is a standard
// pay-to-witness-pubkey-hash script (BIP141/BIP143).
func IsWitnessPubKeyHashScript(script []byte) bool {
	return isWitnessProgram(script, 0, 20)
}

// IsWitnessScriptHashScript returns whether script is a standard
// pay-to-witness-script-hash script.
func IsWitnessScriptHashScript(script []byte) bool {
	return isWitnessProgram(script, 0, 32)
}

// isWitnessProgram reports whether script is exactly
// OP_<version> <push of programLen bytes>, the general shape of every
// witness program (BIP141). version restricts it to v0 (the only
// version this engine recognizes as standard).
func isWitnessProgram(script []byte, version byte, programLen int) bool {
	if len(script) != 2+programLen {
		return false
	}
	if version == 0 && script[0] != OP_0 {
		return false
	}
	if version != 0 && (script[0] != OP_1+version-1) {
		return false
	}
	return int(script[1]) == programLen
}

// ExtractWitnessProgramInfo reports the version and program contained in
// a witness program script, per BIP141. ok is false if script is not a
// well-formed witness program.
func ExtractWitnessProgramInfo(script []byte) (version int, program []byte, ok bool) {
	if len(script) < 4 || len(script) > 42 {
		return 0, nil, false
	}
	op := script[0]
	if !isSmallInt(op) {
		return 0, nil, false
	}
	pushLen := int(script[1])
	if pushLen < 2 || pushLen > 40 {
		return 0, nil, false
	}
	if len(script) != 2+pushLen {
		return 0, nil, false
	}
	return asSmallInt(op), script[2:], true
}

// IsNullDataScript returns whether script is a standard null-data
// (OP_RETURN) script, used to embed arbitrary data rather than move
// value.
func IsNullDataScript(script []byte) bool {
	if len(script) < 1 || script[0] != OP_RETURN {
		return false
	}
	if len(script) == 1 {
		return true
	}
	tokens, err := tokenizeScript(script[1:])
	if err != nil {
		return false
	}
	for _, tok := range tokens {
		if tok.opcode > OP_16 {
			return false
		}
	}
	return true
}

// IsPushOnlyScript returns whether script contains only data pushes,
// the shape a standard signature script must have (ScriptVerifySigPushOnly).
func IsPushOnlyScript(script []byte) bool {
	tokens, err := tokenizeScript(script)
	if err != nil {
		return false
	}
	for _, tok := range tokens {
		if !tok.isPush() {
			return false
		}
	}
	return true
}

// IsMultisigScript returns whether script is a standard bare
// m-of-n multisig script.
func IsMultisigScript(script []byte) bool {
	details := extractMultisigScriptDetails(script, false)
	return details.valid
}

type multisigDetails struct {
	requiredSigs int
	numPubKeys   int
	pubKeys      [][]byte
	valid        bool
}

// extractMultisigScriptDetails parses a script believed to be a standard
// multisig script and returns details about it; withPubKeys controls
// whether the found public keys are returned (an allocation callers can
// skip when only checking shape).
func extractMultisigScriptDetails(script []byte, withPubKeys bool) multisigDetails {
	tokens, err := tokenizeScript(script)
	if err != nil || len(tokens) < 4 {
		return multisigDetails{}
	}

	// First token: small int OP_1..OP_16 (m).
	first := tokens[0]
	if !isSmallInt(first.opcode) {
		return multisigDetails{}
	}
	required := asSmallInt(first.opcode)

	// Last token must be OP_CHECKMULTISIG; the token before it is the
	// small int n.
	last := tokens[len(tokens)-1]
	if last.opcode != OP_CHECKMULTISIG {
		return multisigDetails{}
	}
	nTok := tokens[len(tokens)-2]
	if !isSmallInt(nTok.opcode) {
		return multisigDetails{}
	}
	n := asSmallInt(nTok.opcode)

	pubKeyTokens := tokens[1 : len(tokens)-2]
	if len(pubKeyTokens) != n || n < required || n > 20 || required < 1 {
		return multisigDetails{}
	}

	var pubKeys [][]byte
	if withPubKeys {
		pubKeys = make([][]byte, 0, n)
	}
	for _, tok := range pubKeyTokens {
		if !isValidPubKeyEncoding(tok.data) {
			return multisigDetails{}
		}
		if withPubKeys {
			pubKeys = append(pubKeys, tok.data)
		}
	}

	return multisigDetails{
		requiredSigs: required,
		numPubKeys:   n,
		pubKeys:      pubKeys,
		valid:        true,
	}
}

// GetScriptType returns the ScriptType for script, STNonStandard if it
// matches none of the recognized shapes.
func GetScriptType(script []byte) ScriptType {
	switch {
	case IsPubKeyHashScript(script):
		return STPubKeyHash
	case IsScriptHashScript(script):
		return STScriptHash
	case IsPubKeyScript(script):
		return STPubKey
	case IsWitnessPubKeyHashScript(script):
		return STWitnessV0PubKeyHash
	case IsWitnessScriptHashScript(script):
		return STWitnessV0ScriptHash
	case IsMultisigScript(script):
		return STMultiSig
	case IsNullDataScript(script):
		return STNullData
	default:
		return STNonStandard
	}
}
