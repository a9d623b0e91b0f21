// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"encoding/hex"
	"errors"
	"math/big"
	"time"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
)

// DNSSeed identifies a DNS seed host, and whether it supports filtering
// by service bit via an SRV-style lookup.
type DNSSeed struct {
	Host string
	HasFiltering bool
}

// Checkpoint identifies a block by height and hash that has been
// externally verified. A fork contradicting a checkpoint fails
// immediately with score 100.
type Checkpoint struct {
	Height int64
	Hash *chainhash.Hash
}

// ConsensusDeployment defines the specific parameters used for a single
// BIP9/BIP341-style versionbits soft-fork deployment.
type ConsensusDeployment struct {
	// BitNumber is the bit position, 0-28, this deployment uses in the
	// block version field.
	BitNumber uint8

	// StartTime is the median time past at or after which voting on the
	// deployment begins. Zero starts voting at the first window boundary
	// evaluated, whatever its median time.
	StartTime uint64

	// ExpireTime is the median time past at or after which the
	// deployment is considered failed if it has not locked in.
	ExpireTime uint64
}

// Deployment bit identifiers, indexing into Params.Deployments.
const (
	DeploymentTestDummy = iota
	DeploymentCSV
	DeploymentSegwit
	DefinedDeployments
)

// Params defines a Bitcoin-style network's consensus and addressing
// parameters, threaded through the chain engine, chain store, mempool,
// and address index (NetworkParams).
type Params struct {
	Name string
	Net wire.BitcoinNet
	DefaultPort string
	DNSSeeds []DNSSeed

	// Chain parameters.
	GenesisBlock *wire.MsgBlock
	GenesisHash chainhash.Hash
	PowLimit *big.Int
	PowLimitBits uint32
	BIP0034Height int32
	BIP0065Height int32
	BIP0066Height int32

	// CoinbaseMaturity is the number of blocks required before newly
	// generated coins (COINBASE_MATURITY) may be spent.
	CoinbaseMaturity uint16

	// SubsidyReductionInterval is the number of blocks between halvings.
	SubsidyReductionInterval int32
	BaseSubsidy int64

	// Retarget parameters.
	PowTargetTimespan time.Duration
	PowTargetSpacing time.Duration
	RetargetAdjustmentFactor int64
	ReduceMinDifficulty bool
	MinDiffReductionTime time.Duration
	NoDifficultyRetargeting bool
	GenerateSupported bool

	// BIP68/112/113 relative lock-time activation and BIP141 segwit
	// activation height.
	CSVHeight int32
	SegwitHeight int32

	// RuleChangeActivationThreshold is the number of blocks in a
	// MinerConfirmationWindow window (the "miner confirmation window")
	// that must signal for a deployment to lock in.
	RuleChangeActivationThreshold uint32
	MinerConfirmationWindow uint32
	Deployments [DefinedDeployments]ConsensusDeployment

	// Checkpoints, ordered oldest to newest.
	Checkpoints []Checkpoint

	// AssumeValid is a block hash past which script verification may be
	// skipped, provided the block is known to be an ancestor of the
	// best header.
	AssumeValid chainhash.Hash

	// MinKnownChainWork is the minimum accumulated chainwork a peer's
	// best chain must present before it is considered as a sync
	// candidate worth committing resources to.
	MinKnownChainWork *big.Int

	// Mempool policy knobs threaded from chaincfg so a single Params
	// value configures the whole node.
	AcceptNonStdTxs bool
	FreeThreshold float64
	FeeHalfLife time.Duration

	// Address encoding magics.
	PubKeyHashAddrID byte
	ScriptHashAddrID byte
	PrivateKeyID byte
	Bech32HRPSegwit string

	// BIP32 hierarchical deterministic extended key magics.
	HDPrivateKeyID [4]byte
	HDPublicKeyID [4]byte

	// HDCoinType is the BIP44 coin type used in the hierarchical
	// deterministic path for address generation.
	HDCoinType uint32
}

// bigOne is 1 represented as a big.Int; shared by the retarget limit
// computations in each network's Params constructor.
var bigOne = big.NewInt(1)

// ErrDuplicateNet is returned if a network is added more than once.
var ErrDuplicateNet = errors.New("duplicate Bitcoin network")

func hexDecode(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func newHashFromStr(hexStr string) *chainhash.Hash {
	hash, err := chainhash.NewHashFromStr(hexStr)
	if err != nil {
		panic(err)
	}
	return hash
}

// BigToCompact converts a whole number N to a compact representation
// using an unsigned 32-bit number, matching Bitcoin's "nBits" target
// encoding. It is the inverse of CompactToBig, and is exported for the
// chain engine's difficulty retarget.
func BigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}

	exponent := uint(len(n.Bytes()))
	var mantissa uint32
	if exponent <= 3 {
		mantissa = uint32(n.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		tn := new(big.Int).Set(n)
		mantissa = uint32(new(big.Int).Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent<<24) | mantissa
	if n.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}

// CompactToBig converts a compact representation of a whole number N to
// a big.Int, the inverse of BigToCompact.
func CompactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	isNegative := compact&0x00800000 != 0
	exponent := uint(compact >> 24)

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	if isNegative {
		bn = bn.Neg(bn)
	}
	return bn
}
