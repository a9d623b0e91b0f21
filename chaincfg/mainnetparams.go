// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"
	"time"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
)

// genesisCoinbaseTx is the coinbase transaction for the genesis blocks
// shared across all four standard networks.
func genesisCoinbaseTx(scriptSig []byte, pkScript []byte) wire.MsgTx {
	return wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{
				Hash:  chainhash.Hash{},
				Index: 0xffffffff,
			},
			SignatureScript: scriptSig,
			Sequence:        0xffffffff,
		}},
		TxOut: []*wire.TxOut{{
			Value:    50 * 1e8,
			PkScript: pkScript,
		}},
		LockTime: 0,
	}
}

// mainGenesisScriptSig and mainGenesisPkScript reproduce Satoshi's
// original genesis coinbase, byte for byte, so GenesisHash matches the
// well-known mainnet value.
var (
	mainGenesisScriptSig = hexDecode("04ffff001d0104455468652054696d65" +
		"73203033312f4a616e2f32303039204368616e63656c6c6f72206f6e206272" +
		"696e6b206f66207365636f6e64206261696c6f757420666f722062616e6b73")
	mainGenesisPkScript = hexDecode("4104678afdb0fe5548271967f1a67130" +
		"b7105cd6a828e03909a67962e0ea1f61deb649f6bc3f4cef38c4f35504e51e" +
		"c112de5c384df7ba0b8d578a4c702b6bf11d5fac")
)

// MainNetParams returns the network parameters for the main Bitcoin
// network.
func MainNetParams() *Params {
	mainPowLimit := new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

	coinbase := genesisCoinbaseTx(mainGenesisScriptSig, mainGenesisPkScript)
	genesisBlock := wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:    1,
			PrevBlock:  chainhash.Hash{},
			Timestamp:  time.Unix(1231006505, 0),
			Bits:       0x1d00ffff,
			Nonce:      2083236893,
		},
		Transactions: []*wire.MsgTx{&coinbase},
	}
	genesisBlock.Header.MerkleRoot = coinbase.TxHash()

	return &Params{
		Name:        "mainnet",
		Net:         wire.MainNet,
		DefaultPort: "8333",
		DNSSeeds: []DNSSeed{
			{"seed.bitcoin.sipa.be", true},
			{"dnsseed.bluematt.me", true},
			{"dnsseed.bitcoin.dashjr.org", false},
			{"seed.bitcoinstats.com", true},
			{"seed.bitcoin.jonasschnelli.ch", true},
			{"seed.btc.petertodd.org", true},
		},

		GenesisBlock: &genesisBlock,
		GenesisHash:  genesisBlock.BlockHash(),
		PowLimit:     mainPowLimit,
		PowLimitBits: 0x1d00ffff,

		BIP0034Height: 227931,
		BIP0065Height: 388381,
		BIP0066Height: 363725,
		CSVHeight:     419328,
		SegwitHeight:  481824,

		CoinbaseMaturity:         100,
		SubsidyReductionInterval: 210000,
		BaseSubsidy:              50 * 1e8,

		PowTargetTimespan:        time.Hour * 24 * 14,
		PowTargetSpacing:         time.Minute * 10,
		RetargetAdjustmentFactor: 4,
		ReduceMinDifficulty:      false,
		NoDifficultyRetargeting:  false,
		GenerateSupported:        false,

		RuleChangeActivationThreshold: 1916, // 95% of MinerConfirmationWindow
		MinerConfirmationWindow:       2016,
		Deployments: [DefinedDeployments]ConsensusDeployment{
			DeploymentTestDummy: {BitNumber: 28, StartTime: 1199145601, ExpireTime: 1230767999},
			DeploymentCSV:       {BitNumber: 0, StartTime: 1462060800, ExpireTime: 1493596800},
			DeploymentSegwit:    {BitNumber: 1, StartTime: 1479168000, ExpireTime: 1510704000},
		},

		Checkpoints: []Checkpoint{
			{11111, newHashFromStr("0000000069e244f73d78e8fd29ba2fd2ed618bd6fa2ee92559f542fdb26e7c1d")},
			{33333, newHashFromStr("000000002dd5588a74784eaa7ab0507a18ad16a236e7b1ce69f00d7ddfb5d0a6")},
			{210000, newHashFromStr("000000000000048b95347e83192f69cf0366076336c639f9b7228e9ba171342e")},
			{400000, newHashFromStr("000000000000000004ec466ce4732fe6f1ed1cddc2ed4b328fff5224276e3f6f")},
			{600000, newHashFromStr("00000000000000000007316856900e76b4f7a9139cfbfba89842c8d196cd5f91")},
		},

		AssumeValid:       *newHashFromStr("0000000000000000000b9d2ec5a352ecba0592946514a92b9627342caa86b5e"),
		MinKnownChainWork: hexToBigInt("0000000000000000000000000000000000000000a0f3064e953cbba42aed2c1b"),

		AcceptNonStdTxs: false,
		FreeThreshold:   576.0 * 1e8 / 250,
		FeeHalfLife:     time.Hour,

		PubKeyHashAddrID: 0x00,
		ScriptHashAddrID: 0x05,
		PrivateKeyID:     0x80,
		Bech32HRPSegwit:  "bc",

		HDPrivateKeyID: [4]byte{0x04, 0x88, 0xad, 0xe4}, // xprv
		HDPublicKeyID:  [4]byte{0x04, 0x88, 0xb2, 0x1e},  // xpub

		HDCoinType: 0,
	}
}

// hexToBigInt parses a hex string into a big.Int, panicking on
// malformed input; only ever called with constants in this file.
func hexToBigInt(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("chaincfg: invalid hex constant " + s)
	}
	return n
}
