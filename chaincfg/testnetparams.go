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

// TestNet3Params returns the network parameters for the test Bitcoin
// network (version 3).
func TestNet3Params() *Params {
	testPowLimit := new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

	coinbase := genesisCoinbaseTx(mainGenesisScriptSig, mainGenesisPkScript)
	genesisBlock := wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			PrevBlock: chainhash.Hash{},
			Timestamp: time.Unix(1296688602, 0),
			Bits:      0x1d00ffff,
			Nonce:     414098458,
		},
		Transactions: []*wire.MsgTx{&coinbase},
	}
	genesisBlock.Header.MerkleRoot = coinbase.TxHash()

	return &Params{
		Name:        "testnet3",
		Net:         wire.TestNet3,
		DefaultPort: "18333",
		DNSSeeds: []DNSSeed{
			{"testnet-seed.bitcoin.jonasschnelli.ch", true},
			{"seed.tbtc.petertodd.org", true},
			{"seed.testnet.bitcoin.sprovoost.nl", true},
		},

		GenesisBlock: &genesisBlock,
		GenesisHash:  genesisBlock.BlockHash(),
		PowLimit:     testPowLimit,
		PowLimitBits: 0x1d00ffff,

		BIP0034Height: 21111,
		BIP0065Height: 581885,
		BIP0066Height: 330776,
		CSVHeight:     770112,
		SegwitHeight:  834624,

		CoinbaseMaturity:         100,
		SubsidyReductionInterval: 210000,
		BaseSubsidy:              50 * 1e8,

		PowTargetTimespan:        time.Hour * 24 * 14,
		PowTargetSpacing:         time.Minute * 10,
		RetargetAdjustmentFactor: 4,
		ReduceMinDifficulty:      true,
		MinDiffReductionTime:     time.Minute * 20,
		NoDifficultyRetargeting:  false,
		GenerateSupported:        false,

		RuleChangeActivationThreshold: 1512, // 75% of MinerConfirmationWindow
		MinerConfirmationWindow:       2016,
		Deployments: [DefinedDeployments]ConsensusDeployment{
			DeploymentTestDummy: {BitNumber: 28, StartTime: 1199145601, ExpireTime: 1230767999},
			DeploymentCSV:       {BitNumber: 0, StartTime: 1456790400, ExpireTime: 1493596800},
			DeploymentSegwit:    {BitNumber: 1, StartTime: 1462060800, ExpireTime: 1493596800},
		},

		Checkpoints: []Checkpoint{
			{546, newHashFromStr("000000002a936ca763904c3c35fce2f3556c559c0214345d31b1bcebf76acb70")},
		},

		AssumeValid:       *newHashFromStr("000000000000006433d1efec504c53ca332b64963c425395515b01977bd7b3b"),
		MinKnownChainWork: hexToBigInt("0000000000000000000000000000000000000000000000060abbb8a9a65e90"),

		AcceptNonStdTxs: true,
		FreeThreshold:   576.0 * 1e8 / 250,
		FeeHalfLife:     time.Hour,

		PubKeyHashAddrID: 0x6f,
		ScriptHashAddrID: 0xc4,
		PrivateKeyID:     0xef,
		Bech32HRPSegwit:  "tb",

		HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94}, // tprv
		HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf},  // tpub

		HDCoinType: 1,
	}
}

// RegressionNetParams returns the network parameters for the regression
// test network, used for local integration testing.
func RegressionNetParams() *Params {
	regressionPowLimit := new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)

	coinbase := genesisCoinbaseTx(mainGenesisScriptSig, mainGenesisPkScript)
	genesisBlock := wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			PrevBlock: chainhash.Hash{},
			Timestamp: time.Unix(1296688602, 0),
			Bits:      0x207fffff,
			Nonce:     2,
		},
		Transactions: []*wire.MsgTx{&coinbase},
	}
	genesisBlock.Header.MerkleRoot = coinbase.TxHash()

	return &Params{
		Name:        "regtest",
		Net:         wire.RegTest,
		DefaultPort: "18444",
		DNSSeeds:    nil,

		GenesisBlock: &genesisBlock,
		GenesisHash:  genesisBlock.BlockHash(),
		PowLimit:     regressionPowLimit,
		PowLimitBits: 0x207fffff,

		BIP0034Height: 100000000,
		BIP0065Height: 1351,
		BIP0066Height: 1251,
		CSVHeight:     432,
		SegwitHeight:  0,

		CoinbaseMaturity:         100,
		SubsidyReductionInterval: 150,
		BaseSubsidy:              50 * 1e8,

		PowTargetTimespan:        time.Hour * 24 * 14,
		PowTargetSpacing:         time.Minute * 10,
		RetargetAdjustmentFactor: 4,
		ReduceMinDifficulty:      true,
		MinDiffReductionTime:     time.Minute * 20,
		NoDifficultyRetargeting:  true,
		GenerateSupported:        true,

		RuleChangeActivationThreshold: 108, // 75% of MinerConfirmationWindow
		MinerConfirmationWindow:       144,
		Deployments: [DefinedDeployments]ConsensusDeployment{
			DeploymentTestDummy: {BitNumber: 28},
			DeploymentCSV:       {BitNumber: 0},
			DeploymentSegwit:    {BitNumber: 1},
		},

		Checkpoints: nil,

		AcceptNonStdTxs: true,
		FreeThreshold:   576.0 * 1e8 / 250,
		FeeHalfLife:     time.Hour,

		PubKeyHashAddrID: 0x6f,
		ScriptHashAddrID: 0xc4,
		PrivateKeyID:     0xef,
		Bech32HRPSegwit:  "bcrt",

		HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94},
		HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf},

		HDCoinType: 1,
	}
}

// SimNetParams returns the network parameters for the simulation test
// network, used for driving fast local test networks without any
// public peers.
func SimNetParams() *Params {
	simNetPowLimit := new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)

	coinbase := genesisCoinbaseTx(mainGenesisScriptSig, mainGenesisPkScript)
	genesisBlock := wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			PrevBlock: chainhash.Hash{},
			Timestamp: time.Unix(1401292357, 0),
			Bits:      0x207fffff,
			Nonce:     2,
		},
		Transactions: []*wire.MsgTx{&coinbase},
	}
	genesisBlock.Header.MerkleRoot = coinbase.TxHash()

	return &Params{
		Name:        "simnet",
		Net:         wire.SimNet,
		DefaultPort: "18555",
		DNSSeeds:    nil,

		GenesisBlock: &genesisBlock,
		GenesisHash:  genesisBlock.BlockHash(),
		PowLimit:     simNetPowLimit,
		PowLimitBits: 0x207fffff,

		BIP0034Height: 0,
		BIP0065Height: 0,
		BIP0066Height: 0,
		CSVHeight:     0,
		SegwitHeight:  0,

		CoinbaseMaturity:         100,
		SubsidyReductionInterval: 210000,
		BaseSubsidy:              50 * 1e8,

		PowTargetTimespan:        time.Hour * 24 * 14,
		PowTargetSpacing:         time.Minute * 10,
		RetargetAdjustmentFactor: 4,
		ReduceMinDifficulty:      true,
		MinDiffReductionTime:     time.Minute * 20,
		NoDifficultyRetargeting:  true,
		GenerateSupported:        true,

		RuleChangeActivationThreshold: 75, // 75% of MinerConfirmationWindow
		MinerConfirmationWindow:       100,
		Deployments: [DefinedDeployments]ConsensusDeployment{
			DeploymentTestDummy: {BitNumber: 28},
			DeploymentCSV:       {BitNumber: 0},
			DeploymentSegwit:    {BitNumber: 1},
		},

		Checkpoints: nil,

		AcceptNonStdTxs: true,
		FreeThreshold:   576.0 * 1e8 / 250,
		FeeHalfLife:     time.Hour,

		PubKeyHashAddrID: 0x3f,
		ScriptHashAddrID: 0x7b,
		PrivateKeyID:     0x64,
		Bech32HRPSegwit:  "sb",

		HDPrivateKeyID: [4]byte{0x04, 0x20, 0xb9, 0x00},
		HDPublicKeyID:  [4]byte{0x04, 0x20, 0xbd, 0x3a},

		HDCoinType: 115,
	}
}
