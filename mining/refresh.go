package mining

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/AGPFMiner/poolbridge/crypto"
	"github.com/AGPFMiner/poolbridge/types"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// RefreshParams asks the pool for the current round parameters and, on a
// fully decoded response, swaps them in as the new snapshot. A response
// with a missing or malformed field leaves the previous snapshot untouched
// and surfaces a protocol error, stale parameters are preferable to a
// half-applied round.
func (mc *MiningContext) RefreshParams() error {
	mc.log.Debug("asking mining params", zap.String("pool_id", mc.PoolID))

	fields, err := mc.client.GetMiningParams(mc.PoolID)
	if err != nil {
		return err
	}
	params, err := decodeMiningParams(fields)
	if err != nil {
		return err
	}
	mc.SetParams(*params)
	mc.log.Info("mining params applied",
		zap.String("pre_hash", params.PreHash.Hex()),
		zap.String("parent_hash", params.ParentHash.Hex()),
		zap.String("pow_difficulty", params.PowDifficulty.Text(16)))
	return nil
}

// decodeMiningParams decodes the five positional response fields, in
// order: pre-hash, parent-hash, win-difficulty, pow-difficulty, pool
// public key. Every field is decoded independently so one bad value names
// itself in the error.
func decodeMiningParams(fields []interface{}) (*types.MiningParams, error) {
	if len(fields) < 5 {
		return nil, &types.ProtocolError{Reason: "incomplete response from pool node"}
	}
	preHash, err := hashField(fields[0], "pre_hash")
	if err != nil {
		return nil, err
	}
	parentHash, err := hashField(fields[1], "parent_hash")
	if err != nil {
		return nil, err
	}
	winDifficulty, err := u256Field(fields[2], "win_difficulty")
	if err != nil {
		return nil, err
	}
	powDifficulty, err := u256Field(fields[3], "pow_difficulty")
	if err != nil {
		return nil, err
	}
	pubKey, err := pubKeyField(fields[4])
	if err != nil {
		return nil, err
	}
	return &types.MiningParams{
		PreHash:       preHash,
		ParentHash:    parentHash,
		WinDifficulty: winDifficulty,
		PowDifficulty: powDifficulty,
		PubKey:        pubKey,
	}, nil
}

//hexField converts a hex encoded response field (as interface{}) to a string
// with any 0x prefix stripped. If v is no valid string an error is returned
func hexField(v interface{}, name string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", &types.ProtocolError{Reason: name + ": not a valid string"}
	}
	return strings.TrimPrefix(s, "0x"), nil
}

func hashField(v interface{}, name string) (common.Hash, error) {
	s, err := hexField(v, name)
	if err != nil {
		return common.Hash{}, err
	}
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, &types.ProtocolError{Reason: name + ": not a valid 256-bit hash"}
	}
	return common.BytesToHash(raw), nil
}

func u256Field(v interface{}, name string) (*big.Int, error) {
	s, err := hexField(v, name)
	if err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok || n.Sign() < 0 || n.BitLen() > 256 {
		return nil, &types.ProtocolError{Reason: name + ": not a valid 256-bit integer"}
	}
	return n, nil
}

// pubKeyField interprets the big-endian bytes of the 256-bit integer as a
// compressed curve point, the coordinator publishes the key byte-reversed
// from its little-endian integer encoding.
func pubKeyField(v interface{}) (crypto.PublicKey, error) {
	n, err := u256Field(v, "pub_key")
	if err != nil {
		return crypto.PublicKey{}, err
	}
	pub, err := crypto.PublicKeyFromBytes(n.FillBytes(make([]byte, crypto.PublicKeySize)))
	if err != nil {
		return crypto.PublicKey{}, &types.ProtocolError{Reason: "pub_key: not a valid curve point"}
	}
	return pub, nil
}
