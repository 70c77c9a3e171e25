package types

import (
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/AGPFMiner/poolbridge/crypto"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Pool describes the remote coordinator and the identity this bridge
// presents to it.
type Pool struct {
	URL      string `json:"url" mapstructure:"url"`
	PoolID   string `json:"poolid" mapstructure:"poolid"`
	MemberID string `json:"memberid" mapstructure:"memberid"`
	Key      string `json:"key" mapstructure:"key"`
	Algo     string `json:"algo" mapstructure:"algo"`
}

type PoolConnectionStates int

const (
	NotReady PoolConnectionStates = iota + 1
	Alive
	Sick
	Dead
)

// AlgoType is the closed set of supported search-algorithm variants.
type AlgoType int

const (
	Grid2d AlgoType = iota + 1
	Grid2dV2
	Grid2dV3
)

// String returns the stable wire name of the algorithm variant.
func (a AlgoType) String() string {
	switch a {
	case Grid2d:
		return "Grid2d"
	case Grid2dV2:
		return "Grid2dV2"
	case Grid2dV3:
		return "Grid2dV3"
	}
	return "unknown"
}

// SearchParams is the static shape of the search space, fixed at
// construction.
type SearchParams struct {
	Algo AlgoType
	Grid uint
	Sect uint
}

// SearchParamsFrom maps a configured algorithm name to its search
// parameters. Unknown names are a configuration error, they must fail
// startup rather than default.
func SearchParamsFrom(ver string) (SearchParams, error) {
	const grid = 8
	switch ver {
	case "grid2d":
		return SearchParams{Algo: Grid2d, Grid: grid, Sect: 66}, nil
	case "grid2d_v2":
		return SearchParams{Algo: Grid2dV2, Grid: grid, Sect: 12}, nil
	case "grid2d_v3":
		return SearchParams{Algo: Grid2dV3, Grid: grid, Sect: 12}, nil
	}
	return SearchParams{}, &ConfigError{Field: "algo", Reason: "unknown algorithm: " + ver}
}

// MiningParams is one round-parameter snapshot. It is replaced wholesale
// on refresh, never merged.
type MiningParams struct {
	PreHash       common.Hash
	ParentHash    common.Hash
	WinDifficulty *big.Int
	PowDifficulty *big.Int
	PubKey        crypto.PublicKey
}

// MiningObj is a locally discovered candidate as submitted by the search
// process.
type MiningObj struct {
	ObjID uint64
	Obj   []byte
}

// MiningProposal binds a candidate hash to the exact snapshot that was
// active when it was produced. Immutable once created.
type MiningProposal struct {
	Params MiningParams
	Hash   common.Hash
	ObjID  uint64
	Obj    []byte
}

// Payload is the wire form pushed to the pool, derived from a proposal
// plus static identity. Field order matters to the coordinator's decoder.
type Payload struct {
	PoolID     string       `json:"pool_id"`
	MemberID   string       `json:"member_id"`
	PreHash    common.Hash  `json:"pre_hash"`
	ParentHash common.Hash  `json:"parent_hash"`
	Algo       string       `json:"algo"`
	Difficulty *hexutil.Big `json:"dfclty"`
	Hash       common.Hash  `json:"hash"`
	ObjID      uint64       `json:"obj_id"`
	Obj        ByteArray    `json:"obj"`
}

// ByteArray is a byte slice that crosses JSON as an array of numbers,
// which is how the coordinator decodes byte payloads.
type ByteArray []byte

func (b ByteArray) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, len(b)*4+2)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return append(out, ']'), nil
}

func (b *ByteArray) UnmarshalJSON(data []byte) error {
	var raw []uint16
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]byte, len(raw))
	for i, v := range raw {
		if v > 0xff {
			return &ProtocolError{Reason: "byte value out of range"}
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// BridgeStates is the status payload served over the bridge's API.
type BridgeStates struct {
	Status        PoolConnectionStates `json:"status"`
	PoolAddr      string               `json:"pooladdr"`
	PoolID        string               `json:"poolid"`
	MemberID      string               `json:"memberid"`
	Algo          string               `json:"algo"`
	Accepted      int32                `json:"accepted"`
	Proposed      int32                `json:"proposed"`
	Submitted     int32                `json:"submitted"`
	Rejected      int32                `json:"rejected"`
	LastSubmitted int64                `json:"lastsubmitted"`
	InQueue       int                  `json:"inqueue"`
	OutQueue      int                  `json:"outqueue"`
	SubmitRate    float64              `json:"submitrate"`
	Time          int64                `json:"time"`
}
