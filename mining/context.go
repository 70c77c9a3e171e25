//Package mining holds the shared mining context and its operations:
// candidate acceptance, round-parameter refresh and proposal submission.
package mining

import (
	"encoding/hex"
	"strings"
	"sync"

	"github.com/AGPFMiner/poolbridge/clients"
	"github.com/AGPFMiner/poolbridge/crypto"
	"github.com/AGPFMiner/poolbridge/types"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

//Args carries everything a MiningContext needs at construction
type Args struct {
	Pool   types.Pool
	Client clients.PoolCaller
	Logger *zap.Logger
}

// MiningContext is the shared state container. One instance is handed by
// reference to every concurrently running operation. Each mutable field
// sits under its own mutex; no mutex is held across a network call.
type MiningContext struct {
	SearchParams types.SearchParams
	PoolID       string
	MemberID     string

	signer *crypto.Signer
	client clients.PoolCaller
	log    *zap.Logger

	stateMu  sync.Mutex
	curState *types.MiningParams

	inMu    sync.Mutex
	inQueue []types.MiningObj

	outMu    sync.Mutex
	outQueue []types.MiningProposal
}

// NewMiningContext validates the configured identity and expands the
// secret seed into a signing keypair. Any validation failure is a
// configuration error and must prevent startup.
func NewMiningContext(args Args) (*MiningContext, error) {
	searchParams, err := types.SearchParamsFrom(args.Pool.Algo)
	if err != nil {
		return nil, err
	}
	seed, err := decodeSeed(args.Pool.Key)
	if err != nil {
		return nil, err
	}
	signer, err := crypto.NewSigner(seed)
	if err != nil {
		return nil, &types.ConfigError{Field: "key", Reason: err.Error()}
	}
	logger := args.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MiningContext{
		SearchParams: searchParams,
		PoolID:       args.Pool.PoolID,
		MemberID:     args.Pool.MemberID,
		signer:       signer,
		client:       args.Client,
		log:          logger,
	}, nil
}

func decodeSeed(key string) ([crypto.SeedSize]byte, error) {
	var seed [crypto.SeedSize]byte
	raw, err := hex.DecodeString(strings.Replace(key, "0x", "", 1))
	if err != nil {
		return seed, &types.ConfigError{Field: "key", Reason: "not a valid hexadecimal value"}
	}
	if len(raw) != crypto.SeedSize {
		return seed, &types.ConfigError{Field: "key", Reason: "seed must be 32 bytes"}
	}
	copy(seed[:], raw)
	return seed, nil
}

//Signer exposes the long-term signing keypair
func (mc *MiningContext) Signer() *crypto.Signer {
	return mc.signer
}

//PushObject appends a candidate object to the inbound queue
func (mc *MiningContext) PushObject(obj types.MiningObj) {
	mc.inMu.Lock()
	defer mc.inMu.Unlock()
	mc.inQueue = append(mc.inQueue, obj)
}

//PopObject removes the oldest queued object; exactly one caller sees it
func (mc *MiningContext) PopObject() (types.MiningObj, bool) {
	mc.inMu.Lock()
	defer mc.inMu.Unlock()
	if len(mc.inQueue) == 0 {
		return types.MiningObj{}, false
	}
	obj := mc.inQueue[0]
	mc.inQueue = mc.inQueue[1:]
	return obj, true
}

//InQueueLen reports the inbound queue depth
func (mc *MiningContext) InQueueLen() int {
	mc.inMu.Lock()
	defer mc.inMu.Unlock()
	return len(mc.inQueue)
}

//PushProposal appends a completed proposal to the outbound queue
func (mc *MiningContext) PushProposal(proposal types.MiningProposal) {
	mc.outMu.Lock()
	defer mc.outMu.Unlock()
	mc.outQueue = append(mc.outQueue, proposal)
}

//PopProposal removes the oldest queued proposal
func (mc *MiningContext) PopProposal() (types.MiningProposal, bool) {
	mc.outMu.Lock()
	defer mc.outMu.Unlock()
	if len(mc.outQueue) == 0 {
		return types.MiningProposal{}, false
	}
	proposal := mc.outQueue[0]
	mc.outQueue = mc.outQueue[1:]
	return proposal, true
}

//OutQueueLen reports the outbound queue depth
func (mc *MiningContext) OutQueueLen() int {
	mc.outMu.Lock()
	defer mc.outMu.Unlock()
	return len(mc.outQueue)
}

// CurrentParams returns a copy of the current round snapshot. The second
// return is false until the first successful refresh.
func (mc *MiningContext) CurrentParams() (types.MiningParams, bool) {
	mc.stateMu.Lock()
	defer mc.stateMu.Unlock()
	if mc.curState == nil {
		return types.MiningParams{}, false
	}
	var snapshot types.MiningParams
	if err := copier.Copy(&snapshot, mc.curState); err != nil {
		return *mc.curState, true
	}
	return snapshot, true
}

// SetParams replaces the round snapshot in a single swap. Readers never
// observe a partially written snapshot.
func (mc *MiningContext) SetParams(params types.MiningParams) {
	mc.stateMu.Lock()
	defer mc.stateMu.Unlock()
	mc.curState = &params
}
