package mining

import (
	"encoding/hex"
	"encoding/json"

	"github.com/AGPFMiner/poolbridge/crypto"
	"github.com/AGPFMiner/poolbridge/types"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

//SignContext is the domain-separation context for proposal signatures
const SignContext = "Mining pool"

// PushToNode packages a completed proposal and submits it to the pool:
// serialize, encrypt under the snapshot's pool key, sign the ciphertext,
// push. The proposal carries its own frozen snapshot, shared state is not
// read here. Failures propagate unmodified; there is no internal retry.
func (mc *MiningContext) PushToNode(proposal types.MiningProposal) error {
	payload, err := mc.buildPayload(proposal)
	if err != nil {
		return err
	}
	message, err := json.Marshal(payload)
	if err != nil {
		return &types.InvariantError{Op: "encode payload", Err: err}
	}
	encrypted, err := encryptPayload(proposal, message)
	if err != nil {
		return err
	}
	sig, err := mc.signer.Sign([]byte(SignContext), encrypted)
	if err != nil {
		return &types.InvariantError{Op: "sign ciphertext", Err: err}
	}
	if err := mc.client.PushMiningObject(encrypted, mc.MemberID, hex.EncodeToString(sig)); err != nil {
		return err
	}
	mc.log.Info("proposal pushed to pool",
		zap.Uint64("obj_id", proposal.ObjID),
		zap.String("hash", proposal.Hash.Hex()))
	return nil
}

// buildPayload derives the wire payload from the proposal and static
// identity only.
func (mc *MiningContext) buildPayload(proposal types.MiningProposal) (types.Payload, error) {
	payload := types.Payload{
		PoolID:     mc.PoolID,
		MemberID:   mc.MemberID,
		Algo:       mc.SearchParams.Algo.String(),
		Difficulty: (*hexutil.Big)(proposal.Params.PowDifficulty),
		Hash:       proposal.Hash,
		ObjID:      proposal.ObjID,
		Obj:        types.ByteArray(proposal.Obj),
	}
	// PreHash and ParentHash come straight off the frozen snapshot
	if err := copier.Copy(&payload, &proposal.Params); err != nil {
		return types.Payload{}, &types.InvariantError{Op: "copy snapshot fields", Err: err}
	}
	return payload, nil
}

// encryptPayload seals the serialized payload under the proposal's pool
// key, drawing all randomness from the hash-derived seed stream so the
// ciphertext is deterministic for a given proposal (wire requirement, see
// crypto.ProposalSeed).
func encryptPayload(proposal types.MiningProposal, message []byte) ([]byte, error) {
	rng, err := crypto.NewSeedReader(crypto.ProposalSeed(proposal.Hash))
	if err != nil {
		return nil, &types.InvariantError{Op: "seed encryption rng", Err: err}
	}
	encrypted, err := crypto.Encrypt(proposal.Params.PubKey, message, rng)
	if err != nil {
		return nil, &types.InvariantError{Op: "encrypt payload", Err: err}
	}
	return encrypted, nil
}
