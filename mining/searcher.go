package mining

import (
	"math/big"
	"sync"

	"github.com/AGPFMiner/poolbridge/types"

	"github.com/ethereum/go-ethereum/common"
)

// Searcher computes candidate hashes for an object against a round's
// header hashes. Implementations wrap the external search library picked
// by configuration; this package only dispatches on the algorithm variant.
type Searcher interface {
	Search(params types.SearchParams, preHash, parentHash common.Hash, obj []byte) ([]common.Hash, error)
}

var (
	searchersMu sync.Mutex
	searchers   = make(map[types.AlgoType]Searcher)
)

//RegisterSearcher binds an algorithm variant to its search implementation
func RegisterSearcher(algo types.AlgoType, s Searcher) {
	searchersMu.Lock()
	defer searchersMu.Unlock()
	searchers[algo] = s
}

//SearcherFor looks up the search implementation for an algorithm variant
func SearcherFor(algo types.AlgoType) (Searcher, error) {
	searchersMu.Lock()
	defer searchersMu.Unlock()
	s, ok := searchers[algo]
	if !ok {
		return nil, &types.ConfigError{Field: "algo", Reason: "no searcher registered for " + algo.String()}
	}
	return s, nil
}

//MeetsDifficulty reports whether a candidate hash, read as a 256-bit
// big-endian integer, satisfies the difficulty target
func MeetsDifficulty(hash common.Hash, difficulty *big.Int) bool {
	hashInt := new(big.Int).SetBytes(hash[:])
	return hashInt.Cmp(difficulty) < 1
}
