//Package clients provides some utilities and common code for clients
// towards a pool coordinator node
package clients

// PoolCaller defines the required methods a pool client should implement
// for the bridge to be able to refresh round parameters and push proposals
type PoolCaller interface {
	//GetMiningParams fetches the current round parameters for a pool as
	// positional, string-encoded fields
	GetMiningParams(poolID string) ([]interface{}, error)
	//PushMiningObject submits an encrypted, signed proposal envelope
	PushMiningObject(ciphertext []byte, memberID string, signature string) error
}
