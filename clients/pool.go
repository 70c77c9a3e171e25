package clients

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/AGPFMiner/poolbridge/types"

	"github.com/gorilla/rpc/v2/json2"
)

const (
	//MethodGetMiningParams is the pool call returning round parameters
	MethodGetMiningParams = "poscan_getMiningParams"
	//MethodPushMiningObject is the pool call accepting proposal envelopes
	MethodPushMiningObject = "poscan_pushMiningObjectToPool"
)

//PoolClient is a JSON-RPC 2.0 client towards the pool coordinator over HTTP
type PoolClient struct {
	URL        string
	HTTPClient *http.Client
}

// NewPoolClient creates a new PoolClient given a 'http://host:port'
// connectionstring
func NewPoolClient(url string) *PoolClient {
	return &PoolClient{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

//Call issues a single positional JSON-RPC request and decodes the result
// into reply
func (pc *PoolClient) Call(method string, args interface{}, reply interface{}) error {
	body, err := json2.EncodeClientRequest(method, args)
	if err != nil {
		return &types.InvariantError{Op: method, Err: err}
	}
	resp, err := pc.HTTPClient.Post(pc.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		return &types.TransportError{Op: method, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &types.TransportError{Op: method, Err: errors.New(resp.Status)}
	}
	if err := json2.DecodeClientResponse(resp.Body, reply); err != nil {
		return &types.ProtocolError{Reason: method + ": " + err.Error()}
	}
	return nil
}

//GetMiningParams asks the pool for the current round parameters, returned
// as positional fields for the caller to decode one by one
func (pc *PoolClient) GetMiningParams(poolID string) ([]interface{}, error) {
	var fields []interface{}
	if err := pc.Call(MethodGetMiningParams, []interface{}{poolID}, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

//PushMiningObject submits (ciphertext, member id, hex signature) to the pool
func (pc *PoolClient) PushMiningObject(ciphertext []byte, memberID string, signature string) error {
	params := []interface{}{types.ByteArray(ciphertext), memberID, signature}
	var ack interface{}
	return pc.Call(MethodPushMiningObject, params, &ack)
}
