package bridge

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/gorilla/rpc"
	gjson "github.com/gorilla/rpc/json"
)

//MethodPushMiningObject is the inbound call the local search process uses
// to hand over a discovered object
const MethodPushMiningObject = "poscan_pushMiningObject"

const (
	errCodeParse          = -32700
	errCodeMethodNotFound = -32601
	errCodeInvalidParams  = -32602
)

// router serves three surfaces: the positional JSON-RPC endpoint for the
// search process at /, the named-params status service at /rpc and a plain
// status handler. The inbound method is positional, which the gorilla/rpc
// service codec cannot dispatch, so / is decoded by hand.
func (b *Bridge) router() *mux.Router {
	s := rpc.NewServer()
	s.RegisterCodec(gjson.NewCodec(), "application/json")
	s.RegisterCodec(gjson.NewCodec(), "application/json;charset=UTF-8")
	s.RegisterService(b, "bridge")

	r := mux.NewRouter()
	r.Handle("/rpc", s)
	r.HandleFunc("/", b.handleRPC).Methods(http.MethodPost)
	r.HandleFunc("/poolbridge/status", b.GetBridgeStatus)
	return r
}

type rpcRequest struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  []interface{}   `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Version string          `json:"jsonrpc"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// handleRPC dispatches the inbound JSON-RPC call. A malformed request gets
// a structured error response, never a dropped unit of work.
func (b *Bridge) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, rpcResponse{Version: "2.0", Error: &rpcError{Code: errCodeParse, Message: "parse error"}})
		return
	}
	if req.Method != MethodPushMiningObject {
		writeRPC(w, rpcResponse{Version: "2.0", ID: req.ID, Error: &rpcError{Code: errCodeMethodNotFound, Message: "method not found"}})
		return
	}
	result, err := b.ctx.OnNewObject(req.Params)
	if err != nil {
		writeRPC(w, rpcResponse{Version: "2.0", ID: req.ID, Error: &rpcError{Code: errCodeInvalidParams, Message: err.Error()}})
		return
	}
	atomic.AddInt32(&b.accepted, 1)
	writeRPC(w, rpcResponse{Version: "2.0", ID: req.ID, Result: result})
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (b *Bridge) GetBridgeStatus(w http.ResponseWriter, r *http.Request) {
	stats := b.Stats()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(&stats)
	return
}
