package bridge

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AGPFMiner/poolbridge/crypto"
	"github.com/AGPFMiner/poolbridge/mining"
	"github.com/AGPFMiner/poolbridge/types"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const testSeedHex = "0000000000000000000000000000000000000000000000000000000000000001"

type fakeCaller struct {
	mu     sync.Mutex
	fields []interface{}
	err    error
	pushes int
}

func (f *fakeCaller) GetMiningParams(poolID string) ([]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.fields, nil
}

func (f *fakeCaller) PushMiningObject(ciphertext []byte, memberID string, signature string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes++
	return nil
}

func (f *fakeCaller) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushes
}

type stubSearcher struct {
	hashes []common.Hash
}

func (s stubSearcher) Search(params types.SearchParams, preHash, parentHash common.Hash, obj []byte) ([]common.Hash, error) {
	return s.hashes, nil
}

func testFields(t *testing.T) []interface{} {
	t.Helper()
	_, pub, err := crypto.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return []interface{}{
		strings.Repeat("ab", 32),
		strings.Repeat("cd", 32),
		"1ffff",
		"ffff",
		hex.EncodeToString(pub[:]),
	}
}

func newTestBridge(t *testing.T, fake *fakeCaller) *Bridge {
	t.Helper()
	winning := common.Hash{}
	winning[31] = 1
	mining.RegisterSearcher(types.Grid2d, stubSearcher{hashes: []common.Hash{winning}})

	b := &Bridge{
		Pool: types.Pool{
			URL:      "http://127.0.0.1:9933",
			PoolID:   "P1",
			MemberID: "M1",
			Key:      "0x" + testSeedHex,
			Algo:     "grid2d",
		},
		RefreshInterval: 1,
	}
	if err := b.setup(fake, zap.NewNop()); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSetupRejectsBadConfig(t *testing.T) {
	b := &Bridge{Pool: types.Pool{Key: "xx", Algo: "grid2d"}}
	if err := b.setup(&fakeCaller{}, zap.NewNop()); err == nil {
		t.Fatal("bad key must prevent startup")
	}
	b = &Bridge{Pool: types.Pool{Key: "0x" + testSeedHex, Algo: "bogus"}}
	if err := b.setup(&fakeCaller{}, zap.NewNop()); err == nil {
		t.Fatal("unknown algo must prevent startup")
	}
}

func TestSetupWithoutSearcher(t *testing.T) {
	fake := &fakeCaller{fields: testFields(t)}
	b := &Bridge{
		Pool: types.Pool{
			URL:      "http://127.0.0.1:9933",
			PoolID:   "P1",
			MemberID: "M1",
			Key:      "0x" + testSeedHex,
			Algo:     "grid2d_v2",
		},
		RefreshInterval: 1,
	}
	if err := b.setup(fake, zap.NewNop()); err != nil {
		t.Fatalf("a missing search library must not prevent startup: %v", err)
	}
	if b.searcher != nil {
		t.Fatal("no searcher is registered for grid2d_v2")
	}
	b.StartLoops()
	defer b.Stop()

	srv := httptest.NewServer(b.router())
	defer srv.Close()

	// accept and refresh still serve without the pairing worker
	body := `{"jsonrpc":"2.0","id":1,"method":"poscan_pushMiningObject","params":[7,"abc"]}`
	resp, err := http.Post(srv.URL+"/", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var rpcResp struct {
		Result interface{} `json:"result"`
		Error  *rpcError   `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatal(err)
	}
	if rpcResp.Error != nil || rpcResp.Result != float64(0) {
		t.Fatalf("push not acknowledged: %+v", rpcResp)
	}

	deadline := time.Now().Add(5 * time.Second)
	for b.Stats().Status != types.Alive {
		if time.Now().After(deadline) {
			t.Fatal("refresh never marked the pool alive")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestBridgeEndToEnd(t *testing.T) {
	fake := &fakeCaller{fields: testFields(t)}
	b := newTestBridge(t, fake)
	b.StartLoops()
	defer b.Stop()

	srv := httptest.NewServer(b.router())
	defer srv.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"poscan_pushMiningObject","params":[7,"abc"]}`
	resp, err := http.Post(srv.URL+"/", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var rpcResp struct {
		Result interface{} `json:"result"`
		Error  *rpcError   `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatal(err)
	}
	if rpcResp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", rpcResp.Error)
	}
	if rpcResp.Result != float64(0) {
		t.Errorf("ack %v", rpcResp.Result)
	}

	// refresh, pairing and submission all run on the loops; wait for the
	// proposal to reach the fake pool
	deadline := time.Now().Add(5 * time.Second)
	for fake.pushCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("proposal never reached the pool")
		}
		time.Sleep(20 * time.Millisecond)
	}

	stats := b.Stats()
	if stats.Accepted != 1 {
		t.Errorf("accepted %d", stats.Accepted)
	}
	if stats.Submitted < 1 {
		t.Errorf("submitted %d", stats.Submitted)
	}
	if stats.Status != types.Alive {
		t.Errorf("status %d", stats.Status)
	}
}

func TestInboundRPCErrors(t *testing.T) {
	b := newTestBridge(t, &fakeCaller{fields: testFields(t)})
	srv := httptest.NewServer(b.router())
	defer srv.Close()

	cases := []struct {
		body string
		code int
	}{
		{`{"jsonrpc":"2.0","id":1,"method":"poscan_pushMiningObject","params":["seven","abc"]}`, errCodeInvalidParams},
		{`{"jsonrpc":"2.0","id":1,"method":"no_such_method","params":[]}`, errCodeMethodNotFound},
		{`{not json`, errCodeParse},
	}
	for i, c := range cases {
		resp, err := http.Post(srv.URL+"/", "application/json", strings.NewReader(c.body))
		if err != nil {
			t.Fatal(err)
		}
		var rpcResp struct {
			Error *rpcError `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if rpcResp.Error == nil || rpcResp.Error.Code != c.code {
			t.Errorf("case %d: error %+v", i, rpcResp.Error)
		}
	}
}

func TestStatusEndpoint(t *testing.T) {
	b := newTestBridge(t, &fakeCaller{fields: testFields(t)})
	srv := httptest.NewServer(b.router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/poolbridge/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var stats types.BridgeStates
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.MemberID != "M1" || stats.PoolID != "P1" || stats.Algo != "grid2d" {
		t.Errorf("stats %+v", stats)
	}
}

func TestBridgeMainStopsCleanly(t *testing.T) {
	b := &Bridge{
		Pool: types.Pool{
			URL:      "http://127.0.0.1:1",
			PoolID:   "P1",
			MemberID: "M1",
			Key:      "0x" + testSeedHex,
			Algo:     "grid2d_v3",
		},
		ListenAddr:      "127.0.0.1:0",
		RefreshInterval: 1,
		LogLevel:        "error",
	}
	done := make(chan error, 1)
	go func() { done <- b.BridgeMain() }()

	time.Sleep(200 * time.Millisecond)
	b.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("shutdown must not report an error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestLoopErrorsAreObservable(t *testing.T) {
	fake := &fakeCaller{err: &types.TransportError{Op: "poscan_getMiningParams"}}
	b := newTestBridge(t, fake)
	b.StartLoops()
	defer b.Stop()

	select {
	case err := <-b.Errors():
		if _, ok := err.(*types.TransportError); !ok {
			t.Errorf("expected TransportError, got %T", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("refresh failure never surfaced")
	}
	if b.Stats().Status != types.Sick {
		t.Error("failed refresh should mark the pool sick")
	}
}
