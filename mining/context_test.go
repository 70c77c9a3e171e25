package mining

import (
	"fmt"
	"sync"
	"testing"

	"github.com/AGPFMiner/poolbridge/types"
)

const testSeedHex = "0000000000000000000000000000000000000000000000000000000000000001"

// fakeCaller stands in for the pool coordinator.
type fakeCaller struct {
	mu     sync.Mutex
	fields []interface{}
	err    error

	pushedCiphertext []byte
	pushedMember     string
	pushedSig        string
	pushErr          error
	pushes           int
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
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushedCiphertext = append([]byte(nil), ciphertext...)
	f.pushedMember = memberID
	f.pushedSig = signature
	f.pushes++
	return nil
}

func (f *fakeCaller) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushes
}

func newTestContext(t *testing.T, client *fakeCaller) *MiningContext {
	t.Helper()
	mc, err := NewMiningContext(Args{
		Pool: types.Pool{
			URL:      "http://127.0.0.1:9933",
			PoolID:   "P1",
			MemberID: "M1",
			Key:      "0x" + testSeedHex,
			Algo:     "grid2d",
		},
		Client: client,
	})
	if err != nil {
		t.Fatal(err)
	}
	return mc
}

func TestNewMiningContextValidation(t *testing.T) {
	cases := []struct {
		name string
		key  string
		algo string
	}{
		{"short key", "0xabcd", "grid2d"},
		{"bad hex", "zz" + testSeedHex[2:], "grid2d"},
		{"unknown algo", "0x" + testSeedHex, "sha256"},
	}
	for _, c := range cases {
		_, err := NewMiningContext(Args{Pool: types.Pool{Key: c.key, Algo: c.algo}})
		if err == nil {
			t.Errorf("%s: expected configuration error", c.name)
			continue
		}
		if _, ok := err.(*types.ConfigError); !ok {
			t.Errorf("%s: expected ConfigError, got %T", c.name, err)
		}
	}
}

func TestNewMiningContextPrefixOptional(t *testing.T) {
	for _, key := range []string{testSeedHex, "0x" + testSeedHex} {
		if _, err := NewMiningContext(Args{Pool: types.Pool{Key: key, Algo: "grid2d"}}); err != nil {
			t.Errorf("key %q rejected: %v", key, err)
		}
	}
}

func TestInQueueFIFO(t *testing.T) {
	mc := newTestContext(t, &fakeCaller{})
	const n = 100
	for i := 0; i < n; i++ {
		mc.PushObject(types.MiningObj{ObjID: uint64(i), Obj: []byte(fmt.Sprintf("obj-%d", i))})
	}
	if mc.InQueueLen() != n {
		t.Fatalf("queue depth %d", mc.InQueueLen())
	}
	for i := 0; i < n; i++ {
		obj, ok := mc.PopObject()
		if !ok {
			t.Fatalf("queue empty at %d", i)
		}
		if obj.ObjID != uint64(i) {
			t.Fatalf("pop %d returned obj %d", i, obj.ObjID)
		}
	}
	if _, ok := mc.PopObject(); ok {
		t.Error("pop on empty queue succeeded")
	}
}

func TestOutQueueFIFO(t *testing.T) {
	mc := newTestContext(t, &fakeCaller{})
	for i := 0; i < 10; i++ {
		mc.PushProposal(types.MiningProposal{ObjID: uint64(i)})
	}
	for i := 0; i < 10; i++ {
		proposal, ok := mc.PopProposal()
		if !ok || proposal.ObjID != uint64(i) {
			t.Fatalf("pop %d: ok=%v obj=%d", i, ok, proposal.ObjID)
		}
	}
}

func TestQueueExclusiveRemoval(t *testing.T) {
	mc := newTestContext(t, &fakeCaller{})
	const n = 500
	for i := 0; i < n; i++ {
		mc.PushObject(types.MiningObj{ObjID: uint64(i)})
	}
	seen := make(chan uint64, n)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				obj, ok := mc.PopObject()
				if !ok {
					return
				}
				seen <- obj.ObjID
			}
		}()
	}
	wg.Wait()
	close(seen)
	got := make(map[uint64]int)
	for id := range seen {
		got[id]++
	}
	if len(got) != n {
		t.Fatalf("saw %d distinct objects", len(got))
	}
	for id, count := range got {
		if count != 1 {
			t.Fatalf("object %d consumed %d times", id, count)
		}
	}
}

func TestSnapshotSwap(t *testing.T) {
	mc := newTestContext(t, &fakeCaller{})
	if _, ok := mc.CurrentParams(); ok {
		t.Fatal("fresh context should have no snapshot")
	}
	first := testMiningParams(t, 1)
	mc.SetParams(first)
	got, ok := mc.CurrentParams()
	if !ok || got.PreHash != first.PreHash {
		t.Fatal("snapshot not visible after set")
	}
	second := testMiningParams(t, 2)
	mc.SetParams(second)
	got, _ = mc.CurrentParams()
	if got.PreHash != second.PreHash {
		t.Error("snapshot not replaced wholesale")
	}
}
