package mining

import (
	"encoding/json"
	"math"

	"github.com/AGPFMiner/poolbridge/types"

	"go.uber.org/zap"
)

// OnNewObject is the candidate acceptance operation. Params are
// positional: [obj_id, obj]. The object is queued and acknowledged
// immediately; a malformed call shape yields a protocol error instead of
// aborting the handling request.
func (mc *MiningContext) OnNewObject(params []interface{}) (interface{}, error) {
	if len(params) != 2 {
		return nil, &types.ProtocolError{Reason: "expected positional params [obj_id, obj]"}
	}
	objID, err := uint64Field(params[0], "obj_id")
	if err != nil {
		return nil, err
	}
	obj, ok := params[1].(string)
	if !ok {
		return nil, &types.ProtocolError{Reason: "obj: not a valid string"}
	}
	mc.PushObject(types.MiningObj{ObjID: objID, Obj: []byte(obj)})
	mc.log.Debug("object accepted",
		zap.Uint64("obj_id", objID),
		zap.Int("size", len(obj)))
	return 0, nil
}

// uint64Field coerces a decoded JSON value to an unsigned integer.
// encoding/json hands numbers over as float64 unless UseNumber is set, so
// both forms are taken.
func uint64Field(v interface{}, name string) (uint64, error) {
	switch n := v.(type) {
	case float64:
		// the MaxUint64 constant rounds to 2^64 as a float64, so >= also
		// rejects exactly 2^64, which uint64 cannot hold
		if n < 0 || n != math.Trunc(n) || n >= math.MaxUint64 {
			return 0, &types.ProtocolError{Reason: name + ": not an unsigned integer"}
		}
		return uint64(n), nil
	case json.Number:
		id, err := parseUintNumber(n)
		if err != nil {
			return 0, &types.ProtocolError{Reason: name + ": not an unsigned integer"}
		}
		return id, nil
	}
	return 0, &types.ProtocolError{Reason: name + ": not a number"}
}

func parseUintNumber(n json.Number) (uint64, error) {
	i, err := n.Int64()
	if err != nil || i < 0 {
		if err == nil {
			err = &types.ProtocolError{Reason: "negative"}
		}
		return 0, err
	}
	return uint64(i), nil
}
