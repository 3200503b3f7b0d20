package protocol

import (
	"encoding/binary"

	"github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/exec"
	"github.com/francodb/francodb/pkg/types"
)

// EncodeRowsBinary packs rows as a minimal length-prefixed tuple stream:
//
//	[u32 row count][u32 tuple len][tuple bytes]...
//
// reusing types.EncodeTuple for each row's image rather than inventing a
// second tuple format for the wire.
func EncodeRowsBinary(schema *types.Schema, rows []exec.Row) ([]byte, error) {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(len(rows)))

	for _, row := range rows {
		tuple, err := types.EncodeTuple(schema, row.Values)
		if err != nil {
			return nil, errors.Wrap(errors.ExecutionError, err, "encoding row for binary frame")
		}
		lenPrefix := make([]byte, 4)
		binary.BigEndian.PutUint32(lenPrefix, uint32(len(tuple)))
		out = append(out, lenPrefix...)
		out = append(out, tuple...)
	}
	return out, nil
}

// DecodeRowsBinary reverses EncodeRowsBinary.
func DecodeRowsBinary(schema *types.Schema, payload []byte) ([]exec.Row, error) {
	if len(payload) < 4 {
		return nil, errors.New(errors.ParseError, "binary frame too short for row count")
	}
	count := binary.BigEndian.Uint32(payload)
	payload = payload[4:]

	rows := make([]exec.Row, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(payload) < 4 {
			return nil, errors.New(errors.ParseError, "binary frame truncated before tuple length")
		}
		tupleLen := binary.BigEndian.Uint32(payload)
		payload = payload[4:]
		if uint32(len(payload)) < tupleLen {
			return nil, errors.New(errors.ParseError, "binary frame truncated before tuple body")
		}
		values, err := types.DecodeTuple(schema, payload[:tupleLen])
		if err != nil {
			return nil, errors.Wrap(errors.ParseError, err, "decoding row from binary frame")
		}
		payload = payload[tupleLen:]
		rows = append(rows, exec.Row{Values: values})
	}
	return rows, nil
}
