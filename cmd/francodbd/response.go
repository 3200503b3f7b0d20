package main

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"

	dberrors "github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/engine"
	"github.com/francodb/francodb/pkg/protocol"
	"github.com/francodb/francodb/pkg/types"
)

// jsonResult is the `{ok,rows,columns,message}` envelope spec.md §6
// requires of a J-frame response; pkg/protocol's EncodeRowsJSON builds a
// bare ExtJSON "{rows:[...]}" document for a result set on its own (and
// is already exercised that way by pkg/protocol's own tests), so the
// envelope itself is assembled here, at the one layer that also knows
// whether the statement succeeded.
type jsonResult struct {
	OK      bool                     `json:"ok"`
	Columns []string                 `json:"columns,omitempty"`
	Rows    []map[string]interface{} `json:"rows,omitempty"`
	Message string                   `json:"message,omitempty"`
}

// writeResult renders result (or err, if non-nil) as a response frame of
// the same FrameType the request arrived as — a client picks its
// preferred response encoding by choosing which frame type to send its
// request in, the same "server responds with the same frame shape"
// contract spec.md describes.
func (h *connHandler) writeResult(conn net.Conn, ftype protocol.FrameType, result *engine.Result, err error) {
	var payload []byte
	var encErr error

	switch ftype {
	case protocol.FrameJSON:
		payload, encErr = encodeJSONResult(result, err)
	case protocol.FrameBinary:
		payload, encErr = encodeBinaryResult(result, err)
	default:
		payload = []byte(encodeTextResult(result, err))
	}

	if encErr != nil {
		h.logger.Warn("encoding response", zap.Error(encErr))
		payload = []byte(encodeTextResult(nil, encErr))
		ftype = protocol.FrameText
	}

	if err := protocol.WriteFrame(conn, ftype, payload); err != nil {
		h.logger.Warn("writing response frame", zap.Error(err))
	}
}

func encodeTextResult(result *engine.Result, err error) string {
	if err != nil {
		return "ERROR: " + errMessage(err)
	}
	var b strings.Builder
	if result.Schema != nil {
		names := make([]string, len(result.Schema.Columns))
		for i, c := range result.Schema.Columns {
			names[i] = c.Name
		}
		b.WriteString(strings.Join(names, " | "))
		b.WriteByte('\n')
		for _, row := range result.Rows {
			cells := make([]string, len(row.Values))
			for i, v := range row.Values {
				cells[i] = v.String()
			}
			b.WriteString(strings.Join(cells, " | "))
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "(%d rows)", len(result.Rows))
		return b.String()
	}
	if result.Message != "" {
		b.WriteString(result.Message)
	}
	if result.RowsAffected > 0 || result.Message == "" {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "(%d rows affected)", result.RowsAffected)
	}
	return b.String()
}

func encodeJSONResult(result *engine.Result, err error) ([]byte, error) {
	if err != nil {
		return json.Marshal(jsonResult{OK: false, Message: errMessage(err)})
	}
	out := jsonResult{OK: true, Message: result.Message}
	if result.Schema != nil {
		out.Columns = make([]string, len(result.Schema.Columns))
		for i, c := range result.Schema.Columns {
			out.Columns[i] = c.Name
		}
		out.Rows = make([]map[string]interface{}, len(result.Rows))
		for i, row := range result.Rows {
			out.Rows[i] = rowToMap(result.Schema, row.Values)
		}
	}
	return json.Marshal(out)
}

func rowToMap(schema *types.Schema, values []types.Value) map[string]interface{} {
	m := make(map[string]interface{}, len(values))
	for i, v := range values {
		name := fmt.Sprintf("col%d", i)
		if i < len(schema.Columns) {
			name = schema.Columns[i].Name
		}
		m[name] = valueToJSON(v)
	}
	return m
}

func valueToJSON(v types.Value) interface{} {
	if v.Null {
		return nil
	}
	switch v.Type {
	case types.Integer:
		return v.IntVal
	case types.Boolean:
		return v.BoolVal
	case types.Decimal:
		return v.FloatVal
	case types.Timestamp:
		return v.TimeVal
	case types.Varchar:
		return v.StrVal
	default:
		return nil
	}
}

// encodeBinaryResult reuses pkg/protocol's tuple stream codec for an
// actual row set; a control-statement result (no schema) or an error
// carries no tuple stream to speak of, so it falls back to an empty
// binary frame — the client's B-frame request implies it only cares
// about row data, and errors are rare enough on that path to not need
// a parallel binary error encoding.
func encodeBinaryResult(result *engine.Result, err error) ([]byte, error) {
	if err != nil || result == nil || result.Schema == nil {
		return []byte{0, 0, 0, 0}, nil
	}
	return protocol.EncodeRowsBinary(result.Schema, result.Rows)
}

func errMessage(err error) string {
	if kind, ok := dberrors.KindOf(err); ok {
		return string(kind) + ": " + err.Error()
	}
	return err.Error()
}
