package protocol

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/exec"
	"github.com/francodb/francodb/pkg/types"
)

// EncodeRowsJSON renders a result set as a relaxed-mode ExtJSON document of
// the shape {"rows": [{col: val, ...}, ...]}, the same
// bson.D -> bson.MarshalExtJSON round trip the teacher's BsonToJson used
// for a single document, extended here to a result set.
func EncodeRowsJSON(schema *types.Schema, rows []exec.Row) ([]byte, error) {
	docs := make(bson.A, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, rowToBSON(schema, row))
	}
	envelope := bson.D{{Key: "rows", Value: docs}}

	out, err := bson.MarshalExtJSON(envelope, false, false)
	if err != nil {
		return nil, errors.Wrap(errors.IOError, err, "marshaling result set to ExtJSON")
	}
	return out, nil
}

func rowToBSON(schema *types.Schema, row exec.Row) bson.D {
	doc := make(bson.D, 0, len(row.Values))
	for i, v := range row.Values {
		name := fmt.Sprintf("col%d", i)
		if i < len(schema.Columns) {
			name = schema.Columns[i].Name
		}
		doc = append(doc, bson.E{Key: name, Value: valueToBSON(v)})
	}
	return doc
}

func valueToBSON(v types.Value) interface{} {
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

// DecodeParamsJSON parses a canonical-ExtJSON request document (typically
// bound query parameters) the way the teacher's JsonToBson parsed a single
// document, then resolves each column of schema out of it by name via the
// same doc-walk GetValueFromBson used, returning decoded Values instead of
// Comparable index keys since a parameter list may bind non-indexed
// columns too.
func DecodeParamsJSON(schema *types.Schema, extJSON []byte) ([]types.Value, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(extJSON, true, &doc); err != nil {
		return nil, errors.Wrap(errors.ParseError, err, "parsing ExtJSON parameters")
	}

	values := make([]types.Value, len(schema.Columns))
	for i, col := range schema.Columns {
		raw, ok := lookup(doc, col.Name)
		if !ok {
			if col.Default != nil {
				values[i] = *col.Default
				continue
			}
			if !col.Nullable {
				return nil, errors.Newf(errors.ParseError, "column %q is not nullable and has no default", col.Name)
			}
			values[i] = types.NewNull(col.Type)
			continue
		}
		val, err := bsonValueToTyped(col, raw)
		if err != nil {
			return nil, err
		}
		values[i] = val
	}
	return values, nil
}

func lookup(doc bson.D, key string) (interface{}, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func bsonValueToTyped(col types.Column, raw interface{}) (types.Value, error) {
	if raw == nil {
		if !col.Nullable {
			return types.Value{}, errors.Newf(errors.ParseError, "column %q is not nullable", col.Name)
		}
		return types.NewNull(col.Type), nil
	}

	switch v := raw.(type) {
	case int32:
		return types.NewInt(int64(v)), nil
	case int64:
		return types.NewInt(v), nil
	case int:
		return types.NewInt(int64(v)), nil
	case float64:
		if col.Type == types.Integer {
			return types.NewInt(int64(v)), nil
		}
		return types.NewDecimal(v), nil
	case bool:
		return types.NewBool(v), nil
	case string:
		return types.NewVarchar(v), nil
	default:
		return types.Value{}, errors.Newf(errors.ParseError, "column %q: unsupported ExtJSON value %T", col.Name, raw)
	}
}
