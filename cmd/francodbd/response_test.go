package main

import (
	"encoding/json"
	"strings"
	"testing"

	dberrors "github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/engine"
	"github.com/francodb/francodb/pkg/exec"
	"github.com/francodb/francodb/pkg/types"
)

func testSchema() *types.Schema {
	return types.NewSchema([]types.Column{
		{Name: "id", Type: types.Integer, PrimaryKey: true},
		{Name: "name", Type: types.Varchar, MaxLength: 32},
	})
}

func TestEncodeJSONResult_RowSet(t *testing.T) {
	schema := testSchema()
	result := &engine.Result{
		Schema: schema,
		Rows: []exec.Row{
			{Values: []types.Value{types.NewInt(1), types.NewVarchar("ada")}},
		},
	}

	payload, err := encodeJSONResult(result, nil)
	if err != nil {
		t.Fatalf("encodeJSONResult failed: %v", err)
	}

	var out jsonResult
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !out.OK {
		t.Fatal("expected ok=true for a successful result")
	}
	if len(out.Columns) != 2 || out.Columns[0] != "id" || out.Columns[1] != "name" {
		t.Fatalf("unexpected columns: %v", out.Columns)
	}
	if len(out.Rows) != 1 || out.Rows[0]["name"] != "ada" {
		t.Fatalf("unexpected rows: %v", out.Rows)
	}
}

func TestEncodeJSONResult_Error(t *testing.T) {
	payload, err := encodeJSONResult(nil, dberrors.New(dberrors.CatalogError, "table not found"))
	if err != nil {
		t.Fatalf("encodeJSONResult failed: %v", err)
	}

	var out jsonResult
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out.OK {
		t.Fatal("expected ok=false for a failed statement")
	}
	if !strings.Contains(out.Message, "table not found") {
		t.Fatalf("expected the error text in the message, got %q", out.Message)
	}
}

func TestEncodeTextResult_RendersRowsAndCount(t *testing.T) {
	schema := testSchema()
	result := &engine.Result{
		Schema: schema,
		Rows: []exec.Row{
			{Values: []types.Value{types.NewInt(1), types.NewVarchar("ada")}},
			{Values: []types.Value{types.NewInt(2), types.NewVarchar("grace")}},
		},
	}

	text := encodeTextResult(result, nil)
	if !strings.Contains(text, "id | name") {
		t.Fatalf("expected a header row, got %q", text)
	}
	if !strings.Contains(text, "(2 rows)") {
		t.Fatalf("expected a row count footer, got %q", text)
	}
}

func TestParseLogin(t *testing.T) {
	user, pass, ok := parseLogin("LOGIN ada secret")
	if !ok || user != "ada" || pass != "secret" {
		t.Fatalf("expected to parse LOGIN, got user=%q pass=%q ok=%v", user, pass, ok)
	}

	if _, _, ok := parseLogin("SELECT 1"); ok {
		t.Fatal("expected a non-LOGIN statement not to be recognized as a login")
	}
	if _, _, ok := parseLogin("LOGIN onlyuser"); ok {
		t.Fatal("expected LOGIN with a missing password to be rejected")
	}
}
