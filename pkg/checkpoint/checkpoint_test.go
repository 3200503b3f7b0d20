package checkpoint_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/francodb/francodb/pkg/checkpoint"
	"github.com/francodb/francodb/pkg/types"
)

func TestIndex_FindNearestBefore(t *testing.T) {
	idx := checkpoint.NewIndex()
	idx.Append(checkpoint.Entry{LSN: 100, Timestamp: 1000, FileOffset: 100})
	idx.Append(checkpoint.Entry{LSN: 300, Timestamp: 3000, FileOffset: 300})
	idx.Append(checkpoint.Entry{LSN: 200, Timestamp: 2000, FileOffset: 200})

	e, ok := idx.FindNearestBefore(2500)
	if !ok || e.LSN != 200 {
		t.Fatalf("expected the LSN=200 checkpoint for t=2500, got %+v, %v", e, ok)
	}

	if _, ok := idx.FindNearestBefore(500); ok {
		t.Fatal("expected no checkpoint before the first one's timestamp")
	}

	e, ok = idx.FindNearestBefore(3000)
	if !ok || e.LSN != 300 {
		t.Fatalf("expected an exact timestamp match to count as 'before', got %+v, %v", e, ok)
	}
}

func TestIndex_PersistAndLoad(t *testing.T) {
	idx := checkpoint.NewIndex()
	idx.Append(checkpoint.Entry{LSN: 10, Timestamp: 100, FileOffset: 10})
	idx.Append(checkpoint.Entry{LSN: 20, Timestamp: 200, FileOffset: 20})

	path := filepath.Join(t.TempDir(), "checkpoints.idx")
	if err := checkpoint.Persist(idx, path); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	loaded, err := checkpoint.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Entries()) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(loaded.Entries()))
	}
	e, ok := loaded.FindNearestBefore(150)
	if !ok || e.LSN != 10 {
		t.Fatalf("round-tripped index gave wrong answer: %+v, %v", e, ok)
	}
}

func usersSchema() *types.Schema {
	return types.NewSchema([]types.Column{
		{Name: "id", Type: types.Integer, PrimaryKey: true},
		{Name: "name", Type: types.Varchar, MaxLength: 64},
	})
}

func TestSnapshot_RoundTrip(t *testing.T) {
	schema := usersSchema()
	row1, err := types.EncodeTuple(schema, []types.Value{types.NewInt(1), types.NewVarchar("alice")})
	if err != nil {
		t.Fatalf("EncodeTuple failed: %v", err)
	}
	row2, err := types.EncodeTuple(schema, []types.Value{types.NewInt(2), types.NewVarchar("bob")})
	if err != nil {
		t.Fatalf("EncodeTuple failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "checkpoints", "100", "users.snap")
	header := checkpoint.Header{CheckpointLSN: 100, Timestamp: 12345, TableName: "users"}
	if err := checkpoint.WriteSnapshot(path, header, schema, [][]byte{row1, row2}); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	gotHeader, gotSchema, rows, err := checkpoint.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}
	if gotHeader.TableName != "users" || gotHeader.CheckpointLSN != 100 {
		t.Fatalf("unexpected header: %+v", gotHeader)
	}
	if len(gotSchema.Columns) != 2 {
		t.Fatalf("expected 2 columns round-tripped, got %d", len(gotSchema.Columns))
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows round-tripped, got %d", len(rows))
	}

	decoded, err := types.DecodeTuple(gotSchema, rows[0])
	if err != nil {
		t.Fatalf("DecodeTuple failed: %v", err)
	}
	if decoded[0].IntVal != 1 || decoded[1].StrVal != "alice" {
		t.Fatalf("unexpected decoded row: %+v", decoded)
	}
}

func TestReadSnapshot_BadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap")
	if err := os.WriteFile(path, []byte("not a snapshot"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if _, _, _, err := checkpoint.ReadSnapshot(path); err == nil {
		t.Fatal("expected an error reading a file with a bad magic")
	}
}
