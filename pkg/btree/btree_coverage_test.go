package btree

import (
	"testing"

	"github.com/francodb/francodb/pkg/types"
)

func TestFindLeafLowerBound_SingleLeaf(t *testing.T) {
	tree := NewTree(3)
	tree.Insert(types.IntKey(10), rid(100))
	tree.Insert(types.IntKey(20), rid(200))
	tree.Insert(types.IntKey(30), rid(300))

	leaf, idx := tree.FindLeafLowerBound(types.IntKey(20))
	if leaf == nil {
		t.Fatal("Expected non-nil leaf")
	}
	if idx >= leaf.N {
		t.Fatalf("Index out of range")
	}
	if leaf.Keys[idx].Compare(types.IntKey(20)) != 0 {
		t.Fatalf("Expected key 20 at index, got %v", leaf.Keys[idx])
	}
}

func TestFindLeafLowerBound_KeyNotExists(t *testing.T) {
	tree := NewTree(3)
	tree.Insert(types.IntKey(10), rid(100))
	tree.Insert(types.IntKey(30), rid(300))

	leaf, idx := tree.FindLeafLowerBound(types.IntKey(20))
	if leaf == nil {
		t.Fatal("Expected non-nil leaf")
	}
	if idx >= leaf.N {
		t.Fatalf("Index out of bounds: %d >= %d", idx, leaf.N)
	}
	if leaf.Keys[idx].Compare(types.IntKey(30)) != 0 {
		t.Fatalf("Expected lower bound to be 30, got %v", leaf.Keys[idx])
	}
}

func TestFindLeafLowerBound_MultipleLeaves(t *testing.T) {
	tree := NewTree(3)

	for i := 1; i <= 15; i++ {
		tree.Insert(types.IntKey(i*10), rid(i*100))
	}

	leaf, idx := tree.FindLeafLowerBound(types.IntKey(80))
	if leaf == nil {
		t.Fatal("Expected non-nil leaf")
	}

	found := false
	for i := 0; i < leaf.N; i++ {
		if leaf.Keys[i].Compare(types.IntKey(80)) == 0 {
			found = true
			break
		}
	}
	if !found {
		t.Log("Key 80 not in this leaf, checking index returned")
		if idx < leaf.N {
			t.Logf("Index %d points to key %v", idx, leaf.Keys[idx])
		}
	}
}

func TestSearch_MultiLevel(t *testing.T) {
	tree := NewTree(3)

	for i := 1; i <= 15; i++ {
		tree.Insert(types.IntKey(i*10), rid(i*100))
	}

	testKeys := []int{10, 50, 100, 150}
	for _, key := range testKeys {
		_, found := tree.Search(types.IntKey(key))
		if !found {
			t.Errorf("Expected to find key %d", key)
		}
	}

	_, found := tree.Search(types.IntKey(75))
	if found {
		t.Error("Should not find key 75")
	}
}

func TestSearch_KeyAtBeginning(t *testing.T) {
	tree := NewTree(3)
	tree.Insert(types.IntKey(10), rid(100))
	tree.Insert(types.IntKey(20), rid(200))
	tree.Insert(types.IntKey(30), rid(300))

	node, found := tree.Search(types.IntKey(10))
	if !found {
		t.Fatal("Expected to find key 10")
	}
	if node == nil {
		t.Fatal("Expected non-nil node")
	}
}

func TestSearch_KeyAtEnd(t *testing.T) {
	tree := NewTree(3)
	tree.Insert(types.IntKey(10), rid(100))
	tree.Insert(types.IntKey(20), rid(200))
	tree.Insert(types.IntKey(30), rid(300))

	node, found := tree.Search(types.IntKey(30))
	if !found {
		t.Fatal("Expected to find key 30")
	}
	if node == nil {
		t.Fatal("Expected non-nil node")
	}
}

func TestDelete_CausesRebalancing(t *testing.T) {
	tree := NewTree(3)

	for i := 1; i <= 20; i++ {
		tree.Insert(types.IntKey(i), rid(i*10))
	}

	keysToDelete := []int{5, 10, 15, 1, 2, 3, 4}
	for _, key := range keysToDelete {
		ok := tree.Root.Remove(types.IntKey(key))
		if !ok {
			t.Errorf("Failed to delete key %d", key)
		}

		if tree.Root.N == 0 && !tree.Root.Leaf && len(tree.Root.Children) > 0 {
			tree.Root = tree.Root.Children[0]
		}
	}

	remainingKeys := []int{6, 7, 8, 9, 11, 12, 13, 14, 16, 17, 18, 19, 20}
	for _, key := range remainingKeys {
		_, found := tree.Search(types.IntKey(key))
		if !found {
			t.Errorf("Expected to find remaining key %d", key)
		}
	}
}

func TestDelete_RootCollapse(t *testing.T) {
	tree := NewTree(3)

	tree.Insert(types.IntKey(10), rid(100))
	tree.Insert(types.IntKey(20), rid(200))
	tree.Insert(types.IntKey(30), rid(300))
	tree.Insert(types.IntKey(40), rid(400))
	tree.Insert(types.IntKey(50), rid(500))
	tree.Insert(types.IntKey(60), rid(600)) // forces the first split

	tree.Root.Remove(types.IntKey(10))
	tree.Root.Remove(types.IntKey(20))

	if tree.Root.N == 0 && !tree.Root.Leaf && len(tree.Root.Children) > 0 {
		tree.Root = tree.Root.Children[0]
	}

	for _, key := range []int{30, 40, 50, 60} {
		_, found := tree.Search(types.IntKey(key))
		if !found {
			t.Errorf("Expected to find key %d after collapse", key)
		}
	}
}

func TestDelete_FixSeparators(t *testing.T) {
	tree := NewTree(3)

	for i := 1; i <= 10; i++ {
		tree.Insert(types.IntKey(i*10), rid(i*100))
	}

	tree.Root.Remove(types.IntKey(30))
	tree.Root.Remove(types.IntKey(40))

	_, found := tree.Search(types.IntKey(50))
	if !found {
		t.Error("Expected to find key 50 after deletes")
	}

	_, found = tree.Search(types.IntKey(60))
	if !found {
		t.Error("Expected to find key 60 after deletes")
	}
}

func TestDelete_AllKeys(t *testing.T) {
	tree := NewTree(3)

	keys := []int{10, 20, 30, 40, 50}
	for _, k := range keys {
		tree.Insert(types.IntKey(k), rid(k*10))
	}

	for _, k := range keys {
		ok := tree.Root.Remove(types.IntKey(k))
		if !ok {
			t.Errorf("Failed to delete key %d", k)
		}

		if tree.Root.N == 0 && !tree.Root.Leaf && len(tree.Root.Children) > 0 {
			tree.Root = tree.Root.Children[0]
		}
	}

	if tree.Root.N != 0 {
		t.Errorf("Expected empty tree, got %d keys", tree.Root.N)
	}
}

func TestSearch_InternalNodeTraversal(t *testing.T) {
	tree := NewTree(3)

	for i := 1; i <= 20; i++ {
		tree.Insert(types.IntKey(i*5), rid(i*50))
	}

	testCases := []int{5, 25, 50, 75, 100}
	for _, key := range testCases {
		_, found := tree.Search(types.IntKey(key))
		if !found {
			t.Errorf("Expected to find key %d", key)
		}
	}

	_, found := tree.Search(types.IntKey(7))
	if found {
		t.Error("Should not find key 7")
	}
}

func TestNode_Remove_Exported(t *testing.T) {
	tree := NewTree(3)
	tree.Insert(types.IntKey(10), rid(100))
	tree.Insert(types.IntKey(20), rid(200))
	tree.Insert(types.IntKey(30), rid(300))

	ok := tree.Root.Remove(types.IntKey(20))
	if !ok {
		t.Fatal("Expected Remove to succeed")
	}

	_, found := tree.Search(types.IntKey(20))
	if found {
		t.Error("Key 20 should have been removed")
	}
}

func TestNode_FindLeafLowerBound_Exported(t *testing.T) {
	tree := NewTree(3)
	tree.Insert(types.IntKey(10), rid(100))
	tree.Insert(types.IntKey(20), rid(200))
	tree.Insert(types.IntKey(30), rid(300))

	node, idx := tree.Root.FindLeafLowerBound(types.IntKey(20))
	if node == nil {
		t.Fatal("Expected non-nil node")
	}
	if idx >= node.N {
		t.Fatalf("Index %d out of range", idx)
	}
	if node.Keys[idx].Compare(types.IntKey(20)) != 0 {
		t.Fatalf("Expected key 20 at index %d", idx)
	}
}

func TestLargeTreeOperations(t *testing.T) {
	tree := NewTree(3)

	for i := 1; i <= 100; i++ {
		if err := tree.Insert(types.IntKey(i), rid(i*10)); err != nil {
			t.Fatalf("Failed to insert key %d: %v", i, err)
		}
	}

	for i := 1; i <= 100; i++ {
		_, found := tree.Search(types.IntKey(i))
		if !found {
			t.Errorf("Failed to find key %d", i)
		}
	}

	for i := 1; i <= 50; i++ {
		ok := tree.Root.Remove(types.IntKey(i))
		if !ok {
			t.Errorf("Failed to remove key %d", i)
		}

		if tree.Root.N == 0 && !tree.Root.Leaf && len(tree.Root.Children) > 0 {
			tree.Root = tree.Root.Children[0]
		}
	}

	for i := 1; i <= 50; i++ {
		_, found := tree.Search(types.IntKey(i))
		if found {
			t.Errorf("Key %d should have been removed", i)
		}
	}

	for i := 51; i <= 100; i++ {
		_, found := tree.Search(types.IntKey(i))
		if !found {
			t.Errorf("Key %d should still exist", i)
		}
	}
}

func TestBPlusTree_FindLeafLowerBound(t *testing.T) {
	tree := NewTree(3)

	tree.Insert(types.IntKey(10), rid(100))
	tree.Insert(types.IntKey(20), rid(200))
	tree.Insert(types.IntKey(30), rid(300))

	node, idx := tree.FindLeafLowerBound(types.IntKey(20))
	if node == nil {
		t.Fatal("Expected non-nil node")
	}
	if idx >= node.N {
		t.Fatal("Index out of range")
	}

	node2, idx2 := tree.FindLeafLowerBound(types.IntKey(15))
	if node2 == nil {
		t.Fatal("Expected non-nil node for non-existent key")
	}
	if idx2 < node2.N && node2.Keys[idx2].Compare(types.IntKey(20)) != 0 {
		t.Log("Lower bound returned different key, which is valid behavior")
	}
}

func TestInsert_ReverseOrder(t *testing.T) {
	tree := NewTree(3)

	for i := 20; i >= 1; i-- {
		tree.Insert(types.IntKey(i), rid(i*10))
	}

	for i := 1; i <= 20; i++ {
		_, found := tree.Search(types.IntKey(i))
		if !found {
			t.Errorf("Failed to find key %d", i)
		}
	}
}

func TestInsert_Update(t *testing.T) {
	tree := NewTree(3) // not unique: allows update

	tree.Insert(types.IntKey(10), rid(100))
	tree.Insert(types.IntKey(10), rid(200)) // should update

	node, found := tree.Search(types.IntKey(10))
	if !found {
		t.Fatal("Key should exist")
	}

	for i := 0; i < node.N; i++ {
		if node.Keys[i].Compare(types.IntKey(10)) == 0 {
			if node.Values[i] != rid(200) {
				t.Errorf("Expected updated value 200, got %v", node.Values[i])
			}
			break
		}
	}
}

func TestNode_IsSafeForInsert(t *testing.T) {
	// T=3 => max keys = 2*T - 1 = 5
	node := NewNode(3, true)

	if !node.IsSafeForInsert() {
		t.Error("Empty node should be safe for insert")
	}

	for i := 1; i <= 4; i++ {
		node.InsertNonFull(types.IntKey(i), rid(i), false)
	}

	if !node.IsSafeForInsert() {
		t.Error("Node with 4 keys (max 5) should be safe for insert")
	}

	node.InsertNonFull(types.IntKey(5), rid(5), false)

	if node.IsSafeForInsert() {
		t.Error("Full node (5 keys) should NOT be safe for insert")
	}
}

func TestNode_IsSafeForDelete(t *testing.T) {
	// T=3 => min keys = T-1 = 2
	node := NewNode(3, true)

	node.InsertNonFull(types.IntKey(1), rid(1), false)
	node.InsertNonFull(types.IntKey(2), rid(2), false)
	node.InsertNonFull(types.IntKey(3), rid(3), false)

	if !node.IsSafeForDelete() {
		t.Error("Node with 3 keys (min 2) should be safe for delete")
	}

	node.Remove(types.IntKey(3))

	if node.IsSafeForDelete() {
		t.Error("Node with 2 keys (min allowed) should NOT be safe for delete (needs merge/borrow)")
	}
}
