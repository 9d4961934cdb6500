package fairqueue

import "testing"

func TestFlowTableGetOrCreateIsStable(t *testing.T) {
	ft := newFlowTable[string]()

	f1 := ft.getOrCreate("a")
	f1.costAvg = 42

	f2 := ft.getOrCreate("a")
	if f2.costAvg != 42 {
		t.Fatalf("getOrCreate on an existing id returned a fresh entry: costAvg = %d, want 42", f2.costAvg)
	}
	if ft.len() != 1 {
		t.Fatalf("len = %d, want 1", ft.len())
	}
}

func TestFlowTableDelete(t *testing.T) {
	ft := newFlowTable[string]()
	ft.getOrCreate("a")
	ft.getOrCreate("b")
	ft.delete("a")

	if ft.len() != 1 {
		t.Fatalf("len after delete = %d, want 1", ft.len())
	}
	if _, ok := ft.get("a"); ok {
		t.Fatal("get(a) should report false after delete")
	}
	if _, ok := ft.get("b"); !ok {
		t.Fatal("get(b) should still report true")
	}
}

func TestFlowTableForEach(t *testing.T) {
	ft := newFlowTable[int]()
	ft.getOrCreate(1)
	ft.getOrCreate(2)
	ft.getOrCreate(3)

	seen := make(map[int]bool)
	ft.forEach(func(id int, f *flow) { seen[id] = true })

	for _, id := range []int{1, 2, 3} {
		if !seen[id] {
			t.Fatalf("forEach did not visit id %d", id)
		}
	}
}
