package kfcm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"smesys/internal/smali"
)

var sysA = []string{"android.app.Activity.onCreate()", "java.io.File.delete()"}

func add(g *smali.Graph, name string, key bool, calls ...string) {
	if key {
		calls = append(append([]string{}, sysA...), calls...)
	}
	g.Add(name, &smali.Entry{Calls: calls, Key: key})
}

func TestReduceChain(t *testing.T) {
	// A(key) -> B(normal) -> C(key) -> D(unknown)
	g := smali.NewGraph()
	add(g, "A", true, "B")
	add(g, "B", false, "C")
	add(g, "C", true, "D")

	r, err := Reduce(g, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := Matrix{"A": {"C": 2}}
	if diff := cmp.Diff(want, r.Plain); diff != "" {
		t.Errorf("plain mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A", "C"}, r.Keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"B"}, r.Removed); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}
}

func TestReduceOnlyKeysRemain(t *testing.T) {
	g := smali.NewGraph()
	add(g, "K1", true, "N1", "N2", "K2")
	add(g, "N1", false, "K2", "N3")
	add(g, "N2", false, "N1")
	add(g, "N3", false, "K3")
	add(g, "K2", true, "N4")
	add(g, "N4", false, "external.Lib.f()")
	add(g, "K3", true, "K1")

	r, err := Reduce(g, nil)
	if err != nil {
		t.Fatal(err)
	}
	keys := map[string]struct{}{}
	for _, k := range g.Keys() {
		keys[k] = struct{}{}
	}
	for _, f := range r.Plain.Fields() {
		if _, ok := keys[f]; !ok {
			t.Errorf("non-key %s survived reduction", f)
		}
	}
	if diff := cmp.Diff(g.Keys(), r.Keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	// K1 -> K2 direct edge keeps weight 1 over the path through N1.
	if got := r.Plain["K1"]["K2"]; got != 1 {
		t.Errorf("K1->K2 = %d, want 1", got)
	}
	// K1 -> N1 -> N3 -> K3.
	if got := r.Plain["K1"]["K3"]; got == 0 {
		t.Error("K1->K3 lost after folding N1 and N3")
	}
	if got := r.Plain["K3"]["K1"]; got != 1 {
		t.Errorf("K3->K1 = %d, want 1", got)
	}
	if _, ok := r.Plain["K2"]; ok {
		t.Error("K2 row should be empty after folding its only callee")
	}
}

func TestReduceCommonChildTakesMin(t *testing.T) {
	g := smali.NewGraph()
	add(g, "A", true, "N", "K")
	add(g, "N", false, "K")
	add(g, "K", true)

	r, err := Reduce(g, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Matrix{"A": {"K": 1}}, r.Plain); diff != "" {
		t.Errorf("plain mismatch (-want +got):\n%s", diff)
	}
}

func TestReduceSelfLoop(t *testing.T) {
	g := smali.NewGraph()
	add(g, "A", true, "A", "N")
	add(g, "N", false, "N", "A")

	r, err := Reduce(g, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Matrix{"A": {"A": 1}}, r.Plain); diff != "" {
		t.Errorf("plain mismatch (-want +got):\n%s", diff)
	}
}

func TestReduceEmpty(t *testing.T) {
	if _, err := Reduce(smali.NewGraph(), nil); !errors.Is(err, ErrEmptyGraph) {
		t.Fatalf("err = %v, want ErrEmptyGraph", err)
	}
	if _, err := NewBuilder(Options{}, nil).Build(nil); !errors.Is(err, ErrEmptyGraph) {
		t.Fatalf("err = %v, want ErrEmptyGraph", err)
	}
}

func TestFoldOrderConverges(t *testing.T) {
	// Normal functions that never call each other fold to the same matrix
	// in every order.
	g := smali.NewGraph()
	add(g, "A", true, "N1", "N2", "N3")
	add(g, "N1", false, "K1")
	add(g, "N2", false, "K2", "K1")
	add(g, "N3", false, "K2")
	add(g, "K1", true, "A")
	add(g, "K2", true)

	orders := [][]string{
		{"N1", "N2", "N3"},
		{"N3", "N2", "N1"},
		{"N2", "N1", "N3"},
		{"N2", "N3", "N1"},
	}
	var first Matrix
	for _, o := range orders {
		r, err := Reduce(g, o)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(o, r.Removed); diff != "" {
			t.Errorf("fold order not honored (-want +got):\n%s", diff)
		}
		if first == nil {
			first = r.Plain
			continue
		}
		if diff := cmp.Diff(first, r.Plain); diff != "" {
			t.Errorf("order %v diverged (-first +got):\n%s", o, diff)
		}
	}
	// A key reached through two folded normals ends at weight 1: the second
	// fold compares the existing edge against n->K.
	if diff := cmp.Diff(Matrix{"A": {"K1": 1, "K2": 1}, "K1": {"A": 1}}, first); diff != "" {
		t.Errorf("plain mismatch (-want +got):\n%s", diff)
	}
}

func TestFoldOrderDivergesOnChains(t *testing.T) {
	// Folding a chain of normal functions is order dependent: the new edge
	// weight is n->K + 1 regardless of the caller's distance to n.
	g := smali.NewGraph()
	add(g, "A", true, "B")
	add(g, "B", false, "C")
	add(g, "C", false, "D")
	add(g, "D", true)

	r, err := Reduce(g, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Plain["A"]["D"]; got != 2 {
		t.Errorf("discovery order A->D = %d, want 2", got)
	}

	r, err = Reduce(g, []string{"C", "B"})
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Plain["A"]["D"]; got != 3 {
		t.Errorf("reverse order A->D = %d, want 3", got)
	}
}

func TestArenaCallers(t *testing.T) {
	g := smali.NewGraph()
	add(g, "A", true, "N")
	add(g, "B", true, "N")
	add(g, "N", false, "C")
	add(g, "C", true)

	a := newArena(g)
	if diff := cmp.Diff([]string{"A", "B"}, a.callers("N")); diff != "" {
		t.Errorf("callers(N) mismatch (-want +got):\n%s", diff)
	}
	a.fold(a.index["N"])
	if diff := cmp.Diff([]string{"A", "B"}, a.callers("C")); diff != "" {
		t.Errorf("callers(C) after fold mismatch (-want +got):\n%s", diff)
	}
}

func TestHash(t *testing.T) {
	pkgs := smali.DefaultSystemPackages
	if got := Hash(nil, pkgs); got != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("empty hash = %s", got)
	}
	a := Hash([]string{"android.a()", "com.x.y()", "java.b()"}, pkgs)
	b := Hash([]string{"android.a()", "org.z.w()", "java.b()"}, pkgs)
	if a != b {
		t.Error("non-system calls changed the hash")
	}
	c := Hash([]string{"java.b()", "android.a()"}, pkgs)
	if a == c {
		t.Error("call order did not change the hash")
	}
}

func TestBuildHashed(t *testing.T) {
	g := smali.NewGraph()
	add(g, "A", true, "B")
	add(g, "B", false, "C")
	add(g, "C", true, "D")

	res, err := NewBuilder(Options{}, nil).Build(g)
	if err != nil {
		t.Fatal(err)
	}
	ha := Hash(g.Entries["A"].Calls, smali.DefaultSystemPackages)
	hc := Hash(g.Entries["C"].Calls, smali.DefaultSystemPackages)
	if ha != hc {
		t.Fatalf("A and C share system calls, hashes differ: %s %s", ha, hc)
	}
	if diff := cmp.Diff(Matrix{ha: {hc: 2}}, res.Hashed); diff != "" {
		t.Errorf("hashed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{ha}, res.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if res.HashTable["A"] != ha || res.HashTable["C"] != hc {
		t.Errorf("hash table = %v", res.HashTable)
	}
}

func TestHashCollisionLastWins(t *testing.T) {
	g := smali.NewGraph()
	add(g, "A", true, "X")
	add(g, "B", true, "Y", "Z")
	add(g, "X", true, "java.lang.Object.<init>()")
	add(g, "Y", true, "java.lang.Object.<init>()", "java.lang.Object.<init>()")
	add(g, "Z", true, "android.view.View.invalidate()")

	plain := Matrix{"A": {"X": 1}, "B": {"Y": 1, "Z": 4}}
	hashed, _, err := HashMatrix(plain, g, smali.DefaultSystemPackages)
	if err != nil {
		t.Fatal(err)
	}
	// A and B have identical system-call sequences; B sorts last and wins.
	hb := Hash(g.Entries["B"].Calls, smali.DefaultSystemPackages)
	if len(hashed) != 1 || len(hashed[hb]) != 2 {
		t.Errorf("hashed = %v, want B's row only", hashed)
	}
}

func TestHashMatrixUnknown(t *testing.T) {
	_, _, err := HashMatrix(Matrix{"X": {"Y": 1}}, smali.NewGraph(), nil)
	if !errors.Is(err, ErrUnknownFunction) {
		t.Fatalf("err = %v, want ErrUnknownFunction", err)
	}
}

func TestMatrixDense(t *testing.T) {
	m := Matrix{"b": {"a": 3}, "a": {"c": 1}}
	fields := m.Fields()
	if diff := cmp.Diff([]string{"a", "b", "c"}, fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	want := [][]int{{0, 0, 1}, {3, 0, 0}, {0, 0, 0}}
	if diff := cmp.Diff(want, m.Dense(fields)); diff != "" {
		t.Errorf("dense mismatch (-want +got):\n%s", diff)
	}
	sub := m.Restrict(map[string]struct{}{"a": {}, "b": {}})
	if diff := cmp.Diff(Matrix{"a": {}, "b": {"a": 3}}, sub); diff != "" {
		t.Errorf("restrict mismatch (-want +got):\n%s", diff)
	}
}
