package crypto

import "testing"

type canonSample struct {
	B string `json:"b"`
	A int    `json:"a"`
}

func TestCanonicalJSON_SortsKeys(t *testing.T) {
	got, err := CanonicalJSON(canonSample{B: "x", A: 1})
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	want := `{"a":1,"b":"x"}`
	if string(got) != want {
		t.Errorf("CanonicalJSON = %s, want %s", got, want)
	}
}

func TestCanonicalJSON_FieldOrderIndependent(t *testing.T) {
	type left struct {
		A int    `json:"a"`
		B string `json:"b"`
	}
	type right struct {
		B string `json:"b"`
		A int    `json:"a"`
	}

	l, err := CanonicalJSON(left{A: 1, B: "x"})
	if err != nil {
		t.Fatalf("canonical json (left): %v", err)
	}
	r, err := CanonicalJSON(right{B: "x", A: 1})
	if err != nil {
		t.Fatalf("canonical json (right): %v", err)
	}
	if string(l) != string(r) {
		t.Errorf("declaration order changed canonical output: %s vs %s", l, r)
	}
}

func TestCanonicalJSON_NestedAndArrays(t *testing.T) {
	type inner struct {
		Z string `json:"z"`
		Y string `json:"y"`
	}
	type outer struct {
		Items []inner `json:"items"`
		Name  string  `json:"name"`
	}
	got, err := CanonicalJSON(outer{
		Items: []inner{{Z: "1", Y: "2"}, {Z: "3", Y: "4"}},
		Name:  "n",
	})
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	want := `{"items":[{"y":"2","z":"1"},{"y":"4","z":"3"}],"name":"n"}`
	if string(got) != want {
		t.Errorf("CanonicalJSON = %s, want %s", got, want)
	}
}

func TestCanonicalJSON_NoHTMLEscaping(t *testing.T) {
	type withAngle struct {
		Metadata string `json:"metadata"`
	}
	got, err := CanonicalJSON(withAngle{Metadata: "<script>&</script>"})
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	want := `{"metadata":"<script>&</script>"}`
	if string(got) != want {
		t.Errorf("CanonicalJSON escaped HTML characters: %s", got)
	}
}
