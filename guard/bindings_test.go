package guard

import (
	"errors"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestEvaluateJSON(t *testing.T) {
	ev := NewEvaluator()
	defer ev.Close()

	tests := []struct {
		name string
		expr string
		doc  string
		want Verdict
	}{
		{"object member", "x.count >= 3", `{"count": 4}`, Satisfied},
		{"object member fails", "x.count >= 3", `{"count": 2}`, NotSatisfied},
		{"array length", "#x == 2", `[1, 2]`, Satisfied},
		{"array element", "x[1] == 10", `[10, 20]`, Satisfied},
		{"nested object", `x.result.status == "ok"`, `{"result": {"status": "ok"}}`, Satisfied},
		{"boolean doc", "x", `true`, Satisfied},
		{"null doc", "x == nil", `null`, Satisfied},
		{"string doc", `x == "done"`, `"done"`, Satisfied},
		{"missing member", "x.missing > 0", `{"count": 4}`, Undetermined},
		{"malformed doc", "x > 0", `{"count":`, Undetermined},
		{"restricted expression", `require("io")`, `{"count": 4}`, Undetermined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ev.EvaluateJSON(tt.expr, "x", tt.doc); got != tt.want {
				t.Errorf("EvaluateJSON(%q, %q) = %v, want %v", tt.expr, tt.doc, got, tt.want)
			}
		})
	}
}

func TestBindingFromJSON(t *testing.T) {
	ev := NewEvaluator()
	defer ev.Close()

	v, err := ev.BindingFromJSON(`{"items": [1, 2, 3], "ok": true}`)
	if err != nil {
		t.Fatalf("BindingFromJSON() error = %v", err)
	}
	tbl, ok := v.(*lua.LTable)
	if !ok {
		t.Fatalf("BindingFromJSON() = %T, want *lua.LTable", v)
	}
	if got := tbl.RawGetString("ok"); got != lua.LTrue {
		t.Errorf("ok member = %v, want true", got)
	}
	items, ok := tbl.RawGetString("items").(*lua.LTable)
	if !ok {
		t.Fatal("items member is not a table")
	}
	if items.Len() != 3 {
		t.Errorf("items length = %d, want 3", items.Len())
	}

	if got := ev.Evaluate("#x.items == 3 and x.ok", "x", v); got != Satisfied {
		t.Errorf("Evaluate() over JSON binding = %v, want Satisfied", got)
	}
}

func TestBindingFromJSONMalformed(t *testing.T) {
	ev := NewEvaluator()
	defer ev.Close()

	if _, err := ev.BindingFromJSON(`{"broken":`); !errors.Is(err, ErrInvalidBinding) {
		t.Errorf("BindingFromJSON() error = %v, want ErrInvalidBinding", err)
	}
}
