package world

import (
	"encoding/json"
	"testing"
)

func TestValue_JSONRoundTrip(t *testing.T) {
	cases := []Value{
		Nil(),
		Boolean(true),
		Integer(-42),
		Number(2.5),
		Number(2.0), // integral float must stay a float
		Str("hello"),
		TableOf([]Pair{
			{Key: Integer(1), Val: Str("first")},
			{Key: Str("name"), Val: Str("lamp")},
		}),
		DictOf(map[string]Value{
			"message": Str("look"),
			"count":   Integer(3),
			"nested":  DictOf(map[string]Value{"on": Boolean(false)}),
		}),
	}
	for _, want := range cases {
		b, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("marshal %+v: %v", want, err)
		}
		var got Value
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if !got.Equal(want) {
			t.Fatalf("round trip of %s: got %+v, want %+v", b, got, want)
		}
	}
}

func TestValue_IntegralFloatKeepsDecimalPoint(t *testing.T) {
	b, err := json.Marshal(Number(3.0))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "3.0" {
		t.Fatalf("marshal 3.0 = %s, want 3.0", b)
	}
}

func TestValue_DictMarshalsWithSortedKeys(t *testing.T) {
	v := DictOf(map[string]Value{"b": Integer(2), "a": Integer(1), "c": Integer(3)})
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"a":1,"b":2,"c":3}`
	if string(b) != want {
		t.Fatalf("marshal = %s, want %s", b, want)
	}
}

func TestValue_Get(t *testing.T) {
	d := DictOf(map[string]Value{"message": Str("hi")})
	if got := d.Get("message"); !got.Equal(Str("hi")) {
		t.Fatalf("dict Get = %+v", got)
	}
	tb := TableOf([]Pair{{Key: Str("x"), Val: Integer(9)}})
	if got := tb.Get("x"); !got.Equal(Integer(9)) {
		t.Fatalf("table Get = %+v", got)
	}
	if got := tb.Get("missing"); !got.IsNil() {
		t.Fatalf("missing key should be nil, got %+v", got)
	}
}
