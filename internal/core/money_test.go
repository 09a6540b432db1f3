package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseMoneyAllowsZeroAndBlank(t *testing.T) {
	for _, in := range []string{"", "0", "0.00"} {
		m, err := ParseMoney(in)
		if err != nil || m.Cents != 0 {
			t.Fatalf("%q: got %v err=%v", in, m, err)
		}
	}
	if MustMoney("garbage").Cents != 0 {
		t.Fatalf("malformed cell should read as zero")
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{0: "0.00", 50000: "500.00", 1205: "12.05", -100000: "-1000.00"}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Fatalf("%d: got %q want %q", cents, got, want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Due Money `json:"due"`
	}{Due: Money{Cents: -100000}})
	if err != nil || string(b) != `{"due":-1000}` {
		t.Fatalf("marshal: %s err=%v", b, err)
	}
	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 500, "b": "12.50"}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if in.A.Cents != 50000 || in.B.Cents != 1250 {
		t.Fatalf("unexpected: %+v", in)
	}
}
