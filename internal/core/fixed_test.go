package core

import "testing"

func TestParseFixedExpenses(t *testing.T) {
	fe := ParseFixedExpenses(map[string]string{"loyer": "750", "edf": "abc", "internet": "29,99"})
	if len(fe) != len(FixedExpenseKeys) {
		t.Fatalf("expected every default key, got %v", fe)
	}
	if fe[FixedRent].Cents != 75000 || fe[FixedEnergy].Cents != 0 || fe[FixedInternet].Cents != 2999 {
		t.Fatalf("unexpected values %v", fe)
	}
	if fe.Total().Cents != 77999 {
		t.Fatalf("unexpected total %d", fe.Total().Cents)
	}
}

func TestAmountForCategory(t *testing.T) {
	fe := FixedExpenses{FixedRent: {Cents: 1}, FixedEnergy: {Cents: 2}, FixedInternet: {Cents: 3}, FixedCredit: {Cents: 4}, FixedTax: {Cents: 5}}
	cases := map[string]int64{
		"Loyer":                1,
		"EDF-GDF":              2,
		"Internet":             3,
		"Remboursement crédit": 4,
		"Impôt":                0,
		"Alimentation":         0,
	}
	for cat, want := range cases {
		if got := fe.AmountForCategory(cat).Cents; got != want {
			t.Fatalf("%s: expected %d, got %d", cat, want, got)
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	cases := map[int64]string{0: "0 B", 512: "512 B", 1024: "1 KB", 1536: "1.5 KB", 1048576: "1 MB"}
	for in, want := range cases {
		if got := FormatFileSize(in); got != want {
			t.Fatalf("%d: expected %q, got %q", in, want, got)
		}
	}
	colors := RainbowColors(4)
	if len(colors) != 4 || colors[1].H != 90 || colors[0].String() != "hsl(0, 85%, 60%)" {
		t.Fatalf("unexpected colors %v", colors)
	}
	if c := (HSL{L: 95}).Lighten(10); c.L != 100 {
		t.Fatalf("lighten should clamp, got %v", c.L)
	}
	if c := (HSL{L: 5}).Darken(10); c.L != 0 {
		t.Fatalf("darken should clamp, got %v", c.L)
	}
	c, err := ParseHSL("hsl(120, 85%, 60%)")
	if err != nil || c.H != 120 || c.L != 60 {
		t.Fatalf("parse hsl: %v %v", c, err)
	}
}
