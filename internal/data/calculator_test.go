package data

import "testing"

func TestEvalArithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"2+3*4", "14"},
		{"(1+2)*3", "9"},
		{"7/2", "3.5"},
		{"10 % 3", "1"},
		{"-4 + 1", "-3"},
		{"0.1 + 0.2", "0.3"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalArithmetic(tt.expr)
			if err != nil {
				t.Fatalf("evalArithmetic(%q) failed: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("evalArithmetic(%q) = %s, want %s", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalArithmetic_Errors(t *testing.T) {
	for _, expr := range []string{"", "1/0", "5 % 0", "x + 1", "1.5 % 2", `"a"`, "2 << 1"} {
		if _, err := evalArithmetic(expr); err == nil {
			t.Errorf("evalArithmetic(%q) expected error", expr)
		}
	}
}
