package domain

import "testing"

func TestVendorStockLine_Available(t *testing.T) {
	tests := []struct {
		name      string
		allocated int
		sold      int
		want      int
	}{
		{"untouched lot", 10, 0, 10},
		{"partially sold", 10, 7, 3},
		{"fully sold", 10, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := VendorStockLine{Allocated: tt.allocated, Sold: tt.sold}
			if got := line.Available(); got != tt.want {
				t.Errorf("Available() = %d, want %d", got, tt.want)
			}
		})
	}
}
