package capture

import (
	"bytes"
	"testing"
)

func TestAutoBrightness(t *testing.T) {
	tests := []struct {
		name    string
		luma    []byte
		current int
		target  int
		want    int
		changed bool
	}{
		{"dark", bytes.Repeat([]byte{0}, 1000), 100, 0, 126, true},
		{"bright", bytes.Repeat([]byte{255}, 1000), 100, 0, 74, true},
		{"in window", bytes.Repeat([]byte{133}, 1000), 100, 0, 100, false},
		{"custom target", bytes.Repeat([]byte{128}, 1000), 100, 60, 86, true},
		{"floor", bytes.Repeat([]byte{255}, 1000), 0, 0, 0, false},
		{"ceiling", bytes.Repeat([]byte{0}, 1000), 255, 0, 255, false},
		{"no frame", nil, 100, 0, 100, false},
	}
	a := NewAutoBrightness()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := a.Adjust(tt.luma, tt.current, tt.target)
			if got != tt.want || changed != tt.changed {
				t.Errorf("Adjust = %d, %v; want %d, %v", got, changed, tt.want, tt.changed)
			}
		})
	}
}

func TestAutoBrightnessZeroValue(t *testing.T) {
	var a AutoBrightness
	got, changed := a.Adjust(make([]byte, 1000), 128, 200)
	if got != 169 || !changed {
		t.Errorf("Adjust = %d, %v; want 169, true", got, changed)
	}
}
