package audio

import "testing"

func TestLevel(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  float64
	}{
		{"empty", Frame{}, 0},
		{"silence", Silence(4), 0},
		{"mixed signs", Frame{100, -100, 50, -50}, 75},
		{"min sample", Frame{-32768}, 32768},
	}

	for _, tt := range tests {
		if got := tt.frame.Level(); got != tt.want {
			t.Errorf("%s: Level = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRMS(t *testing.T) {
	if got := (Frame{3, 4, 3, 4}).RMS(); got < 3.53 || got > 3.54 {
		t.Errorf("RMS = %v, want ~3.536", got)
	}
	if got := (Frame{}).RMS(); got != 0 {
		t.Errorf("RMS of empty = %v, want 0", got)
	}
}

func TestBytesLE(t *testing.T) {
	got := Frame{0x0102, -2}.BytesLE()
	want := []byte{0x02, 0x01, 0xFE, 0xFF}
	if len(got) != len(want) {
		t.Fatalf("BytesLE length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("BytesLE[%d] = %#x, want %#x", i, got[i], want[i])
		}
	}
}
