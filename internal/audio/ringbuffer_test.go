package audio

import (
	"errors"
	"testing"
)

func ramp(start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(start + i)
	}
	return out
}

func TestNewRingBufferZeroCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		if _, err := NewRingBuffer(c); !errors.Is(err, ErrZeroCapacity) {
			t.Errorf("NewRingBuffer(%d) error = %v, want ErrZeroCapacity", c, err)
		}
	}
}

func TestRingBufferSnapshotEmpty(t *testing.T) {
	rb, err := NewRingBuffer(16)
	if err != nil {
		t.Fatalf("NewRingBuffer() error = %v", err)
	}
	if got := rb.Snapshot(); got != nil {
		t.Errorf("Snapshot() on empty ring = %v, want nil", got)
	}
}

func TestRingBufferUnderCapacity(t *testing.T) {
	const capacity = 32
	for n := 1; n <= capacity; n++ {
		rb, _ := NewRingBuffer(capacity)
		rb.Write(ramp(0, n))

		got := rb.Snapshot()
		if len(got) != n {
			t.Fatalf("n=%d: Snapshot() len = %d", n, len(got))
		}
		for i, v := range got {
			if v != float32(i) {
				t.Fatalf("n=%d: sample[%d] = %v, want %d", n, i, v, i)
			}
		}
	}
}

func TestRingBufferOverwritesOldest(t *testing.T) {
	tests := []struct {
		name   string
		chunks []int
	}{
		{"single wrap", []int{10, 10}},
		{"exact fill then more", []int{16, 5}},
		{"many small writes", []int{3, 3, 3, 3, 3, 3, 3, 3}},
		{"single write larger than capacity", []int{40}},
		{"large write after partial fill", []int{7, 37}},
	}

	const capacity = 16
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb, _ := NewRingBuffer(capacity)
			next := 0
			for _, n := range tt.chunks {
				rb.Write(ramp(next, n))
				next += n
			}
			if rb.Total() != uint64(next) {
				t.Errorf("Total() = %d, want %d", rb.Total(), next)
			}

			got := rb.Snapshot()
			want := ramp(next-min(next, capacity), min(next, capacity))
			if len(got) != len(want) {
				t.Fatalf("Snapshot() len = %d, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("sample[%d] = %v, want %v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestRingBufferReset(t *testing.T) {
	rb, _ := NewRingBuffer(8)
	rb.Write(ramp(0, 12))
	rb.Reset()

	if got := rb.Snapshot(); got != nil {
		t.Fatalf("Snapshot() after Reset = %v, want nil", got)
	}

	rb.Write(ramp(100, 3))
	got := rb.Snapshot()
	if len(got) != 3 || got[0] != 100 || got[2] != 102 {
		t.Errorf("Snapshot() after Reset+Write = %v, want [100 101 102]", got)
	}
}

func TestRingBufferWriteDoesNotAllocate(t *testing.T) {
	rb, _ := NewRingBuffer(1024)
	chunk := ramp(0, 300)
	allocs := testing.AllocsPerRun(100, func() {
		rb.Write(chunk)
	})
	if allocs != 0 {
		t.Errorf("Write allocated %.1f times per call, want 0", allocs)
	}
}

func BenchmarkRingBufferWrite(b *testing.B) {
	rb, _ := NewRingBuffer(16000 * 30)
	chunk := make([]float32, 2048)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rb.Write(chunk)
	}
}
