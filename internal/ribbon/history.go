package ribbon

// MaxCapacity bounds the sample history of every Controller.
const MaxCapacity = 256

// history is a fixed-capacity ring of the most recent samples. Writes past
// capacity overwrite the oldest sample.
type history struct {
	buf  [MaxCapacity]float32
	size int // usable capacity, <= MaxCapacity
	next int // index of the next write
	n    int // number of valid samples
}

func newHistory(size int) history {
	if size < 1 {
		size = 1
	}
	if size > MaxCapacity {
		size = MaxCapacity
	}
	return history{size: size}
}

func (h *history) write(v float32) {
	h.buf[h.next] = v
	h.next = (h.next + 1) % h.size
	if h.n < h.size {
		h.n++
	}
}

func (h *history) clear() {
	h.n = 0
	h.next = 0
}

func (h *history) len() int { return h.n }

// oldestMean is the arithmetic mean of the count oldest samples.
func (h *history) oldestMean(count int) float32 {
	if count > h.n {
		count = h.n
	}
	if count <= 0 {
		return 0
	}
	start := (h.next - h.n + h.size) % h.size
	var sum float64
	for i := 0; i < count; i++ {
		sum += float64(h.buf[(start+i)%h.size])
	}
	return float32(sum / float64(count))
}
