package scheduler

// ring is a bounded FIFO that evicts its oldest entry when full.
type ring struct {
	buf   []string
	start int
	n     int
}

func newRing(size int) *ring {
	if size < 1 {
		size = 1
	}
	return &ring{buf: make([]string, size)}
}

func (r *ring) push(s string) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = s
		r.n++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

// last returns up to k newest entries, oldest first.
func (r *ring) last(k int) []string {
	if k > r.n || k < 0 {
		k = r.n
	}
	out := make([]string, k)
	for i := range k {
		out[i] = r.buf[(r.start+r.n-k+i)%len(r.buf)]
	}
	return out
}

// resize keeps the newest entries that fit.
func (r *ring) resize(size int) *ring {
	nr := newRing(size)
	for _, s := range r.last(-1) {
		nr.push(s)
	}
	return nr
}
