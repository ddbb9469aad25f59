package enrich

// window is a fixed-size FIFO of the most recent daily values, used to
// compute trailing sums without rescanning history. Zero-initialized so
// days preceding the data contribute zero.
type window struct {
	vals []int
}

func newWindow(size int) *window {
	return &window{vals: make([]int, size)}
}

// push drops the oldest value and appends v.
func (w *window) push(v int) {
	copy(w.vals, w.vals[1:])
	w.vals[len(w.vals)-1] = v
}

// sum returns the trailing sum over the window.
func (w *window) sum() int {
	var s int
	for _, v := range w.vals {
		s += v
	}
	return s
}
