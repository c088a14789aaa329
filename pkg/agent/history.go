package agent

// HistoryPair is one completed user/assistant exchange.
type HistoryPair struct {
	User      string
	Assistant string
}

// History is the coordinator's rolling conversation memory: a bounded FIFO of
// completed turns. It is owned exclusively by the orchestrator loop, so no
// locking is needed.
type History struct {
	capacity int
	pairs    []HistoryPair
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 10
	}
	return &History{capacity: capacity}
}

// Append records a completed turn, evicting the oldest entry once capacity is
// exceeded.
func (h *History) Append(user, assistant string) {
	h.pairs = append(h.pairs, HistoryPair{User: user, Assistant: assistant})
	if len(h.pairs) > h.capacity {
		h.pairs = h.pairs[len(h.pairs)-h.capacity:]
	}
}

// Recent returns up to n most recent pairs, oldest first.
func (h *History) Recent(n int) []HistoryPair {
	if n <= 0 || len(h.pairs) == 0 {
		return nil
	}
	if n > len(h.pairs) {
		n = len(h.pairs)
	}
	out := make([]HistoryPair, n)
	copy(out, h.pairs[len(h.pairs)-n:])
	return out
}

func (h *History) Len() int {
	return len(h.pairs)
}
