package editor

import "sync/atomic"

// KeySource hands out the local keys that identify questions inside a form.
// Keys are positive and never repeat within a process; they are unrelated to
// server ids.
type KeySource struct {
	last atomic.Int64
}

func (s *KeySource) Next() int64 {
	return s.last.Add(1)
}

// Observe moves the source past key so that keys restored from a draft are
// not handed out again.
func (s *KeySource) Observe(key int64) {
	for {
		cur := s.last.Load()
		if key <= cur || s.last.CompareAndSwap(cur, key) {
			return
		}
	}
}
