package queue

import "time"

// Observer receives queue activity, e.g. for metrics.
type Observer interface {
	// Enqueued is called for every accepted Enqueue. removed is true when
	// the key is queued for deletion.
	Enqueued(key string, removed bool)

	// Flushed is called after every commit with the number of keys in the
	// batch, the time from window start to commit, and the commit error.
	Flushed(keys int, wait time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) Enqueued(string, bool)             {}
func (nopObserver) Flushed(int, time.Duration, error) {}
