package options

import "time"

// Push sets the history mode to HistoryPush.
func Push() Options {
	h := HistoryPush
	return Options{History: &h}
}

// Replace sets the history mode to HistoryReplace.
func Replace() Options {
	h := HistoryReplace
	return Options{History: &h}
}

// WithHistory sets the history mode.
func WithHistory(h History) Options {
	return Options{History: &h}
}

// Shallow sets whether the update skips a full data reload.
func Shallow(v bool) Options {
	return Options{Shallow: &v}
}

// Scroll sets whether the update resets the scroll position.
func Scroll(v bool) Options {
	return Options{Scroll: &v}
}

// Throttle sets the minimum interval between URL updates.
func Throttle(d time.Duration) Options {
	return Options{Throttle: &d}
}

// ClearOnDefault sets whether a value equal to the key's default is removed
// from the URL instead of written.
func ClearOnDefault(v bool) Options {
	return Options{ClearOnDefault: &v}
}

// WithTransition sets the transition hint for the update.
func WithTransition(t Transition) Options {
	return Options{Transition: t}
}

// WithEqual sets the equality used for ClearOnDefault.
func WithEqual(eq func(a, b any) bool) Options {
	return Options{Equal: eq}
}

// Join merges several partial options left to right; later fields win.
func Join(opts ...Options) Options {
	layers := make([]Options, len(opts))
	for i, o := range opts {
		layers[len(opts)-1-i] = o
	}
	return merge(layers...)
}
