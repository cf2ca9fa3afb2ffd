// Package safego provides a panic-recovering goroutine launcher for
// fire-and-forget work such as the intake notification mail.
package safego

import "log/slog"

// Go launches fn in a new goroutine. If fn panics, the panic is recovered and
// logged rather than crashing the process. Use it for every fire-and-forget
// goroutine (best-effort notification mail, background job kickoff) where an
// unrecovered panic would take the whole server down with it.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}
