//go:build unix

package hud

import (
	"os"
	"os/signal"
	"syscall"
)

// WatchResize forwards SIGWINCH until done is closed.
func (t *StdTerminal) WatchResize(done <-chan struct{}) <-chan struct{} {
	notify := make(chan struct{}, 1)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGWINCH)

	go func() {
		defer signal.Stop(signals)
		for {
			select {
			case <-done:
				return
			case <-signals:
				select {
				case notify <- struct{}{}:
				default:
				}
			}
		}
	}()
	return notify
}
