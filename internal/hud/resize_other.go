//go:build !unix

package hud

import "time"

// resizePollInterval is how often the size is sampled without SIGWINCH.
const resizePollInterval = 250 * time.Millisecond

// WatchResize polls the terminal size until done is closed.
func (t *StdTerminal) WatchResize(done <-chan struct{}) <-chan struct{} {
	notify := make(chan struct{}, 1)

	go func() {
		ticker := time.NewTicker(resizePollInterval)
		defer ticker.Stop()
		lastWidth, lastHeight, _ := t.Size()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				width, height, err := t.Size()
				if err != nil || (width == lastWidth && height == lastHeight) {
					continue
				}
				lastWidth, lastHeight = width, height
				select {
				case notify <- struct{}{}:
				default:
				}
			}
		}
	}()
	return notify
}
