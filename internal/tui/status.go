package tui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// StatusWriter redraws a single spinner line on w until stopped. It is used
// for short probes that run before any table is drawn.
type StatusWriter struct {
	w       io.Writer
	mu      sync.Mutex
	message string
	started time.Time
	done    chan struct{}
	stop    sync.Once
	exited  chan struct{}
}

// NewStatusWriter starts the spinner with an initial message.
func NewStatusWriter(w io.Writer, message string) *StatusWriter {
	sw := &StatusWriter{
		w:       w,
		message: message,
		started: time.Now(),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go sw.loop()
	return sw
}

// Update replaces the message and restarts the elapsed timer.
func (sw *StatusWriter) Update(message string) {
	sw.mu.Lock()
	sw.message = message
	sw.started = time.Now()
	sw.mu.Unlock()
}

// Stop clears the line. It is safe to call more than once.
func (sw *StatusWriter) Stop() {
	sw.stop.Do(func() {
		close(sw.done)
		<-sw.exited
		fmt.Fprint(sw.w, "\r\033[K")
	})
}

func (sw *StatusWriter) loop() {
	defer close(sw.exited)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-sw.done:
			return
		case <-ticker.C:
		}
		sw.mu.Lock()
		msg, started := sw.message, sw.started
		sw.mu.Unlock()
		fmt.Fprintf(sw.w, "\r\033[K%s %s (%s)", spinnerFrames[frame%len(spinnerFrames)], msg, formatElapsed(time.Since(started)))
	}
}

func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < 10*time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
