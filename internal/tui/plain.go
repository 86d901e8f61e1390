package tui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"hostboot/internal/bootstrap"
)

// PlainReporter writes one line per event. When bars is set, downloads are
// drawn with an in-place progress bar instead of being summarised.
type PlainReporter struct {
	mu   sync.Mutex
	out  io.Writer
	bars bool
	open map[string]*progressbar.ProgressBar
	seen map[string]int
}

// NewPlainReporter returns a reporter writing to out.
func NewPlainReporter(out io.Writer, bars bool) *PlainReporter {
	return &PlainReporter{
		out:  out,
		bars: bars,
		open: make(map[string]*progressbar.ProgressBar),
		seen: make(map[string]int),
	}
}

// Handle processes a single event.
func (r *PlainReporter) Handle(ev bootstrap.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case bootstrap.KindProgress:
		if ev.Progress != nil {
			r.progress(ev.Step, *ev.Progress)
		}
		return
	case bootstrap.KindOutput:
		r.closeBar(ev.Step)
		fmt.Fprintf(r.out, "[%s] %s\n", ev.Step, ev.Text)
	case bootstrap.KindError:
		r.closeAll()
		label := StatusStyle(StatusError).Render(StatusError)
		if ev.Step != "" {
			fmt.Fprintf(r.out, "[%s] %s: %s\n", ev.Step, label, ev.Text)
		} else {
			fmt.Fprintf(r.out, "%s: %s\n", label, ev.Text)
		}
	case bootstrap.KindFinished:
		r.closeAll()
		fmt.Fprintln(r.out, StatusStyle(StatusDone).Render("bootstrap complete"))
	}
}

func (r *PlainReporter) progress(step string, p bootstrap.Progress) {
	if !r.bars {
		// Log at each quarter so piped output stays readable.
		quarter := int(p.Percentage / 25)
		if p.Total == 0 || quarter < r.seen[step] {
			return
		}
		r.seen[step] = quarter + 1
		fmt.Fprintf(r.out, "[%s] downloading %s\n", step, FormatTransfer(p))
		return
	}

	bar, ok := r.open[step]
	if !ok {
		total := int64(p.Total)
		if p.Total == 0 {
			total = -1
		}
		bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetDescription(fmt.Sprintf("[%s] downloading", step)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(barWidth),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(r.out) }),
		)
		r.open[step] = bar
	}
	_ = bar.Set64(int64(p.Downloaded))
}

func (r *PlainReporter) closeBar(step string) {
	bar, ok := r.open[step]
	if !ok {
		return
	}
	_ = bar.Finish()
	delete(r.open, step)
}

func (r *PlainReporter) closeAll() {
	for step := range r.open {
		r.closeBar(step)
	}
}
