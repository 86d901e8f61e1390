package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"hostboot/internal/bootstrap"
)

// StepColumns is the table layout used for bootstrap progress.
var StepColumns = []Column{
	{Header: "STEP", Width: 12},
	{Header: "STATUS", Width: 11},
	{Header: "DETAIL", Width: 60},
}

// NewStepModel builds a progress model with one pending row per step.
func NewStepModel(title string, steps []string) ProgressModel {
	m := NewProgressModel(title, StepColumns)
	for _, step := range steps {
		m.AddRow(step, []string{step, StatusPending, ""})
	}
	return m
}

// EventReporter turns bootstrap events into table and bar updates.
type EventReporter struct {
	send   func(tea.Msg)
	status map[string]string
	steps  []string
}

// NewEventReporter returns a reporter that forwards to send. Steps must match
// the rows of the model the messages are delivered to.
func NewEventReporter(send func(tea.Msg), steps []string) *EventReporter {
	status := make(map[string]string, len(steps))
	for _, s := range steps {
		status[s] = StatusPending
	}
	return &EventReporter{send: send, status: status, steps: steps}
}

// Handle processes a single event.
func (r *EventReporter) Handle(ev bootstrap.Event) {
	switch ev.Kind {
	case bootstrap.KindOutput:
		r.setRow(ev.Step, StatusRunning, ev.Text)
		r.send(BarUpdateMsg{Key: ev.Step, Percent: -1})

	case bootstrap.KindProgress:
		if ev.Progress == nil {
			return
		}
		r.setRow(ev.Step, StatusDownloading, FormatTransfer(*ev.Progress))
		r.send(BarUpdateMsg{
			Key:     ev.Step,
			Percent: ev.Progress.Percentage / 100,
			Label:   FormatSpeed(ev.Progress.SpeedBPS),
		})

	case bootstrap.KindError:
		if ev.Step != "" {
			r.setRow(ev.Step, StatusError, ev.Text)
			return
		}
		for _, step := range r.steps {
			switch r.status[step] {
			case StatusRunning, StatusDownloading:
				r.setRow(step, StatusError, ev.Text)
				r.send(BarUpdateMsg{Key: step, Percent: -1})
			}
		}

	case bootstrap.KindFinished:
		for _, step := range r.steps {
			switch r.status[step] {
			case StatusRunning, StatusDownloading:
				r.setRow(step, StatusDone, "")
			case StatusPending:
				r.setRow(step, StatusCurrent, "")
			}
			r.send(BarUpdateMsg{Key: step, Percent: -1})
		}
	}
}

func (r *EventReporter) setRow(step, status, detail string) {
	if step == "" {
		return
	}
	// An error on a step sticks until the run ends.
	if r.status[step] == StatusError && status != StatusError {
		return
	}
	r.status[step] = status
	fields := map[string]string{"STATUS": status}
	if detail != "" || status == StatusDone || status == StatusCurrent {
		fields["DETAIL"] = detail
	}
	r.send(RowUpdateMsg{Key: step, Fields: fields})
}

// FormatTransfer renders "downloaded / total" in human units.
func FormatTransfer(p bootstrap.Progress) string {
	if p.Total == 0 {
		return FormatBytes(p.Downloaded)
	}
	return fmt.Sprintf("%s / %s (%.0f%%)", FormatBytes(p.Downloaded), FormatBytes(p.Total), p.Percentage)
}

// FormatSpeed renders a transfer rate.
func FormatSpeed(bps float64) string {
	if bps <= 0 {
		return ""
	}
	return FormatBytes(uint64(bps)) + "/s"
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
