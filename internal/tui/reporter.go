package tui

import (
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"andrust/internal/acquire"
)

// Column headers used by the acquisition table.
const (
	ColStage  = "STAGE"
	ColStatus = "STATUS"
	ColDetail = "DETAIL"
)

const unknownTotalStep = 1 << 20

// NewAcquireModel returns a progress model with one pending row per
// acquisition stage.
func NewAcquireModel(title string) ProgressModel {
	m := NewProgressModel(title, []Column{
		{Header: ColStage, Width: 9},
		{Header: ColStatus, Width: 12},
		{Header: ColDetail, Width: 48},
	})
	for _, stage := range []string{acquire.StageDownload, acquire.StageExtract} {
		m.AddRow(stage, []string{stage, "pending", ""})
	}
	return m
}

// AcquireReporter adapts bubbletea message sending to acquire.Reporter.
// Byte and entry updates are coalesced so the program is not flooded.
type AcquireReporter struct {
	send func(tea.Msg)

	mu          sync.Mutex
	lastPercent int
	lastWritten int64
	maxDone     int
	lastSent    int
	failed      int
}

// NewAcquireReporter constructs a reporter that forwards to send.
func NewAcquireReporter(send func(tea.Msg)) *AcquireReporter {
	return &AcquireReporter{send: send, lastPercent: -1}
}

var _ acquire.Reporter = (*AcquireReporter)(nil)

// Stage implements acquire.Reporter.
func (r *AcquireReporter) Stage(name, status, detail string) {
	r.send(RowUpdateMsg{
		Key:    name,
		Fields: map[string]string{ColStatus: status, ColDetail: detail},
	})
}

// DownloadProgress implements acquire.Reporter.
func (r *AcquireReporter) DownloadProgress(written, total int64) {
	r.mu.Lock()
	emit := false
	if total > 0 {
		percent := int(written * 100 / total)
		if percent != r.lastPercent {
			r.lastPercent = percent
			emit = true
		}
	} else if written-r.lastWritten >= unknownTotalStep {
		r.lastWritten = written
		emit = true
	}
	r.mu.Unlock()

	if emit {
		r.send(DownloadProgressMsg{Written: written, Total: total})
	}
}

// EntryDone implements acquire.Reporter. It is called from several
// extraction workers at once.
func (r *AcquireReporter) EntryDone(_ string, done, total int, err error) {
	r.mu.Lock()
	if err != nil {
		r.failed++
	}
	if done > r.maxDone {
		r.maxDone = done
	}
	step := 64
	if total > 0 && total/100 > step {
		step = total / 100
	}
	emit := err != nil || r.maxDone-r.lastSent >= step || (total > 0 && r.maxDone == total && r.lastSent != total)
	msg := EntryProgressMsg{Done: r.maxDone, Total: total, Failed: r.failed}
	if emit {
		r.lastSent = r.maxDone
	}
	r.mu.Unlock()

	if emit {
		r.send(msg)
	}
}

// PlainReporter writes acquisition progress as plain lines, for pipes and
// dumb terminals.
type PlainReporter struct {
	w io.Writer

	mu         sync.Mutex
	lastDecile int
	failed     int
}

// NewPlainReporter returns a reporter that writes to w.
func NewPlainReporter(w io.Writer) *PlainReporter {
	return &PlainReporter{w: w, lastDecile: -1}
}

var _ acquire.Reporter = (*PlainReporter)(nil)

// Stage implements acquire.Reporter.
func (r *PlainReporter) Stage(name, status, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if detail == "" {
		fmt.Fprintf(r.w, "%-9s %s\n", name, status)
		return
	}
	fmt.Fprintf(r.w, "%-9s %-12s %s\n", name, status, detail)
}

// DownloadProgress implements acquire.Reporter. Only every tenth percent is
// printed.
func (r *PlainReporter) DownloadProgress(written, total int64) {
	if total <= 0 {
		return
	}
	decile := int(written * 10 / total)
	r.mu.Lock()
	defer r.mu.Unlock()
	if decile == r.lastDecile {
		return
	}
	r.lastDecile = decile
	fmt.Fprintf(r.w, "%-9s %3d%%  %s / %s\n", acquire.StageDownload, decile*10, HumanBytes(written), HumanBytes(total))
}

// EntryDone implements acquire.Reporter. Only failed entries are printed.
func (r *PlainReporter) EntryDone(name string, _, _ int, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
	fmt.Fprintf(r.w, "%-9s failed    %s: %v\n", acquire.StageExtract, name, err)
}
