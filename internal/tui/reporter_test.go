package tui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"andrust/internal/acquire"
)

type sink struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (s *sink) send(msg tea.Msg) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

func TestAcquireReporterCoalescesDownload(t *testing.T) {
	var s sink
	r := NewAcquireReporter(s.send)

	const total = 1000
	for written := int64(0); written <= total; written += 5 {
		r.DownloadProgress(written, total)
	}
	if len(s.msgs) != 101 {
		t.Fatalf("expected one message per percent, got %d", len(s.msgs))
	}
	last := s.msgs[len(s.msgs)-1].(DownloadProgressMsg)
	if last.Written != total || last.Total != total {
		t.Fatalf("unexpected final message %+v", last)
	}
}

func TestAcquireReporterEntries(t *testing.T) {
	var s sink
	r := NewAcquireReporter(s.send)

	const total = 200
	var wg sync.WaitGroup
	for i := 1; i <= total; i++ {
		wg.Add(1)
		go func(done int) {
			defer wg.Done()
			var err error
			if done == 7 {
				err = errors.New("unsafe path")
			}
			r.EntryDone("entry", done, total, err)
		}(i)
	}
	wg.Wait()

	// Messages are sent outside the lock, so only the maxima are stable.
	var maxDone, maxFailed int
	for _, msg := range s.msgs {
		if m, ok := msg.(EntryProgressMsg); ok {
			maxDone = max(maxDone, m.Done)
			maxFailed = max(maxFailed, m.Failed)
		}
	}
	if maxDone != total || maxFailed != 1 {
		t.Fatalf("expected %d entries with one failure, got %d and %d", total, maxDone, maxFailed)
	}
	if len(s.msgs) >= total {
		t.Fatalf("expected coalesced updates, got %d messages", len(s.msgs))
	}
}

func TestAcquireReporterStage(t *testing.T) {
	var s sink
	r := NewAcquireReporter(s.send)
	r.Stage(acquire.StageExtract, "extracting", "/data/ndk")

	msg, ok := s.msgs[0].(RowUpdateMsg)
	if !ok || msg.Key != acquire.StageExtract || msg.Fields[ColStatus] != "extracting" {
		t.Fatalf("unexpected message %#v", s.msgs[0])
	}
}

func TestPlainReporter(t *testing.T) {
	var buf strings.Builder
	r := NewPlainReporter(&buf)

	r.Stage(acquire.StageDownload, "downloading", "ndk.zip")
	for written := int64(0); written <= 100; written++ {
		r.DownloadProgress(written, 100)
	}
	r.EntryDone("ok", 1, 2, nil)
	r.EntryDone("../evil", 2, 2, acquire.ErrUnsafePath)
	r.Stage(acquire.StageExtract, "extracted", "")

	out := buf.String()
	if strings.Count(out, "%  ") != 11 {
		t.Fatalf("expected one line per ten percent, got:\n%s", out)
	}
	if !strings.Contains(out, "failed    ../evil") {
		t.Fatalf("expected failed entry line, got:\n%s", out)
	}
	if strings.Contains(out, " ok") {
		t.Fatalf("expected successful entries suppressed, got:\n%s", out)
	}
	if !strings.HasSuffix(out, "extract   extracted\n") {
		t.Fatalf("expected stage line without detail, got:\n%s", out)
	}
}
