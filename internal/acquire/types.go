package acquire

import (
	"errors"
	"fmt"
	"strings"
)

// Stage names reported while an acquisition runs.
const (
	StageDownload = "download"
	StageExtract  = "extract"
)

// Job describes one download+extract attempt.
type Job struct {
	FileName    string
	URL         string
	ArchivePath string
	ExtractDir  string
}

// ProgressFunc receives the cumulative number of bytes written and the
// expected total (-1 when the server did not announce a length).
type ProgressFunc func(written, total int64)

// Reporter observes a running acquisition. Implementations must be safe for
// concurrent use: EntryDone is called from extraction workers.
type Reporter interface {
	Stage(name, status, detail string)
	DownloadProgress(written, total int64)
	EntryDone(name string, done, total int, err error)
}

// NopReporter discards every notification.
type NopReporter struct{}

func (NopReporter) Stage(string, string, string) {}

func (NopReporter) DownloadProgress(int64, int64) {}

func (NopReporter) EntryDone(string, int, int, error) {}

var _ Reporter = NopReporter{}

// DownloadError reports a failed fetch. The destination may hold a partial file.
type DownloadError struct {
	URL  string
	Dest string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ErrUnsafePath is returned for archive entries that would land outside the
// extraction root.
var ErrUnsafePath = errors.New("entry escapes extraction root")

// EntryError is the failure of a single archive entry.
type EntryError struct {
	Name string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// ExtractError reports an archive that could not be opened or entries that
// failed to extract. Sibling entries are still extracted when one fails.
type ExtractError struct {
	Archive string
	Err     error
	Entries []*EntryError
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %v", e.Archive, e.Err)
	}
	names := make([]string, 0, len(e.Entries))
	for _, entry := range e.Entries {
		names = append(names, entry.Error())
	}
	return fmt.Sprintf("extract %s: %d entries failed: %s", e.Archive, len(e.Entries), strings.Join(names, "; "))
}

func (e *ExtractError) Unwrap() []error {
	errs := make([]error, 0, len(e.Entries)+1)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	for _, entry := range e.Entries {
		errs = append(errs, entry)
	}
	return errs
}
