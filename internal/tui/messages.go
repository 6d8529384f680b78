package tui

// RowUpdateMsg updates a single row's fields by column name.
type RowUpdateMsg struct {
	Key    string
	Fields map[string]string
}

// DownloadProgressMsg reports bytes received so far. Total is zero when the
// server did not announce a length.
type DownloadProgressMsg struct {
	Written int64
	Total   int64
}

// EntryProgressMsg reports extracted archive entries. Total is zero for
// streamed archives.
type EntryProgressMsg struct {
	Done   int
	Total  int
	Failed int
}

// WorkDoneMsg signals that all background work has completed.
type WorkDoneMsg struct{}

// ErrorMsg signals a fatal error; the TUI should quit.
type ErrorMsg struct {
	Err error
}
