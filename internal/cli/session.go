package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"andrust/internal/acquire"
	"andrust/internal/config"
	"andrust/internal/logx"
	"andrust/internal/paths"
	"andrust/internal/resolver"
	"andrust/internal/toolset"
	"andrust/internal/tui"
)

// Seams replaced in tests.
var (
	currentHost     = toolset.CurrentHost
	dataPaths       = paths.Data
	stdinIsTerminal = func() bool { return tui.IsTerminal(os.Stdin) }
	newHTTPClient   = func() *http.Client { return &http.Client{} }

	resolverEnv resolver.Env = resolver.OSEnv{}
	stdin       io.Reader    = os.Stdin
)

// session bundles everything a command needs after flags, config and
// logging have been set up.
type session struct {
	cmd       *cobra.Command
	project   paths.ProjectPaths
	data      paths.DataPaths
	cfg       config.Config
	host      toolset.Host
	templates map[toolset.Triple]toolset.Template
	mode      tui.OutputMode
	logger    *zap.Logger
	closer    io.Closer
	status    *tui.StatusWriter
	warnings  []string
}

func openSession(cmd *cobra.Command, command string) (*session, error) {
	pp, err := paths.Resolve(projectDir)
	if err != nil {
		return nil, err
	}
	pp = pp.WithConfigFile(configPath)

	cfg, err := config.Load(pp.ConfigFile)
	if err != nil {
		return nil, err
	}
	results := cfg.Validate()
	if config.HasErrors(results) {
		return nil, validationError(results)
	}
	cfg.ResolvePaths(pp.Root)

	host, err := currentHost()
	if err != nil {
		return nil, err
	}

	dp, err := dataPaths()
	if err != nil {
		return nil, err
	}
	dp = paths.ApplyConfig(dp, cfg)

	opts := logx.Options{Dir: dp.LogsDir, Command: command}
	if verbose {
		opts.Console = cmd.ErrOrStderr()
		opts.Level = zapcore.DebugLevel
	}
	logger, closer, err := logx.New(opts)
	if err != nil {
		return nil, err
	}

	s := &session{
		cmd:       cmd,
		project:   pp,
		data:      dp,
		cfg:       cfg,
		host:      host,
		templates: selectTemplates(host, cfg),
		mode:      tui.DetectMode(cmd.OutOrStdout(), noProgress || verbose, outputJSON),
		logger:    logger,
		closer:    closer,
	}
	for _, r := range results {
		s.warnings = append(s.warnings, r.Message)
	}
	logger.Debug("session opened",
		zap.String("project", pp.Root),
		zap.String("config", pp.ConfigFile),
		zap.String("data", dp.Root),
		zap.String("host", host.Tag),
	)
	return s, nil
}

func (s *session) Close() {
	s.status.Stop()
	if s.closer != nil {
		_ = s.closer.Close()
	}
}

func selectTemplates(host toolset.Host, cfg config.Config) map[toolset.Triple]toolset.Template {
	all := toolset.TemplatesFor(host)
	selected := make(map[toolset.Triple]toolset.Template, len(all))
	for _, triple := range cfg.SelectedTriples() {
		if tpl, ok := all[triple]; ok {
			selected[triple] = tpl
		}
	}
	return selected
}

// hint returns the explicit root: the --root flag wins over ndk_root.
func (s *session) hint() string {
	if ndkRoot != "" {
		return ndkRoot
	}
	return s.cfg.NDKRoot
}

func (s *session) promptAllowed() bool {
	return !noPrompt && s.cfg.PromptEnabled() && s.mode != tui.ModeJSON && stdinIsTerminal()
}

func (s *session) downloadAllowed() bool {
	return !noDownload && s.cfg.DownloadEnabled()
}

// startStatus shows a spinner in TUI mode. Other modes get a nil writer.
func (s *session) startStatus(msg string) {
	if s.mode != tui.ModeTUI {
		return
	}
	s.status = tui.NewStatusWriter(s.cmd.ErrOrStderr())
	s.status.Updatef("%s", msg)
}

func (s *session) newResolver(interactive bool) *resolver.Resolver {
	opts := []resolver.Option{
		resolver.WithEnv(resolverEnv),
		resolver.WithLogger(s.logger.Named("resolver")),
		resolver.WithCacheDir(s.data.NDKDir),
	}
	if interactive && s.promptAllowed() {
		opts = append(opts, resolver.WithPrompter(&statusPrompter{
			s:     s,
			inner: resolver.LinePrompter{In: stdin, Out: s.cmd.OutOrStdout()},
		}))
	}
	if interactive && s.downloadAllowed() {
		opts = append(opts, resolver.WithAcquirer(&pipelineAcquirer{s: s}))
	}
	return resolver.New(s.host, s.templates, opts...)
}

func (s *session) newPipeline() *acquire.Pipeline {
	url := s.cfg.Download.URL
	if url == "" {
		url = s.host.ArchiveURL
	}
	return &acquire.Pipeline{
		URL:          url,
		DownloadDir:  s.data.DownloadsDir,
		ExtractDir:   s.data.NDKDir,
		LockDir:      s.data.Root,
		Workers:      s.cfg.Download.Workers,
		KeepArchive:  s.cfg.Download.KeepArchive,
		ManifestPath: s.data.ManifestFile(),
		Client:       newHTTPClient(),
		Logger:       s.logger.Named("acquire"),
	}
}

// rejectedHint turns a failed hint attempt into a user-facing warning.
func rejectedHint(attempts []resolver.Attempt) []string {
	var warnings []string
	for _, a := range attempts {
		if a.Strategy == resolver.StrategyHint && !a.Accepted && a.Error != "" {
			warnings = append(warnings, fmt.Sprintf("ndk root %s rejected: %s", tui.NonEmptyOrDash(a.Candidate), a.Error))
		}
	}
	return warnings
}

// statusPrompter clears the spinner before asking on the terminal.
type statusPrompter struct {
	s     *session
	inner resolver.Prompter
}

func (p *statusPrompter) PromptRoot(ctx context.Context) (string, error) {
	p.s.status.Stop()
	return p.inner.PromptRoot(ctx)
}

// pipelineAcquirer runs the download pipeline with the session's output mode.
type pipelineAcquirer struct {
	s *session
}

func (a *pipelineAcquirer) Acquire(ctx context.Context) (string, error) {
	s := a.s
	s.status.Stop()

	timeout, err := s.cfg.Download.TimeoutDuration()
	if err != nil {
		return "", err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := s.data.EnsureDirs(); err != nil {
		return "", err
	}
	p := s.newPipeline()
	out := s.cmd.ErrOrStderr()

	switch s.mode {
	case tui.ModeTUI:
		return runPipelineTUI(ctx, out, p)
	case tui.ModePlain:
		p.Reporter = tui.NewPlainReporter(out)
	}
	return p.Acquire(ctx)
}

func runPipelineTUI(ctx context.Context, out io.Writer, p *acquire.Pipeline) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		root string
		err  error
	}
	results := make(chan result, 1)

	model := tui.NewAcquireModel("Fetching Android NDK")
	runErr := tui.RunWithWork(out, model, func(send func(msg tea.Msg)) error {
		p.Reporter = tui.NewAcquireReporter(send)
		root, err := p.Acquire(ctx)
		results <- result{root: root, err: err}
		return err
	})

	// The program may have been quit early; stop the download and wait for
	// the pipeline to return.
	cancel()
	res := <-results
	if res.err != nil {
		return "", res.err
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return "", runErr
	}
	return res.root, nil
}
