package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"andrust/internal/toolset"
)

// Strategy names, in search order.
const (
	StrategyHint    = "hint"
	StrategyEnv     = "env"
	StrategySDK     = "sdk"
	StrategyHome    = "home"
	StrategyLatest  = "latest"
	StrategyCache   = "cache"
	StrategyPrompt  = "prompt"
	StrategyAcquire = "acquire"
)

var (
	// NDKEnvVars name the NDK root directly.
	NDKEnvVars = []string{"NDK_TOOL_ROOT", "ANDROID_NDK_HOME", "ANDROID_NDK_ROOT"}
	// SDKEnvVars name an Android SDK home.
	SDKEnvVars = []string{"ANDROID_SDK_ROOT", "ANDROID_HOME"}
)

const (
	sdkBundleDir = "ndk-bundle"
	sdkNDKDir    = "ndk"
)

// Attempt records one candidate (or one failed strategy) tried by Resolve.
type Attempt struct {
	Strategy  string `json:"strategy"`
	Candidate string `json:"candidate,omitempty"`
	Accepted  bool   `json:"accepted"`
	Error     string `json:"error,omitempty"`
}

// Resolution is the outcome of a successful Resolve.
type Resolution struct {
	Root     string    `json:"root"`
	Strategy string    `json:"strategy"`
	Attempts []Attempt `json:"attempts"`
}

// Resolver searches for an NDK root that carries every required toolset.
type Resolver struct {
	host      toolset.Host
	templates map[toolset.Triple]toolset.Template
	env       Env
	prompter  Prompter
	acquirer  Acquirer
	cacheDir  string
	logger    *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEnv replaces the process environment.
func WithEnv(env Env) Option { return func(r *Resolver) { r.env = env } }

// WithPrompter enables the interactive strategy.
func WithPrompter(p Prompter) Option { return func(r *Resolver) { r.prompter = p } }

// WithAcquirer enables the download fallback.
func WithAcquirer(a Acquirer) Option { return func(r *Resolver) { r.acquirer = a } }

// WithCacheDir adds the newest directory under dir, where earlier
// acquisitions were extracted, as a candidate ahead of the prompt.
func WithCacheDir(dir string) Option { return func(r *Resolver) { r.cacheDir = dir } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(r *Resolver) { r.logger = l } }

// New creates a resolver for host that requires every template in templates.
func New(host toolset.Host, templates map[toolset.Triple]toolset.Template, opts ...Option) *Resolver {
	r := &Resolver{
		host:      host,
		templates: templates,
		env:       OSEnv{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type strategy struct {
	name string
	find func(ctx context.Context) ([]string, error)
}

func (r *Resolver) strategies(hint string) []strategy {
	list := []strategy{
		{StrategyHint, func(context.Context) ([]string, error) { return nonEmpty(hint), nil }},
		{StrategyEnv, func(context.Context) ([]string, error) { return r.envValues(NDKEnvVars), nil }},
		{StrategySDK, func(context.Context) ([]string, error) { return r.sdkBundles(), nil }},
		{StrategyHome, func(context.Context) ([]string, error) { return r.homeNDK() }},
		{StrategyLatest, func(context.Context) ([]string, error) { return r.latestVersions() }},
	}
	if r.cacheDir != "" {
		list = append(list, strategy{StrategyCache, func(context.Context) ([]string, error) {
			latest, err := LatestSubdir(r.cacheDir)
			if err != nil {
				r.logger.Debug("no cached ndk", zap.String("dir", r.cacheDir), zap.Error(err))
				return nil, nil
			}
			return []string{latest}, nil
		}})
	}
	if r.prompter != nil {
		list = append(list, strategy{StrategyPrompt, func(ctx context.Context) ([]string, error) {
			answer, err := r.prompter.PromptRoot(ctx)
			if err != nil {
				return nil, err
			}
			return []string{answer}, nil
		}})
	}
	if r.acquirer != nil {
		list = append(list, strategy{StrategyAcquire, func(ctx context.Context) ([]string, error) {
			root, err := r.acquirer.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			return []string{root}, nil
		}})
	}
	return list
}

// Resolve runs the search strategies in order and returns the first root
// that validates. Later strategies are not consulted once one succeeds.
func (r *Resolver) Resolve(ctx context.Context, hint string) (Resolution, error) {
	var (
		res        Resolution
		acquireErr error
	)
	seen := mapset.NewThreadUnsafeSet[string]()

	for _, s := range r.strategies(hint) {
		candidates, err := s.find(ctx)
		if err != nil {
			res.Attempts = append(res.Attempts, Attempt{Strategy: s.name, Error: err.Error()})
			r.logger.Info("strategy failed", zap.String("strategy", s.name), zap.Error(err))
			if s.name == StrategyAcquire {
				acquireErr = err
			}
			continue
		}

		for _, candidate := range candidates {
			root, err := r.check(candidate, seen)
			attempt := Attempt{Strategy: s.name, Candidate: candidate}
			if root != "" {
				attempt.Candidate = root
			}
			if err != nil {
				attempt.Error = err.Error()
				res.Attempts = append(res.Attempts, attempt)
				if s.name == StrategyHint {
					r.logger.Warn("ndk root hint rejected", zap.String("root", candidate), zap.Error(err))
				} else {
					r.logger.Debug("candidate rejected", zap.String("strategy", s.name), zap.String("root", candidate), zap.Error(err))
				}
				continue
			}

			attempt.Accepted = true
			res.Attempts = append(res.Attempts, attempt)
			res.Root = root
			res.Strategy = s.name
			r.logger.Info("ndk root resolved", zap.String("strategy", s.name), zap.String("root", root))
			return res, nil
		}
	}

	return res, &ResolutionError{Attempts: res.Attempts, Cause: acquireErr}
}

var errAlreadyChecked = errors.New("already checked")

// check turns a raw candidate into an absolute root and validates it.
func (r *Resolver) check(candidate string, seen mapset.Set[string]) (string, error) {
	root, err := r.normalize(candidate)
	if err != nil {
		return "", err
	}
	if seen.Contains(root) {
		return root, errAlreadyChecked
	}
	seen.Add(root)

	info, err := os.Stat(root)
	if err != nil {
		return root, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return root, fmt.Errorf("%s is not a directory", root)
	}
	if err := toolset.Validate(root, r.templates); err != nil {
		return root, err
	}
	return root, nil
}

func (r *Resolver) normalize(candidate string) (string, error) {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return "", &InvalidPathError{Path: candidate, Reason: "empty"}
	}
	if strings.ContainsRune(trimmed, 0) {
		return "", &InvalidPathError{Path: candidate, Reason: "contains NUL byte"}
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") || strings.HasPrefix(trimmed, `~\`) {
		home, err := r.env.HomeDir()
		if err != nil {
			return "", &InvalidPathError{Path: candidate, Reason: "cannot expand ~: " + err.Error()}
		}
		trimmed = filepath.Join(home, trimmed[1:])
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", &InvalidPathError{Path: candidate, Reason: err.Error()}
	}
	return abs, nil
}

func (r *Resolver) envValues(keys []string) []string {
	var values []string
	for _, key := range keys {
		if v, ok := r.env.Getenv(key); ok && strings.TrimSpace(v) != "" {
			values = append(values, v)
		}
	}
	return values
}

func (r *Resolver) sdkBundles() []string {
	var roots []string
	for _, sdk := range r.envValues(SDKEnvVars) {
		roots = append(roots, filepath.Join(sdk, sdkBundleDir))
	}
	return roots
}

func (r *Resolver) homeNDK() ([]string, error) {
	if len(r.host.HomeNDK) == 0 {
		return nil, nil
	}
	home, err := r.env.HomeDir()
	if err != nil {
		return nil, fmt.Errorf("detect user home: %w", err)
	}
	return []string{filepath.Join(append([]string{home}, r.host.HomeNDK...)...)}, nil
}

// latestVersions picks the most recently modified version directory under
// <sdk>/ndk for every known SDK location.
func (r *Resolver) latestVersions() ([]string, error) {
	sdks := r.envValues(SDKEnvVars)
	if len(r.host.HomeSDK) > 0 {
		if home, err := r.env.HomeDir(); err == nil {
			sdks = append(sdks, filepath.Join(append([]string{home}, r.host.HomeSDK...)...))
		}
	}

	var candidates []string
	for _, sdk := range sdks {
		latest, err := LatestSubdir(filepath.Join(sdk, sdkNDKDir))
		if err != nil {
			r.logger.Debug("no ndk versions", zap.String("sdk", sdk), zap.Error(err))
			continue
		}
		candidates = append(candidates, latest)
	}
	return candidates, nil
}
