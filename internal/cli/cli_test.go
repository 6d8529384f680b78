package cli

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"andrust/internal/acquire"
	"andrust/internal/cargoconfig"
	"andrust/internal/paths"
	"andrust/internal/resolver"
	"andrust/internal/toolset"
	"andrust/internal/toolset/toolsettest"
)

type testEnv struct {
	t       *testing.T
	home    string
	project string
	data    string
	vars    map[string]string
}

// newTestEnv isolates the command package from the real host: a linux host,
// a fake home directory, a temporary project and data directory.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		t:       t,
		home:    t.TempDir(),
		project: t.TempDir(),
		data:    t.TempDir(),
		vars:    map[string]string{},
	}

	origHost, origData, origTTY, origClient, origEnv, origStdin :=
		currentHost, dataPaths, stdinIsTerminal, newHTTPClient, resolverEnv, stdin
	t.Cleanup(func() {
		currentHost, dataPaths, stdinIsTerminal, newHTTPClient, resolverEnv, stdin =
			origHost, origData, origTTY, origClient, origEnv, origStdin
		resetFlags()
	})

	resetFlags()
	projectDir = env.project
	currentHost = func() (toolset.Host, error) {
		host, _ := toolset.HostFor("linux")
		return host, nil
	}
	dataPaths = func() (paths.DataPaths, error) {
		return paths.DataPaths{
			Root:         env.data,
			DownloadsDir: filepath.Join(env.data, "downloads"),
			NDKDir:       filepath.Join(env.data, "ndk"),
			LogsDir:      filepath.Join(env.data, "logs"),
		}, nil
	}
	stdinIsTerminal = func() bool { return false }
	resolverEnv = resolver.MapEnv{Vars: env.vars, Home: env.home}
	stdin = strings.NewReader("")
	return env
}

func resetFlags() {
	projectDir, configPath, ndkRoot = "", "", ""
	outputJSON, noProgress, noPrompt, noDownload, verbose = false, false, false, false, false
	fetchURL, fetchKeepArchive = "", false
	targetsOS = ""
	downloadsPrune = false
}

func (e *testEnv) installNDK(root string) string {
	e.t.Helper()
	toolsettest.Populate(e.t, root, toolsettest.Templates())
	return root
}

func (e *testEnv) writeConfig(body string) {
	e.t.Helper()
	if err := os.WriteFile(filepath.Join(e.project, "andrust.yaml"), []byte(body), 0o644); err != nil {
		e.t.Fatalf("write config: %v", err)
	}
}

// serveNDK serves a zip laid out like an NDK release and returns its URL.
func (e *testEnv) serveNDK() string {
	e.t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	add := func(name, body string) {
		w, err := zw.Create(name)
		if err != nil {
			e.t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			e.t.Fatalf("zip write: %v", err)
		}
	}
	add("android-ndk-r21b/source.properties", "Pkg.Desc = Android NDK\nPkg.Revision = 21.1.6352462\n")
	for _, tpl := range toolsettest.Templates() {
		add(path.Join("android-ndk-r21b", tpl.Archiver), "#!/bin/sh\n")
		add(path.Join("android-ndk-r21b", tpl.Linker), "#!/bin/sh\n")
	}
	if err := zw.Close(); err != nil {
		e.t.Fatalf("zip close: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "ndk.zip", time.Time{}, bytes.NewReader(buf.Bytes()))
	}))
	e.t.Cleanup(srv.Close)
	newHTTPClient = srv.Client
	return srv.URL + "/android-ndk-r21b-linux-x86_64.zip"
}

func writeSourceProperties(t *testing.T, root, revision string) {
	t.Helper()
	body := "Pkg.Desc = Android NDK\nPkg.Revision = " + revision + "\n"
	if err := os.WriteFile(filepath.Join(root, "source.properties"), []byte(body), 0o644); err != nil {
		t.Fatalf("write source.properties: %v", err)
	}
}

func writeCargoConfig(t *testing.T, dest, ndk string) {
	t.Helper()
	set, err := toolset.Bind(ndk, toolsettest.Templates())
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	data, err := cargoconfig.Render(set)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// execute runs the root command against the env's project. Building the root
// command resets every persistent flag variable, so --project is passed on
// the command line.
func (e *testEnv) execute(args ...string) (string, string, error) {
	e.t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--project", e.project}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestSetupWritesCargoConfig(t *testing.T) {
	env := newTestEnv(t)
	ndk := env.installNDK(filepath.Join(t.TempDir(), "ndk"))
	env.vars["ANDROID_NDK_HOME"] = ndk

	out, _, err := env.execute("setup")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !strings.Contains(out, "NDK root: "+ndk+" (NDK environment variable)") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	entries, err := cargoconfig.Read(filepath.Join(env.project, ".cargo", "config"))
	if err != nil {
		t.Fatalf("read cargo config: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 stanzas, got %d", len(entries))
	}
	linker := entries[toolset.Aarch64].Linker
	if !strings.HasPrefix(linker, ndk) || !strings.HasSuffix(linker, "aarch64-linux-android21-clang") {
		t.Fatalf("unexpected linker %q", linker)
	}
}

func TestSetupRespectsConfiguredTargets(t *testing.T) {
	env := newTestEnv(t)
	ndk := env.installNDK(filepath.Join(t.TempDir(), "ndk"))
	env.writeConfig("version: 1\nndk_root: " + ndk + "\ntargets:\n  - armv7-linux-androideabi\n")

	out, _, err := env.execute("--json")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	var result setupResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if result.Strategy != resolver.StrategyHint || result.Root != ndk {
		t.Fatalf("expected configured root, got %+v", result)
	}
	if len(result.Toolsets) != 1 || result.Toolsets[0].Triple != toolset.Armv7 {
		t.Fatalf("expected only armv7, got %+v", result.Toolsets)
	}
}

func TestSetupRejectedRootWarns(t *testing.T) {
	env := newTestEnv(t)
	ndk := env.installNDK(filepath.Join(env.home, "tools", "Android", "sdk", "ndk-bundle"))
	empty := t.TempDir()

	out, errOut, err := env.execute("setup", "--root", empty)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !strings.Contains(errOut, "warning: ndk root "+empty+" rejected") {
		t.Fatalf("expected rejected root warning, got %q", errOut)
	}
	if !strings.Contains(out, ndk) {
		t.Fatalf("expected fallback to home ndk, got:\n%s", out)
	}
}

func TestSetupDownloadsWhenNothingFound(t *testing.T) {
	env := newTestEnv(t)
	url := env.serveNDK()
	env.writeConfig("version: 1\nmin_revision: 21.0.0\ndownload:\n  url: " + url + "\n")

	out, errOut, err := env.execute("setup", "--json")
	if err != nil {
		t.Fatalf("setup: %v\nstderr: %s", err, errOut)
	}
	var result setupResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	want := filepath.Join(env.data, "ndk", "android-ndk-r21b")
	if result.Strategy != resolver.StrategyAcquire || result.Root != want {
		t.Fatalf("expected download into %s, got %+v", want, result)
	}
	if result.Revision != "21.1.6352462" || len(result.Warnings) != 0 {
		t.Fatalf("unexpected revision or warnings %+v", result)
	}

	// A second run reuses the extracted copy.
	out, _, err = env.execute("setup", "--json", "--no-download")
	if err != nil {
		t.Fatalf("second setup: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Strategy != resolver.StrategyCache {
		t.Fatalf("expected cache strategy, got %s", result.Strategy)
	}
}

func TestSetupFailsWithoutDownload(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.execute("setup", "--no-download")
	if err == nil || !strings.Contains(err.Error(), "toolset does not exist") {
		t.Fatalf("expected resolution failure, got %v", err)
	}
}

func TestSetupRejectsInvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	env.writeConfig("version: 1\ntargets: [mips-linux-android]\n")

	_, _, err := env.execute("setup")
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("expected invalid config error, got %v", err)
	}
}

func TestDetectListsAttempts(t *testing.T) {
	env := newTestEnv(t)
	sdk := t.TempDir()
	env.installNDK(filepath.Join(sdk, "ndk-bundle"))
	env.vars["ANDROID_SDK_ROOT"] = sdk
	env.vars["NDK_TOOL_ROOT"] = filepath.Join(sdk, "missing")

	out, _, err := env.execute("detect", "--json")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	var result detectResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if !result.Found || result.Strategy != resolver.StrategySDK {
		t.Fatalf("expected sdk hit, got %+v", result)
	}
	if len(result.Attempts) != 2 || result.Attempts[0].Accepted || !result.Attempts[1].Accepted {
		t.Fatalf("expected rejected env then accepted sdk, got %+v", result.Attempts)
	}
	if _, err := os.Stat(filepath.Join(env.project, ".cargo", "config")); !os.IsNotExist(err) {
		t.Fatalf("detect must not write cargo config, stat err %v", err)
	}
}

func TestDetectNothingFound(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.execute("detect")
	if err == nil {
		t.Fatal("expected error when no ndk is found")
	}
	if !strings.Contains(out, "STRATEGY") {
		t.Fatalf("expected attempts table, got:\n%s", out)
	}
}

func TestFetchCommand(t *testing.T) {
	env := newTestEnv(t)
	url := env.serveNDK()

	out, _, err := env.execute("fetch", "--url", url, "--keep-archive", "--json")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	var result fetchResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if !result.Valid || result.URL != url || result.Revision != "21.1.6352462" {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(filepath.Join(env.data, "downloads", "android-ndk-r21b-linux-x86_64.zip")); err != nil {
		t.Fatalf("expected archive kept: %v", err)
	}
}

func TestTargetsCommand(t *testing.T) {
	env := newTestEnv(t)
	env.writeConfig("version: 1\ntargets: [x86_64-linux-android]\n")

	out, _, err := env.execute("targets", "--os", "windows", "--json")
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	var rows []targetRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Selected != (row.Target == toolset.X86_64) {
			t.Errorf("unexpected selection for %s", row.Target)
		}
		if !strings.HasSuffix(row.Linker, ".cmd") || !strings.HasSuffix(row.Archiver, ".exe") {
			t.Errorf("expected windows extensions, got %+v", row)
		}
	}

	if _, _, err := env.execute("targets", "--os", "plan9"); err == nil {
		t.Fatal("expected unsupported os error")
	}
}

func TestTargetsDefaultsToCurrentHost(t *testing.T) {
	host, err := toolset.CurrentHost()
	if err != nil {
		t.Skipf("unsupported host: %v", err)
	}
	env := newTestEnv(t)

	out, _, err := env.execute("targets", "--json")
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	var rows []targetRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	want := toolset.TemplatesFor(host)
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(rows))
	}
	for _, row := range rows {
		if row.Linker != want[row.Target].Linker {
			t.Errorf("%s: expected linker %s, got %s", row.Target, want[row.Target].Linker, row.Linker)
		}
		if !row.Selected {
			t.Errorf("expected %s selected without a targets list", row.Target)
		}
	}
}

func TestConfigShowCommand(t *testing.T) {
	env := newTestEnv(t)
	env.writeConfig("version: 1\nmin_revision: \"21.1\"\ntargets: [aarch64-linux-android]\n")

	out, _, err := env.execute("config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"version: 1", "min_revision: \"21.1\"", "- aarch64-linux-android", "download:"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestShowCommand(t *testing.T) {
	env := newTestEnv(t)
	ndk := env.installNDK(filepath.Join(t.TempDir(), "ndk"))
	cargoPath := filepath.Join(env.project, ".cargo", "config")
	writeCargoConfig(t, cargoPath, ndk)
	f, err := os.OpenFile(cargoPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("\n[target.x86_64-unknown-linux-gnu]\nlinker = \"cc\"\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()
	if err := os.Remove(filepath.Join(ndk, filepath.FromSlash(toolsettest.Templates()[toolset.I686].Linker))); err != nil {
		t.Fatal(err)
	}

	out, _, err := env.execute("show", "--json")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var rows []showRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	for _, row := range rows {
		want := "ok"
		if row.Target == toolset.I686 {
			want = "missing"
		}
		if row.Status != want {
			t.Errorf("%s: got %s, want %s", row.Target, row.Status, want)
		}
	}
}

func TestDownloadsListsAndPrunes(t *testing.T) {
	env := newTestEnv(t)
	url := env.serveNDK()

	if _, _, err := env.execute("fetch", "--url", url); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	out, _, err := env.execute("downloads", "--json")
	if err != nil {
		t.Fatalf("downloads: %v", err)
	}
	var rows []downloadRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	root := filepath.Join(env.data, "ndk", "android-ndk-r21b")
	if len(rows) != 1 || rows[0].Root != root || !rows[0].Present || rows[0].Entries == 0 {
		t.Fatalf("unexpected rows %+v", rows)
	}

	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}
	out, _, err = env.execute("downloads", "--prune")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(out, "Pruned 1 entries.") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	m, err := acquire.LoadManifest(filepath.Join(env.data, acquire.ManifestFileName))
	if err != nil || len(m.Entries) != 0 {
		t.Fatalf("expected empty manifest after prune, got %+v %v", m, err)
	}
}
