package acquire

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

type archiveEntry struct {
	name string
	body string
	mode fs.FileMode
}

func writeZip(t *testing.T, path string, entries []archiveEntry) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.mode != 0 {
			hdr.SetMode(e.mode)
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("create %s: %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write zip: %v", err)
	}
}

func TestExtractZipCreatesEveryEntry(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "ndk.zip")
	entries := []archiveEntry{
		{name: "android-ndk-r21b/"},
		{name: "android-ndk-r21b/source.properties", body: "Pkg.Revision = 21.1.6352462\n"},
		{name: "android-ndk-r21b/toolchains/"},
		{name: "android-ndk-r21b/toolchains/llvm/prebuilt/linux-x86_64/bin/aarch64-linux-android-ar", body: strings.Repeat("a", 4096), mode: 0o755},
		// parent directory deliberately absent from the archive
		{name: "android-ndk-r21b/sysroot/usr/include/stdio.h", body: "int printf();\n"},
		{name: "android-ndk-r21b/empty.txt"},
	}
	writeZip(t, archive, entries)

	dest := filepath.Join(dir, "out")
	var rec recordingReporter
	res, err := Extract(archive, dest, ExtractOptions{Workers: 3, Reporter: &rec})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Entries != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), res.Entries)
	}
	if res.TopLevel != "android-ndk-r21b" {
		t.Fatalf("expected top level android-ndk-r21b, got %q", res.TopLevel)
	}

	for _, e := range entries {
		p := filepath.Join(dest, filepath.FromSlash(strings.TrimSuffix(e.name, "/")))
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", p, err)
		}
		if strings.HasSuffix(e.name, "/") {
			if !info.IsDir() {
				t.Fatalf("expected %s to be a directory", p)
			}
			continue
		}
		if info.Size() != int64(len(e.body)) {
			t.Fatalf("%s: expected %d bytes, got %d", p, len(e.body), info.Size())
		}
	}

	if runtime.GOOS != "windows" {
		ar := filepath.Join(dest, "android-ndk-r21b/toolchains/llvm/prebuilt/linux-x86_64/bin/aarch64-linux-android-ar")
		info, _ := os.Stat(ar)
		if info.Mode().Perm()&0o100 == 0 {
			t.Fatalf("expected executable bit preserved, got %v", info.Mode())
		}
	}

	if rec.entries() != len(entries) {
		t.Fatalf("expected %d entry reports, got %d", len(entries), rec.entries())
	}
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, []archiveEntry{
		{name: "../../evil", body: "pwned"},
		{name: "/abs/evil", body: "pwned"},
		{name: "ok/file.txt", body: "fine"},
	})

	dest := filepath.Join(dir, "root", "out")
	res, err := Extract(archive, dest, ExtractOptions{Workers: 2})

	var ee *ExtractError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExtractError, got %v", err)
	}
	if len(ee.Entries) != 2 {
		t.Fatalf("expected 2 rejected entries, got %d: %v", len(ee.Entries), ee)
	}
	if !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("expected ErrUnsafePath in chain, got %v", err)
	}
	if res.Entries != 3 {
		t.Fatalf("expected all 3 entries processed, got %d", res.Entries)
	}

	// The sibling entry still extracted.
	if _, err := os.Stat(filepath.Join(dest, "ok", "file.txt")); err != nil {
		t.Fatalf("expected sibling entry extracted: %v", err)
	}
	for _, p := range []string{filepath.Join(dir, "evil"), filepath.Join(dir, "root", "evil"), filepath.Join(dir, "..", "evil")} {
		if _, err := os.Stat(p); err == nil {
			t.Fatalf("traversal entry escaped to %s", p)
		}
	}
}

func TestSanitizePath(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	tests := []struct {
		name string
		ok   bool
	}{
		{"a/b/c", true},
		{"a/../b", true},
		{"dir/", true},
		{"../../evil", false},
		{"a/../../evil", false},
		{"/etc/passwd", false},
		{`..\..\evil`, false},
		{"", false},
	}
	for _, tt := range tests {
		got, err := SanitizePath(root, tt.name)
		if tt.ok {
			if err != nil {
				t.Errorf("SanitizePath(%q) unexpected error %v", tt.name, err)
				continue
			}
			rel, relErr := filepath.Rel(root, got)
			if relErr != nil || strings.HasPrefix(rel, "..") {
				t.Errorf("SanitizePath(%q) = %s escapes root", tt.name, got)
			}
			continue
		}
		if !errors.Is(err, ErrUnsafePath) {
			t.Errorf("SanitizePath(%q) expected ErrUnsafePath, got %q, %v", tt.name, got, err)
		}
	}
}

func TestEnsureDirConcurrent(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a", "b", "c", "d")

	var wg sync.WaitGroup
	errs := make([]error, 64)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = ensureDir(target)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "ndk.tar.gz")

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	files := map[string]string{
		"ndk/bin/ar":     "archiver",
		"ndk/bin/linker": "linker!",
	}
	if err := tw.WriteHeader(&tar.Header{Name: "ndk/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"ndk/bin/ar", "ndk/bin/linker"} {
		body := files[name]
		if err := tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o755, Size: int64(len(body))}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.WriteHeader(&tar.Header{Name: "../escape", Typeflag: tar.TypeReg, Mode: 0o644}); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(archive, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "out")
	res, err := Extract(archive, dest, ExtractOptions{})
	var ee *ExtractError
	if !errors.As(err, &ee) || len(ee.Entries) != 1 {
		t.Fatalf("expected exactly one rejected entry, got %v", err)
	}
	if res.Entries != 4 {
		t.Fatalf("expected 4 entries, got %d", res.Entries)
	}
	for name, body := range files {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(got) != body {
			t.Fatalf("%s: expected %q, got %q", name, body, got)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "escape")); err == nil {
		t.Fatal("tar traversal entry escaped")
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	_, err := Extract(filepath.Join(t.TempDir(), "ndk.rar"), t.TempDir(), ExtractOptions{})
	var ee *ExtractError
	if !errors.As(err, &ee) || ee.Err == nil {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestExtractCorruptZip(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "bad.zip")
	if err := os.WriteFile(archive, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Extract(archive, t.TempDir(), ExtractOptions{})
	var ee *ExtractError
	if !errors.As(err, &ee) || ee.Err == nil {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestTopLevelDir(t *testing.T) {
	tests := []struct {
		names []string
		want  string
	}{
		{[]string{"ndk/", "ndk/a", "ndk/b/c"}, "ndk"},
		{[]string{"ndk/a", "other/b"}, ""},
		{[]string{"file.txt"}, ""},
		{[]string{"./ndk/a"}, "ndk"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := topLevelDir(tt.names); got != tt.want {
			t.Errorf("topLevelDir(%v) = %q, want %q", tt.names, got, tt.want)
		}
	}
}

type recordingReporter struct {
	mu     sync.Mutex
	stages []string
	done   int
	bytes  int64
}

func (r *recordingReporter) Stage(name, status, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, name+":"+status)
}

func (r *recordingReporter) DownloadProgress(written, _ int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bytes = written
}

func (r *recordingReporter) EntryDone(string, int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
}

func (r *recordingReporter) entries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func writeTarGz(t *testing.T, path string, entries []archiveEntry) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644}
		switch {
		case strings.HasSuffix(e.name, "/"):
			hdr.Typeflag, hdr.Mode = tar.TypeDir, 0o755
		case e.mode&fs.ModeSymlink != 0:
			hdr.Typeflag, hdr.Linkname = tar.TypeSymlink, e.body
		default:
			hdr.Typeflag, hdr.Size = tar.TypeReg, int64(len(e.body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("header %s: %v", e.name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatalf("write %s: %v", e.name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write tar: %v", err)
	}
}

func symlinkEntry(name, link string) archiveEntry {
	return archiveEntry{name: name, body: link, mode: fs.ModeSymlink | 0o777}
}

func TestExtractKeepsSymlinksInsideRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	tests := []struct {
		name    string
		setup   func(t *testing.T, dest string)
		entries []archiveEntry
		// wantUnsafe is set when the rejection is reported as ErrUnsafePath for
		// every archive format.
		wantUnsafe bool
		// wantErr is false when every entry is legitimate once links are
		// resolved.
		wantErr bool
	}{
		{
			name:       "absolute link target",
			entries:    []archiveEntry{symlinkEntry("x/abs", "/etc"), {name: "x/abs/evil", body: "x"}},
			wantUnsafe: true,
			wantErr:    true,
		},
		{
			name:       "parent link target",
			entries:    []archiveEntry{{name: "x/"}, symlinkEntry("x/up", "../.."), {name: "x/up/evil", body: "x"}},
			wantUnsafe: true,
			wantErr:    true,
		},
		{
			name: "chained links",
			entries: []archiveEntry{
				{name: "x/"},
				symlinkEntry("x/l1", ".."),
				symlinkEntry("x/l1/l2", ".."),
				{name: "x/l1/l2/evil", body: "x"},
			},
			wantErr: true,
		},
		{
			name: "file through existing link",
			setup: func(t *testing.T, dest string) {
				if err := os.Symlink("..", filepath.Join(dest, "pre")); err != nil {
					t.Fatal(err)
				}
			},
			entries:    []archiveEntry{{name: "pre/evil", body: "x"}},
			wantUnsafe: true,
			wantErr:    true,
		},
		{
			name: "directory through existing link",
			setup: func(t *testing.T, dest string) {
				if err := os.Symlink("..", filepath.Join(dest, "pre")); err != nil {
					t.Fatal(err)
				}
			},
			entries:    []archiveEntry{{name: "pre/evil/"}},
			wantUnsafe: true,
			wantErr:    true,
		},
		{
			name: "file replaces existing link",
			setup: func(t *testing.T, dest string) {
				if err := os.Symlink("../evil", filepath.Join(dest, "pre")); err != nil {
					t.Fatal(err)
				}
			},
			entries: []archiveEntry{{name: "pre", body: "inside"}},
		},
		{
			name: "link inside root",
			entries: []archiveEntry{
				{name: "ndk/lib/libc++.so.1", body: "lib"},
				symlinkEntry("ndk/lib/libc++.so", "libc++.so.1"),
				symlinkEntry("ndk/latest", "lib"),
			},
		},
	}

	formats := []struct {
		ext   string
		write func(*testing.T, string, []archiveEntry)
	}{
		{"zip", writeZip},
		{"tar.gz", writeTarGz},
	}

	for _, tt := range tests {
		for _, format := range formats {
			t.Run(tt.name+"/"+format.ext, func(t *testing.T) {
				dir := t.TempDir()
				dest := filepath.Join(dir, "work", "out")
				if err := os.MkdirAll(dest, 0o755); err != nil {
					t.Fatal(err)
				}
				if tt.setup != nil {
					tt.setup(t, dest)
				}
				archive := filepath.Join(dir, "ndk."+format.ext)
				format.write(t, archive, tt.entries)

				_, err := Extract(archive, dest, ExtractOptions{Workers: 1})
				if tt.wantErr {
					var ee *ExtractError
					if !errors.As(err, &ee) {
						t.Fatalf("expected an ExtractError, got %v", err)
					}
				} else if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if tt.wantUnsafe && !errors.Is(err, ErrUnsafePath) {
					t.Fatalf("expected ErrUnsafePath, got %v", err)
				}

				for _, outside := range []string{
					filepath.Join(dir, "evil"),
					filepath.Join(dir, "work", "evil"),
				} {
					if _, err := os.Lstat(outside); err == nil {
						t.Fatalf("entry escaped the extraction root: %s", outside)
					}
				}
			})
		}
	}
}

func TestExtractSymlinkInsideRootResolves(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	dir := t.TempDir()
	archive := filepath.Join(dir, "ndk.tar.gz")
	writeTarGz(t, archive, []archiveEntry{
		{name: "ndk/lib/libc++.so.1", body: "lib"},
		symlinkEntry("ndk/lib/libc++.so", "libc++.so.1"),
		symlinkEntry("ndk/current", "lib"),
		{name: "ndk/current/extra", body: "through link"},
	})

	dest := filepath.Join(dir, "out")
	if _, err := Extract(archive, dest, ExtractOptions{}); err != nil {
		t.Fatalf("extract: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "ndk", "lib", "libc++.so"))
	if err != nil || string(got) != "lib" {
		t.Fatalf("expected link to resolve to lib, got %q, %v", got, err)
	}
	got, err = os.ReadFile(filepath.Join(dest, "ndk", "lib", "extra"))
	if err != nil || string(got) != "through link" {
		t.Fatalf("expected file written through link, got %q, %v", got, err)
	}
}
