package acquire

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/ulikunitz/xz"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type archiveFormat string

const (
	archiveFormatZip   archiveFormat = "zip"
	archiveFormatTarGz archiveFormat = "tar.gz"
	archiveFormatTarXz archiveFormat = "tar.xz"
)

// ExtractOptions tunes extraction.
type ExtractOptions struct {
	// Workers bounds concurrent zip entry tasks. Zero means runtime.NumCPU().
	Workers  int
	Reporter Reporter
	Logger   *zap.Logger
}

// Result summarises a completed extraction.
type Result struct {
	Entries int
	// TopLevel is the single top-level directory shared by every entry, or
	// empty when entries sit directly under the extraction root.
	TopLevel string
}

func formatFor(name string) (archiveFormat, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return archiveFormatZip, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return archiveFormatTarGz, nil
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return archiveFormatTarXz, nil
	default:
		return "", fmt.Errorf("unsupported archive format: %s", filepath.Base(name))
	}
}

// Extract unpacks archivePath under dest. Zip archives are extracted with one
// task per entry; tar archives are streamed sequentially. Entry failures do
// not stop other entries and are reported together as an *ExtractError once
// every entry has been processed.
func Extract(archivePath, dest string, opts ExtractOptions) (Result, error) {
	if opts.Reporter == nil {
		opts.Reporter = NopReporter{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	format, err := formatFor(archivePath)
	if err != nil {
		return Result{}, &ExtractError{Archive: archivePath, Err: err}
	}
	if err := ensureDir(dest); err != nil {
		return Result{}, &ExtractError{Archive: archivePath, Err: fmt.Errorf("prepare extract dir: %w", err)}
	}
	// Containment is checked against the real location of dest.
	root, err := filepath.Abs(dest)
	if err == nil {
		root, err = filepath.EvalSymlinks(root)
	}
	if err != nil {
		return Result{}, &ExtractError{Archive: archivePath, Err: fmt.Errorf("resolve extract dir: %w", err)}
	}

	switch format {
	case archiveFormatZip:
		return extractZip(archivePath, root, opts)
	case archiveFormatTarGz:
		return extractTarFile(archivePath, root, opts, func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		})
	default:
		return extractTarFile(archivePath, root, opts, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		})
	}
}

// SanitizePath joins an archive entry name onto root, rejecting names that
// are absolute or climb out of root.
func SanitizePath(root, name string) (string, error) {
	clean := strings.TrimRight(strings.ReplaceAll(name, `\`, "/"), "/")
	if clean == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnsafePath)
	}
	local := filepath.FromSlash(clean)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return filepath.Join(root, local), nil
}

// ensureDir creates dir and its parents. Losing a creation race to another
// worker is not an error as long as a directory ends up in place.
func ensureDir(dir string) error {
	err := os.MkdirAll(dir, 0o755)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			return nil
		}
	}
	return err
}

func extractZip(archivePath, root string, opts ExtractOptions) (Result, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return Result{}, &ExtractError{Archive: archivePath, Err: fmt.Errorf("open zip: %w", err)}
	}
	defer reader.Close()

	total := len(reader.File)
	failures := make([]*EntryError, total)
	var done atomic.Int64
	finish := func(i int, name string, err error) {
		if err != nil {
			failures[i] = &EntryError{Name: name, Err: err}
			opts.Logger.Warn("extract entry failed", zap.String("entry", name), zap.Error(err))
		}
		opts.Reporter.EntryDone(name, int(done.Add(1)), total, err)
	}

	// The central directory is shared read-only; zip.File.Open is safe to
	// call from several goroutines. Symlinks are created after the barrier
	// so no worker resolves a parent while a link is appearing on it.
	var (
		g     errgroup.Group
		links []int
	)
	g.SetLimit(opts.Workers)
	for i, file := range reader.File {
		if file.Mode()&fs.ModeSymlink != 0 {
			links = append(links, i)
			continue
		}
		g.Go(func() error {
			finish(i, file.Name, extractZipEntry(file, root))
			return nil
		})
	}
	_ = g.Wait()
	for _, i := range links {
		file := reader.File[i]
		finish(i, file.Name, extractZipEntry(file, root))
	}

	names := make([]string, 0, total)
	for _, file := range reader.File {
		names = append(names, file.Name)
	}
	res := Result{Entries: total, TopLevel: topLevelDir(names)}
	return res, collectFailures(archivePath, failures)
}

func extractZipEntry(file *zip.File, root string) error {
	target, err := SanitizePath(root, file.Name)
	if err != nil {
		return err
	}

	mode := file.Mode()
	switch {
	case mode.IsDir() || strings.HasSuffix(file.Name, "/"):
		return makeDir(root, target)
	case mode&fs.ModeSymlink != 0:
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open entry: %w", err)
		}
		link, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("read link: %w", err)
		}
		return writeSymlink(root, target, string(link))
	default:
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open entry: %w", err)
		}
		defer rc.Close()
		return writeFile(root, target, rc, mode.Perm())
	}
}

func extractTarFile(archivePath, root string, opts ExtractOptions, decompress func(io.Reader) (io.Reader, error)) (Result, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return Result{}, &ExtractError{Archive: archivePath, Err: fmt.Errorf("open archive: %w", err)}
	}
	defer f.Close()

	r, err := decompress(f)
	if err != nil {
		return Result{}, &ExtractError{Archive: archivePath, Err: fmt.Errorf("decompress: %w", err)}
	}
	if closer, ok := r.(io.Closer); ok {
		defer closer.Close()
	}

	var (
		failures []*EntryError
		names    []string
	)
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return Result{Entries: len(names)}, &ExtractError{
				Archive: archivePath,
				Err:     fmt.Errorf("read tar header: %w", err),
				Entries: failures,
			}
		}
		names = append(names, header.Name)

		entryErr := extractTarEntry(tr, header, root)
		if entryErr != nil {
			failures = append(failures, &EntryError{Name: header.Name, Err: entryErr})
			opts.Logger.Warn("extract entry failed", zap.String("entry", header.Name), zap.Error(entryErr))
		}
		// Tar streams carry no index, so the total is unknown until the end.
		opts.Reporter.EntryDone(header.Name, len(names), 0, entryErr)
	}

	res := Result{Entries: len(names), TopLevel: topLevelDir(names)}
	return res, collectFailures(archivePath, failures)
}

func extractTarEntry(tr *tar.Reader, header *tar.Header, root string) error {
	target, err := SanitizePath(root, header.Name)
	if err != nil {
		return err
	}
	switch header.Typeflag {
	case tar.TypeDir:
		return makeDir(root, target)
	case tar.TypeReg:
		return writeFile(root, target, tr, fs.FileMode(header.Mode).Perm())
	case tar.TypeSymlink:
		return writeSymlink(root, target, header.Linkname)
	default:
		// Devices, fifos and hard links have no place in a toolchain.
		return nil
	}
}

// resolveWithin returns the real location of path, following any symlinks
// already on disk along its existing prefix. It fails with ErrUnsafePath when
// that location is outside root. root must already be free of symlinks.
func resolveWithin(root, path string) (string, error) {
	existing, rest := path, ""
	for {
		_, err := os.Lstat(existing)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("inspect %s: %w", existing, err)
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnsafePath, path, err)
	}
	resolved = filepath.Join(resolved, rest)
	if !within(root, resolved) {
		return "", fmt.Errorf("%w: %s resolves outside the extraction root", ErrUnsafePath, path)
	}
	return resolved, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && filepath.IsLocal(rel)
}

func makeDir(root, target string) error {
	dir, err := resolveWithin(root, target)
	if err != nil {
		return err
	}
	return ensureDir(dir)
}

func writeFile(root, target string, r io.Reader, perm fs.FileMode) error {
	parent, err := resolveWithin(root, filepath.Dir(target))
	if err != nil {
		return err
	}
	if err := ensureDir(parent); err != nil {
		return fmt.Errorf("prepare parent: %w", err)
	}
	target = filepath.Join(parent, filepath.Base(target))

	// A link left at target would redirect the write.
	if info, err := os.Lstat(target); err == nil && info.Mode()&fs.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("replace symlink: %w", err)
		}
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("copy contents: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

// writeSymlink creates target pointing at link. The link must be relative and
// land inside root when resolved from the real location of target's parent.
func writeSymlink(root, target, link string) error {
	if link == "" || filepath.IsAbs(link) {
		return fmt.Errorf("%w: symlink to %q", ErrUnsafePath, link)
	}
	parent, err := resolveWithin(root, filepath.Dir(target))
	if err != nil {
		return err
	}
	if _, err := resolveWithin(root, filepath.Join(parent, filepath.FromSlash(link))); err != nil {
		return fmt.Errorf("symlink to %q: %w", link, err)
	}
	if err := ensureDir(parent); err != nil {
		return fmt.Errorf("prepare parent: %w", err)
	}
	target = filepath.Join(parent, filepath.Base(target))
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("replace symlink: %w", err)
	}
	if err := os.Symlink(link, target); err != nil {
		return fmt.Errorf("create symlink: %w", err)
	}
	return nil
}

func collectFailures(archivePath string, failures []*EntryError) error {
	var failed []*EntryError
	for _, f := range failures {
		if f != nil {
			failed = append(failed, f)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &ExtractError{Archive: archivePath, Entries: failed}
}

// topLevelDir returns the first path element shared by every entry when at
// least one entry lives below it.
func topLevelDir(names []string) string {
	var (
		top    string
		nested bool
	)
	for _, name := range names {
		clean := strings.Trim(strings.ReplaceAll(name, `\`, "/"), "/")
		clean = strings.TrimPrefix(clean, "./")
		if clean == "" || clean == "." {
			continue
		}
		first, rest, found := strings.Cut(clean, "/")
		if top == "" {
			top = first
		} else if first != top {
			return ""
		}
		if found && rest != "" {
			nested = true
		}
	}
	if !nested || !filepath.IsLocal(top) {
		return ""
	}
	return top
}
