package archive

import (
	"archive/tar"
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"intelaccel/internal/config"
	"intelaccel/internal/fsutil"
	"intelaccel/internal/logging"
)

// stagingSuffix names the sibling directory an archive is unpacked into
// before it replaces the destination
const stagingSuffix = ".extracting"

// ArchiveExtractor unpacks an archive into a directory
type ArchiveExtractor interface {
	// Extract replaces destDir with the contents of the archive
	Extract(ctx context.Context, archivePath, destDir, format string) error
}

// Extractor implements ArchiveExtractor for tar.gz, tar.zst and zip
type Extractor struct {
	logger *logging.Logger
}

// NewExtractor creates an extractor
func NewExtractor(logger *logging.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract removes any previous destDir, unpacks the archive into a staging
// directory next to it and moves the result into place. When the archive
// holds a single top-level directory named like destDir, that directory
// becomes destDir so the layout matches unpacking inside the parent.
func (e *Extractor) Extract(ctx context.Context, archivePath, destDir, format string) error {
	if err := fsutil.RemoveTree(destDir); err != nil {
		return fmt.Errorf("failed to remove previous extraction: %w", err)
	}

	staging := destDir + stagingSuffix
	if err := fsutil.RemoveTree(staging); err != nil {
		return err
	}
	if err := fsutil.EnsureDirectory(staging); err != nil {
		return err
	}

	e.logger.Info("archive.extract.start", "Extracting archive", map[string]interface{}{
		"archive": archivePath,
		"dest":    destDir,
		"format":  format,
	})

	var err error
	switch format {
	case config.FormatTarGz:
		err = extractTar(ctx, archivePath, staging, openGzip)
	case config.FormatTarZst:
		err = extractTar(ctx, archivePath, staging, openZstd)
	case config.FormatZip:
		err = extractZip(ctx, archivePath, staging)
	default:
		err = fmt.Errorf("unsupported archive format %q", format)
	}
	if err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("failed to extract %s: %w", archivePath, err)
	}

	root, err := stagedRoot(staging, filepath.Base(destDir))
	if err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	if err := os.Rename(root, destDir); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("failed to move extracted files into %s: %w", destDir, err)
	}
	if root != staging {
		if err := os.RemoveAll(staging); err != nil {
			return fmt.Errorf("failed to remove staging directory: %w", err)
		}
	}

	e.logger.Info("archive.extract.completed", "Archive extracted", map[string]interface{}{
		"dest": destDir,
	})
	return nil
}

// stagedRoot returns the directory that should become the destination
func stagedRoot(staging, name string) (string, error) {
	entries, err := os.ReadDir(staging)
	if err != nil {
		return "", fmt.Errorf("failed to read staging directory: %w", err)
	}
	if len(entries) == 1 && entries[0].IsDir() && entries[0].Name() == name {
		return filepath.Join(staging, name), nil
	}
	return staging, nil
}

type decompressor func(io.Reader) (io.ReadCloser, error)

func openGzip(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

func openZstd(r io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zstdReadCloser{d}, nil
}

func extractTar(ctx context.Context, archivePath, dest string, open decompressor) error {
	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return err
	}

	// #nosec G304 -- archive path is derived from validated configuration
	file, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	stream, err := open(file)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	tr := tar.NewReader(stream)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return checkLinks(root)
		}
		if err != nil {
			return err
		}

		target, err := safeJoin(root, hdr.Name)
		if err != nil {
			if errors.Is(err, errArchiveRoot) {
				continue
			}
			return err
		}

		mode := os.FileMode(hdr.Mode).Perm() // #nosec G115 -- permission bits only
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := writeDir(root, target); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(root, target, tr, mode); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(root, target, hdr.Linkname); err != nil {
				return err
			}
		case tar.TypeLink:
			if err := writeHardlink(root, target, hdr.Linkname); err != nil {
				return err
			}
		default:
			// device nodes, fifos and pax metadata have no place in a driver bundle
		}
	}
}

func extractZip(ctx context.Context, archivePath, dest string) error {
	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return err
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := safeJoin(root, f.Name)
		if err != nil {
			if errors.Is(err, errArchiveRoot) {
				continue
			}
			return err
		}

		info := f.FileInfo()
		switch {
		case info.IsDir():
			if err := writeDir(root, target); err != nil {
				return err
			}
		case info.Mode()&os.ModeSymlink != 0:
			linkname, err := readZipEntry(f)
			if err != nil {
				return err
			}
			if err := writeSymlink(root, target, linkname); err != nil {
				return err
			}
		default:
			rc, err := f.Open()
			if err != nil {
				return err
			}
			err = writeFile(root, target, rc, info.Mode().Perm())
			_ = rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return checkLinks(root)
}

func readZipEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeDir(root, target string) error {
	path, err := resolveInside(root, target)
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0o755)
}

func writeFile(root, target string, r io.Reader, mode os.FileMode) error {
	if mode == 0 {
		mode = fsutil.DefaultFilePermissions
	}
	path, err := prepareEntry(root, target)
	if err != nil {
		return err
	}
	// #nosec G304 -- path is resolved below the extraction root
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|syscall.O_NOFOLLOW, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	// umask may have stripped bits the archive asked for
	if err := out.Chmod(mode); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// writeSymlink creates target -> linkname when the link stays inside root
func writeSymlink(root, target, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("symlink %s points outside the archive: %s", target, linkname)
	}
	path, err := prepareEntry(root, target)
	if err != nil {
		return err
	}
	if !within(root, filepath.Join(filepath.Dir(path), linkname)) {
		return fmt.Errorf("symlink %s points outside the archive: %s", target, linkname)
	}
	return os.Symlink(linkname, path)
}

// writeHardlink links target to an earlier regular file of the archive
func writeHardlink(root, target, linkname string) error {
	source, err := safeJoin(root, linkname)
	if err != nil {
		return err
	}
	parent, err := resolveInside(root, filepath.Dir(source))
	if err != nil {
		return err
	}
	source = filepath.Join(parent, filepath.Base(source))
	info, err := os.Lstat(source)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("hard link %s must refer to a regular file: %s", target, linkname)
	}

	path, err := prepareEntry(root, target)
	if err != nil {
		return err
	}
	return os.Link(source, path)
}

// prepareEntry creates the parent of target and clears whatever an earlier
// entry left at the same name. The returned path has no symlinks in its
// directory part.
func prepareEntry(root, target string) (string, error) {
	parent, err := resolveInside(root, filepath.Dir(target))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(parent, filepath.Base(target))
	info, err := os.Lstat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return path, nil
	case err != nil:
		return "", err
	case info.IsDir():
		return "", fmt.Errorf("archive entry %s replaces a directory", target)
	}
	if err := os.Remove(path); err != nil {
		return "", err
	}
	return path, nil
}

// resolveInside follows the symlinks already on disk along path and fails
// when the result leaves root. Trailing components that do not exist yet are
// appended unchanged.
func resolveInside(root, path string) (string, error) {
	existing := path
	var missing []string
	for {
		_, err := os.Lstat(existing)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return "", err
		}
		missing = append([]string{filepath.Base(existing)}, missing...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	resolved = filepath.Join(append([]string{resolved}, missing...)...)
	if !within(root, resolved) {
		return "", fmt.Errorf("archive path escapes destination: %s", path)
	}
	return resolved, nil
}

// checkLinks walks the extracted tree and rejects symlinks that resolve
// outside root once every entry is in place
func checkLinks(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			linkname, readErr := os.Readlink(path)
			if readErr != nil {
				return readErr
			}
			resolved = landing(filepath.Dir(path), linkname)
		}
		if !within(root, resolved) {
			rel, _ := filepath.Rel(root, path)
			return fmt.Errorf("symlink %s points outside the archive", rel)
		}
		return nil
	})
}

// landing returns where a write through a dangling link in dir would create
// its file. Only the directory part of linkname has to exist for that.
func landing(dir, linkname string) string {
	i := strings.LastIndex(linkname, "/")
	if i < 0 {
		return filepath.Join(dir, linkname)
	}
	parent, err := filepath.EvalSymlinks(dir + "/" + linkname[:i])
	if err != nil {
		return filepath.Join(dir, linkname)
	}
	return filepath.Join(parent, linkname[i+1:])
}

var errArchiveRoot = errors.New("archive root entry")

// safeJoin resolves an archive entry name below base, rejecting absolute
// names and names that climb out of base
func safeJoin(base, name string) (string, error) {
	clean := filepath.Clean(strings.TrimSpace(name))
	if clean == "." || clean == "" {
		return "", errArchiveRoot
	}
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("absolute archive path: %s", name)
	}
	target := filepath.Join(base, clean)
	if !within(base, target) {
		return "", fmt.Errorf("archive path escapes destination: %s", name)
	}
	return target, nil
}

func within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// DryRunExtractor reports the planned extraction without touching the filesystem
type DryRunExtractor struct {
	out io.Writer
}

// NewDryRunExtractor creates an extractor that prints to out
func NewDryRunExtractor(out io.Writer) *DryRunExtractor {
	return &DryRunExtractor{out: out}
}

// Extract prints the planned removal and extraction
func (d *DryRunExtractor) Extract(_ context.Context, archivePath, destDir, format string) error {
	fmt.Fprintf(d.out, "[dry-run] remove %s\n", destDir)
	fmt.Fprintf(d.out, "[dry-run] extract %s (%s) -> %s\n", archivePath, format, destDir)
	return nil
}
