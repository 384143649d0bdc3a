package dataset

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// CIFARArchiveURL is the binary distribution of CIFAR-10.
const CIFARArchiveURL = "https://www.cs.toronto.edu/~kriz/cifar-10-binary.tar.gz"

// EnsureCIFAR10 returns the directory holding the CIFAR-10 batch files
// under root. When the files are missing and download is set, the archive
// is fetched from url and extracted first.
func EnsureCIFAR10(ctx context.Context, root, url string, download bool, logger *slog.Logger) (string, error) {
	dir := filepath.Join(root, CIFARDirName)
	if hasCIFARFiles(dir) {
		return dir, nil
	}
	if !download {
		return "", fmt.Errorf("cifar10: batch files not found in %s (enable download or fetch %s)", dir, CIFARArchiveURL)
	}
	if url == "" {
		url = CIFARArchiveURL
	}

	if logger != nil {
		logger.Info("downloading CIFAR-10", "url", url, "root", root)
	}
	if err := downloadAndExtract(ctx, url, root); err != nil {
		return "", err
	}
	if !hasCIFARFiles(dir) {
		return "", fmt.Errorf("cifar10: archive from %s did not contain %s", url, CIFARDirName)
	}
	return dir, nil
}

func hasCIFARFiles(dir string) bool {
	for _, name := range append(CIFARTrainFiles(), CIFARTestFiles()...) {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || info.Size() == 0 || info.Size()%cifarRecordSize != 0 {
			return false
		}
	}
	return true
}

func downloadAndExtract(ctx context.Context, url, root string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("cifar10: build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("cifar10: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cifar10: download: %s", resp.Status)
	}
	return ExtractArchive(resp.Body, root)
}

// ExtractArchive unpacks the .bin files of a gzipped tar stream into root,
// keeping their directory. Other entries are skipped.
func ExtractArchive(r io.Reader, root string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("cifar10: open gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("cifar10: read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(hdr.Name, ".bin") {
			continue
		}

		name := path.Clean(hdr.Name)
		if path.IsAbs(name) || strings.HasPrefix(name, "../") {
			return fmt.Errorf("cifar10: unsafe archive entry %q", hdr.Name)
		}
		if err := writeEntry(filepath.Join(root, filepath.FromSlash(name)), tr); err != nil {
			return err
		}
	}
}

func writeEntry(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("cifar10: create directory: %w", err)
	}
	//nolint:gosec // G304: destination is validated against traversal above
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("cifar10: create %s: %w", dest, err)
	}
	//nolint:gosec // G110: archive size is bounded by the trusted dataset host
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("cifar10: extract %s: %w", dest, err)
	}
	return f.Close()
}
