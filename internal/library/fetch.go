package library

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/ulikunitz/xz"

	"github.com/Norgate-AV/bundler/internal/codes"
)

// Fetcher makes library sources available on disk
type Fetcher struct {
	client *http.Client
	logger *log.Logger
}

// NewFetcher creates a fetcher using the default http client
func NewFetcher(logger *log.Logger) *Fetcher {
	return &Fetcher{client: http.DefaultClient, logger: logger}
}

// Ensure fetches the sources of l unless they are already present. Sources
// are shared between targets and profiles and are never refreshed.
func (f *Fetcher) Ensure(ctx context.Context, l *Library, libsDir, workspace string) error {
	sources := l.SourcesDir(libsDir, workspace)

	switch loc := l.Location.(type) {
	case GitLocation:
		if err := f.fetchGit(ctx, loc, l.CheckoutDir(libsDir)); err != nil {
			return err
		}
	case TarLocation:
		if err := f.fetchTar(ctx, loc, l.CheckoutDir(libsDir)); err != nil {
			return err
		}
	case PathLocation:
	default:
		return codes.Configurationf("library %s has no location", l.Name)
	}

	if _, err := os.Stat(sources); err != nil {
		return codes.FS("could not find sources of "+l.Name, sources, err)
	}

	return nil
}

func (f *Fetcher) fetchGit(ctx context.Context, loc GitLocation, dir string) error {
	if exists(dir) {
		f.logger.Debug("sources present", "location", loc, "dir", dir)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return codes.FS("could not create directory", filepath.Dir(dir), err)
	}

	opts := &git.CloneOptions{
		URL:          loc.URL,
		SingleBranch: true,
		Depth:        1,
	}

	switch {
	case loc.Tag != "":
		opts.ReferenceName = plumbing.NewTagReferenceName(loc.Tag)
	case loc.Branch != "":
		opts.ReferenceName = plumbing.NewBranchReferenceName(loc.Branch)
	case loc.Commit != "":
		// an arbitrary commit is not reachable from a shallow clone
		opts.SingleBranch = false
		opts.Depth = 0
	}

	f.logger.Info("cloning", "location", loc, "dir", dir)

	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		_ = os.RemoveAll(dir)
		return codes.FS("could not clone "+loc.String(), dir, err)
	}

	if loc.Commit != "" {
		wt, err := repo.Worktree()
		if err != nil {
			return codes.FS("could not open worktree", dir, err)
		}

		if err := wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(loc.Commit)}); err != nil {
			_ = os.RemoveAll(dir)
			return codes.FS("could not check out "+loc.Commit, dir, err)
		}
	}

	return nil
}

func (f *Fetcher) fetchTar(ctx context.Context, loc TarLocation, dir string) error {
	if exists(dir) {
		f.logger.Debug("sources present", "location", loc, "dir", dir)
		return nil
	}

	f.logger.Info("downloading", "url", loc.URL, "dir", dir)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.URL, nil)
	if err != nil {
		return codes.Configurationf("invalid archive url %q: %v", loc.URL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return codes.FS("could not download "+loc.URL, dir, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return codes.FS("could not download "+loc.URL, dir, fmt.Errorf("unexpected status %s", resp.Status))
	}

	// extract next to the destination and move it in place once complete
	partial := dir + ".partial"
	_ = os.RemoveAll(partial)

	if err := extractTar(resp.Body, loc.Archive, partial); err != nil {
		_ = os.RemoveAll(partial)
		return codes.FS("could not extract "+loc.URL, partial, err)
	}

	if err := os.Rename(partial, dir); err != nil {
		return codes.FS("could not move extracted sources", dir, err)
	}

	return nil
}

func extractTar(r io.Reader, archive Archive, dest string) error {
	var stream io.Reader

	switch archive {
	case Xz:
		xzr, err := xz.NewReader(r)
		if err != nil {
			return fmt.Errorf("failed to create xz reader: %w", err)
		}

		stream = xzr
	default:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()

		stream = gz
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}

		path := filepath.Join(dest, hdr.Name)
		if !within(dest, path) {
			return fmt.Errorf("archive entry %q escapes the destination", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(tr, path, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) || !within(dest, filepath.Join(filepath.Dir(path), hdr.Linkname)) {
				return fmt.Errorf("archive link %q to %q escapes the destination", hdr.Name, hdr.Linkname)
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}

			if err := os.Symlink(hdr.Linkname, path); err != nil && !os.IsExist(err) {
				return fmt.Errorf("failed to create symlink %s: %w", path, err)
			}
		}
	}
}

// within reports whether path is dest or lies below it
func within(dest, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dest), path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

func writeEntry(r io.Reader, path string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return out.Close()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
