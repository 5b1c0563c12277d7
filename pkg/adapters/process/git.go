package process

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/wflow/pkg/ports"
)

// Git clones workflow repositories with the git binary.
type Git struct {
	runner *Runner
	binary string
}

// NewGit creates a git client running through runner (a default one when nil).
func NewGit(runner *Runner) *Git {
	if runner == nil {
		runner = NewRunner()
	}
	return &Git{runner: runner, binary: "git"}
}

// CloneRepository clones url and replaces the contents of destination with the
// checked out files. Hidden entries such as .git are not copied.
func (g *Git) CloneRepository(ctx context.Context, url, destination string, opts ports.CloneOptions) (string, error) {
	tmp, err := os.MkdirTemp("", "wflow-sync-*")
	if err != nil {
		return "", fmt.Errorf("create clone dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	args := []string{"clone", "--depth", "1"}
	if opts.Branch != "" {
		args = append(args, "--branch", opts.Branch)
	}
	args = append(args, url, tmp)

	var env []string
	if opts.SSHKey != "" {
		env = append(env, fmt.Sprintf("GIT_SSH_COMMAND=ssh -i %s -o IdentitiesOnly=yes", opts.SSHKey))
	}
	if _, err := g.runner.run(ctx, env, nil, g.binary, args...); err != nil {
		return "", err
	}

	out, err := g.runner.run(ctx, nil, nil, g.binary, "-C", tmp, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	commit := strings.TrimSpace(out)

	if err := replaceContents(tmp, destination); err != nil {
		return "", err
	}
	g.runner.logger.Debug("Cloned repository", "url", url, "commit", commit)
	return commit, nil
}

// replaceContents empties dst and copies the visible tree of src into it.
func replaceContents(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	entries, err := os.ReadDir(dst)
	if err != nil {
		return fmt.Errorf("read %s: %w", dst, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dst, e.Name())); err != nil {
			return fmt.Errorf("clear %s: %w", dst, err)
		}
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == src {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
