package results

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Iron-Ham/parley/internal/logging"
)

// DefaultExclusions are the names and extensions skipped when
// collecting files from an engine working directory. Entries match
// either a whole path element or a file extension.
var DefaultExclusions = []string{
	".git", ".gitignore", ".gitattributes",
	"node_modules", "__pycache__",
	".venv", "venv",
	".idea", ".vscode", ".pytest_cache",
	".log", ".tmp",
}

// Collector harvests the files an engine run left in its working
// directory into a results directory, preserving relative layout.
type Collector struct {
	// Exclusions lists path elements and extensions to skip. Nil uses
	// DefaultExclusions; dot-prefixed path elements are always skipped.
	Exclusions []string

	Logger *logging.Logger
}

// Collect copies every non-excluded file under workDir into destDir and
// returns their relative slash-separated paths in walk order. A missing
// workDir collects nothing. destDir may live inside workDir; it is
// never collected into itself.
func (c *Collector) Collect(workDir, destDir string) ([]string, error) {
	logger := c.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	exclusions := c.Exclusions
	if exclusions == nil {
		exclusions = DefaultExclusions
	}

	if _, err := os.Stat(workDir); os.IsNotExist(err) {
		return nil, nil
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return nil, err
	}

	var collected []string
	err = filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if abs, aerr := filepath.Abs(path); aerr == nil && abs == absDest {
			return filepath.SkipDir
		}
		if path == workDir {
			return nil
		}

		rel, err := filepath.Rel(workDir, path)
		if err != nil {
			return err
		}
		if excluded(rel, exclusions) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		if err := copyFile(path, filepath.Join(destDir, rel)); err != nil {
			return fmt.Errorf("collect %s: %w", rel, err)
		}
		collected = append(collected, filepath.ToSlash(rel))
		logger.Debug("collected file", "path", rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("collected engine output", "files", len(collected), "dest", destDir)
	return collected, nil
}

// excluded applies the skip rules to a relative path: dot-prefixed
// elements, excluded element names, and excluded extensions.
func excluded(rel string, exclusions []string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
		if slices.Contains(exclusions, part) {
			return true
		}
	}
	if ext := filepath.Ext(rel); ext != "" && slices.Contains(exclusions, ext) {
		return true
	}
	return false
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
