// Package discover finds source files that may declare steps.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/stepguide/internal/lang"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Relative to the project root
	Abs      string
	Language string
	Size     int64
}

// Options narrows a scan. The zero value scans every supported language
// without a size limit.
type Options struct {
	Languages   []string
	MaxFileSize int64
	// Skipped receives files dropped for exceeding MaxFileSize.
	Skipped func(entry FileEntry)
}

var skipDirs = map[string]struct{}{
	"bin":          {},
	"obj":          {},
	"target":       {},
	"out":          {},
	"build":        {},
	"dist":         {},
	"packages":     {},
	"node_modules": {},
	"__pycache__":  {},
	"venv":         {},
	"env":          {},
	"gauge_bin":    {},
	"reports":      {},
	"logs":         {},
}

// SkipDir reports whether a directory is never scanned: build output,
// dependency caches and hidden directories.
func SkipDir(name string) bool {
	_, skip := skipDirs[name]
	return skip || strings.HasPrefix(name, ".")
}

// Files discovers source files of the supported languages under root.
// Results are sorted by relative path.
func Files(root string, opts Options) ([]FileEntry, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	langSet := make(map[string]struct{}, len(opts.Languages))
	for _, l := range opts.Languages {
		langSet[l] = struct{}{}
	}
	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	var results []FileEntry

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}

		name := d.Name()
		if d.IsDir() {
			if path != root && SkipDir(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		langName := lang.ForExtension(filepath.Ext(name))
		if langName == "" {
			return nil
		}
		if _, ok := langSet[langName]; len(langSet) > 0 && !ok {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if gitFiles != nil {
			if _, ok := gitFiles[filepath.ToSlash(rel)]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		entry := FileEntry{Path: rel, Abs: path, Language: langName, Size: info.Size()}
		if opts.MaxFileSize > 0 && entry.Size > opts.MaxFileSize {
			if opts.Skipped != nil {
				opts.Skipped(entry)
			}
			return nil
		}

		results = append(results, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// gitLsFiles lists tracked and untracked-but-not-ignored files when root is
// a git work tree. It returns nil otherwise.
func gitLsFiles(root string) map[string]struct{} {
	info, err := os.Stat(filepath.Join(root, ".git"))
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
