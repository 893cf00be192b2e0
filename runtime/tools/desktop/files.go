package desktop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// maxSearchResults caps search_files output.
const maxSearchResults = 20

var errEnoughMatches = errors.New("enough matches")

func (t *Toolset) readFile(_ context.Context, args Args) (any, error) {
	path := args.String("path", "")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return string(data), nil
}

func (t *Toolset) writeToFile(_ context.Context, args Args) (any, error) {
	path := args.String("path", "")
	content := args.String("content", "")

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if args.String("mode", "w") == "a" {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error writing to file: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return nil, fmt.Errorf("error writing to file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("error writing to file: %w", err)
	}
	return "Successfully wrote to " + path, nil
}

func (t *Toolset) manageFiles(_ context.Context, args Args) (any, error) {
	action := args.String("action", "")
	path := args.String("path", "")
	dest := args.String("destination", "")

	needsDest := action == "copy" || action == "move"
	if needsDest && dest == "" {
		return nil, fmt.Errorf("destination is required for %s", action)
	}

	switch action {
	case "copy":
		if err := copyPath(path, dest); err != nil {
			return nil, fmt.Errorf("error managing files: %w", err)
		}
		return fmt.Sprintf("Copied %s to %s", path, dest), nil
	case "move":
		if err := movePath(path, dest); err != nil {
			return nil, fmt.Errorf("error managing files: %w", err)
		}
		return fmt.Sprintf("Moved %s to %s", path, dest), nil
	case "delete":
		if _, err := os.Lstat(path); err != nil {
			return nil, fmt.Errorf("error managing files: %w", err)
		}
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("error managing files: %w", err)
		}
		return "Deleted " + path, nil
	case "create_dir":
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("error managing files: %w", err)
		}
		return "Created directory " + path, nil
	default:
		return nil, fmt.Errorf("unknown action %q: use copy, move, delete, or create_dir", action)
	}
}

// copyPath copies a file, or a directory tree, to dest. Copying a file onto
// an existing directory places it inside that directory.
func copyPath(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if di, err := os.Stat(dest); err == nil && di.IsDir() {
			dest = filepath.Join(dest, filepath.Base(src))
		}
		return copyFile(src, dest, info.Mode())
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("destination %s already exists", dest)
	}
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, fi.Mode().Perm())
		}
		return copyFile(p, target, fi.Mode())
	})
}

func copyFile(src, dest string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if info, err := in.Stat(); err == nil {
		return os.Chtimes(dest, info.ModTime(), info.ModTime())
	}
	return nil
}

// movePath renames src to dest, falling back to copy and delete across devices.
func movePath(src, dest string) error {
	if di, err := os.Stat(dest); err == nil && di.IsDir() {
		dest = filepath.Join(dest, filepath.Base(src))
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyPath(src, dest); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

// searchFiles returns up to maxSearchResults paths under root whose name
// contains query. The query may itself contain glob wildcards.
func (t *Toolset) searchFiles(_ context.Context, args Args) (any, error) {
	query := args.String("query", "")
	root := args.String("path", ".")

	pattern := "**/*" + query + "*"
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid search query %q", query)
	}

	var matches []string
	err := doublestar.GlobWalk(os.DirFS(root), pattern, func(p string, _ fs.DirEntry) error {
		matches = append(matches, filepath.Join(root, filepath.FromSlash(p)))
		if len(matches) >= maxSearchResults {
			return errEnoughMatches
		}
		return nil
	})
	if err != nil && !errors.Is(err, errEnoughMatches) {
		return nil, fmt.Errorf("error searching files: %w", err)
	}
	return strings.Join(matches, "\n"), nil
}
