package runtime

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dbrain-dev/dbrain/internal/capability"
)

// defaultListLimit caps vault.list_files results when the caller does not
// supply a limit.
const defaultListLimit = 200

// resolveVaultPath maps a vault-relative path to an absolute one, rejecting
// anything that escapes the vault root. This is a hard security boundary:
// absolute paths, ".." traversal, and symlink escapes all fail with
// path_outside_vault.
func (l *Local) resolveVaultPath(rel string) (string, error) {
	escape := func() *capability.Error {
		capErr := capability.Errorf(capability.CodePathOutsideVault, "path escapes vault: "+rel, false)
		capErr.Details = map[string]any{"path": rel}
		return capErr
	}

	if filepath.IsAbs(rel) {
		return "", escape()
	}

	joined := filepath.Join(l.root, rel)
	if !l.contains(joined) {
		return "", escape()
	}

	// filepath.Join cleans ".." lexically, but a symlink inside the vault
	// can still point outside it. Resolve the deepest existing ancestor
	// and re-check containment against the real path.
	resolved, err := resolveExisting(joined)
	if err != nil {
		return "", capability.Errorf(capability.CodeRuntimeError, fmt.Sprintf("resolve path: %v", err), false)
	}
	if !l.contains(resolved) {
		return "", escape()
	}
	return resolved, nil
}

// contains reports whether path is the vault root or a descendant of it.
func (l *Local) contains(path string) bool {
	return path == l.root || strings.HasPrefix(path, l.root+string(filepath.Separator))
}

// resolveExisting resolves symlinks in the deepest existing ancestor of
// path and re-joins the non-existent suffix onto the resolved prefix.
func resolveExisting(path string) (string, error) {
	var suffix []string
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(append([]string{resolved}, suffix...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		suffix = append([]string{filepath.Base(current)}, suffix...)
		current = parent
	}
}

func (l *Local) vaultReadFile(payload map[string]any) (map[string]any, error) {
	path := stringField(payload, "path", "")
	if path == "" {
		return nil, capability.Errorf(capability.CodeInvalidInput, "vault.read_file requires 'path'", false)
	}

	resolved, err := l.resolveVaultPath(path)
	if err != nil {
		return nil, err
	}

	info, statErr := os.Stat(resolved)
	if statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			// A missing file is a valid answer, not an error.
			return map[string]any{"path": path, "exists": false, "content": ""}, nil
		}
		return nil, capability.Errorf(capability.CodeRuntimeError, fmt.Sprintf("stat %s: %v", path, statErr), false)
	}
	if info.IsDir() {
		return nil, capability.Errorf(capability.CodeInvalidInput, "cannot read directory as file", false)
	}

	content, readErr := os.ReadFile(resolved)
	if readErr != nil {
		return nil, capability.Errorf(capability.CodeRuntimeError, fmt.Sprintf("read %s: %v", path, readErr), false)
	}
	return map[string]any{"path": path, "exists": true, "content": string(content)}, nil
}

func (l *Local) vaultWriteFile(payload map[string]any) (map[string]any, error) {
	path := stringField(payload, "path", "")
	content := stringField(payload, "content", "")
	mode := stringField(payload, "mode", "overwrite")

	if path == "" {
		return nil, capability.Errorf(capability.CodeInvalidInput, "vault.write_file requires 'path'", false)
	}
	if mode != "overwrite" && mode != "append" {
		return nil, capability.Errorf(capability.CodeInvalidInput, "mode must be overwrite or append", false)
	}

	resolved, err := l.resolveVaultPath(path)
	if err != nil {
		return nil, err
	}

	if mkErr := os.MkdirAll(filepath.Dir(resolved), 0o755); mkErr != nil {
		return nil, capability.Errorf(capability.CodeRuntimeError, fmt.Sprintf("create parent dirs: %v", mkErr), false)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if mode == "append" {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, openErr := os.OpenFile(resolved, flags, 0o644)
	if openErr != nil {
		return nil, capability.Errorf(capability.CodeRuntimeError, fmt.Sprintf("open %s: %v", path, openErr), false)
	}
	defer func() { _ = f.Close() }()

	n, writeErr := f.WriteString(content)
	if writeErr != nil {
		return nil, capability.Errorf(capability.CodeRuntimeError, fmt.Sprintf("write %s: %v", path, writeErr), false)
	}
	return map[string]any{"path": path, "writtenBytes": n}, nil
}

func (l *Local) vaultListFiles(payload map[string]any) (map[string]any, error) {
	dir := stringField(payload, "dir", ".")
	pattern := stringField(payload, "pattern", "*")
	limit := intField(payload, "limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}

	resolved, err := l.resolveVaultPath(dir)
	if err != nil {
		return nil, err
	}

	info, statErr := os.Stat(resolved)
	if statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			return map[string]any{"files": []any{}}, nil
		}
		return nil, capability.Errorf(capability.CodeRuntimeError, fmt.Sprintf("stat %s: %v", dir, statErr), false)
	}
	if !info.IsDir() {
		return nil, capability.Errorf(capability.CodeInvalidInput, "dir must point to directory", false)
	}

	var files []string
	walkErr := filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		matched, matchErr := filepath.Match(pattern, d.Name())
		if matchErr != nil {
			return matchErr
		}
		if !matched {
			return nil
		}
		rel, relErr := filepath.Rel(l.root, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		return nil, capability.Errorf(capability.CodeRuntimeError, fmt.Sprintf("list %s: %v", dir, walkErr), false)
	}

	// Sort before truncating so a fixed directory snapshot always yields
	// the same window.
	slices.Sort(files)
	if len(files) > limit {
		files = files[:limit]
	}

	out := make([]any, len(files))
	for i, f := range files {
		out[i] = f
	}
	return map[string]any{"files": out}, nil
}
