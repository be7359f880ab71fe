// Package vaultgit automates git synchronization of the vault: scoped
// add/commit/push against the repository that contains the vault
// directory. Operations are serialized across processes with an
// advisory file lock so bot and scheduler never race each other.
package vaultgit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrNoRepository is returned when the vault path is not inside a
	// git repository.
	ErrNoRepository = errors.New("vaultgit: no git repository for vault path")

	// ErrLockTimeout is returned when the operations lock could not be
	// acquired within the bounded wait.
	ErrLockTimeout = errors.New("vaultgit: timed out acquiring operations lock")
)

const (
	defaultLockTimeout = 30 * time.Second
	lockRetryInterval  = 200 * time.Millisecond
)

// Service runs git operations scoped to the vault directory.
type Service struct {
	vaultPath   string
	repoRoot    string
	scopePath   string
	lockPath    string
	lockTimeout time.Duration
	logger      *slog.Logger
}

// New builds the service and detects the enclosing repository. A vault
// outside any repository still yields a usable value; every operation
// then fails with ErrNoRepository.
func New(vaultPath string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "vaultgit")

	abs, err := filepath.Abs(vaultPath)
	if err != nil {
		abs = vaultPath
	}
	s := &Service{
		vaultPath:   abs,
		scopePath:   ".",
		lockPath:    filepath.Join(abs, ".git-ops.lock"),
		lockTimeout: defaultLockTimeout,
		logger:      logger,
	}

	root, err := detectRepoRoot(abs)
	if err != nil {
		logger.Error("repository detection failed", "vault", abs, "error", err)
		return s
	}
	s.repoRoot = root
	s.lockPath = filepath.Join(root, ".git", "vault-git-ops.lock")
	if rel, err := filepath.Rel(root, abs); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		s.scopePath = filepath.ToSlash(rel)
	}
	logger.Info("initialized", "root", root, "scope", s.scopePath)
	return s
}

// SetLockTimeout overrides how long operations wait for the ops lock.
// Non-positive values keep the default.
func (s *Service) SetLockTimeout(d time.Duration) {
	if d > 0 {
		s.lockTimeout = d
	}
}

func detectRepoRoot(vaultPath string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = vaultPath
	cmd.Env = append(os.Environ(), "GIT_DISCOVERY_ACROSS_FILESYSTEM=1")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	root := strings.TrimSpace(string(out))
	if _, err := os.Stat(root); err != nil {
		return "", fmt.Errorf("detected root %s: %w", root, err)
	}
	return root, nil
}

func (s *Service) git(ctx context.Context, args ...string) (string, string, error) {
	if s.repoRoot == "" {
		return "", "", ErrNoRepository
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = s.repoRoot
	cmd.Env = append(os.Environ(), "GIT_DISCOVERY_ACROSS_FILESYSTEM=1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}

// Status returns the porcelain status limited to the vault scope.
func (s *Service) Status(ctx context.Context) (string, error) {
	args := []string{"status", "--porcelain"}
	if s.scopePath != "." {
		args = append(args, "--", s.scopePath)
	}
	out, errMsg, err := s.git(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("vaultgit: status: %s: %w", errMsg, err)
	}
	return out, nil
}

// HasChanges reports whether the scope carries uncommitted changes.
func (s *Service) HasChanges(ctx context.Context) (bool, error) {
	status, err := s.Status(ctx)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(status) != "", nil
}

// Commit stages the scoped changes and commits them. It returns false
// without error when there is nothing to commit.
func (s *Service) Commit(ctx context.Context, message string) (bool, error) {
	hasChanges, err := s.HasChanges(ctx)
	if err != nil {
		return false, err
	}
	if !hasChanges {
		s.logger.Info("no changes to commit")
		return false, nil
	}

	args := []string{"add", "-A"}
	if s.scopePath != "." {
		args = append(args, "--", s.scopePath)
	}
	if _, errMsg, err := s.git(ctx, args...); err != nil {
		return false, fmt.Errorf("vaultgit: add: %s: %w", errMsg, err)
	}
	if _, errMsg, err := s.git(ctx, "commit", "-m", message); err != nil {
		return false, fmt.Errorf("vaultgit: commit: %s: %w", errMsg, err)
	}
	s.logger.Info("committed", "message", message)
	return true, nil
}

// Push pushes the current branch to its remote.
func (s *Service) Push(ctx context.Context) error {
	if _, errMsg, err := s.git(ctx, "push"); err != nil {
		return fmt.Errorf("vaultgit: push: %s: %w", errMsg, err)
	}
	s.logger.Info("pushed to remote")
	return nil
}

// CommitAndPush commits the scoped changes and pushes, holding the
// operations lock for the whole sequence. It returns true when the
// scope ends up synchronized, including the nothing-to-commit case.
func (s *Service) CommitAndPush(ctx context.Context, message string) (bool, error) {
	release, err := s.acquireLock(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	committed, err := s.Commit(ctx, message)
	if err != nil {
		return false, err
	}
	if !committed {
		return true, nil
	}
	if err := s.Push(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// acquireLock takes the exclusive advisory lock, polling until the
// bounded wait expires.
func (s *Service) acquireLock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("vaultgit: create lock directory: %w", err)
	}
	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("vaultgit: open lock file: %w", err)
	}

	deadline := time.Now().Add(s.lockTimeout)
	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			break
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) && !errors.Is(err, syscall.EAGAIN) {
			f.Close()
			return nil, fmt.Errorf("vaultgit: flock: %w", err)
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}

	return func() {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
	}, nil
}
