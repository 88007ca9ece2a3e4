package portal

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Violation tags recorded in audit metadata when the gate rejects a path.
const (
	ViolationTraversal   = "path_traversal_attempt"
	ViolationOutsideRoot = "outside_root"
	ViolationNotRegular  = "not_regular_file"
	ViolationSymlink     = "symlink_escape"
	ViolationFileType    = "invalid_file_type"
)

// GateError carries the violation tag and the raw attempted path for
// forensics. It unwraps to ErrInvalidPath or ErrInvalidFileType.
type GateError struct {
	Tag       string
	Attempted string
	kind      error
}

func (e *GateError) Error() string {
	return fmt.Sprintf("%s: %s (%q)", e.kind.Error(), e.Tag, e.Attempted)
}

func (e *GateError) Unwrap() error { return e.kind }

// Gate validates stored document paths before any file is opened for
// download. It is the sole mediator between requests and the policy
// documents directory.
type Gate struct {
	root string
}

// NewGate anchors the gate at the policy documents root. The root must
// exist; its resolved form is the containment boundary for every check.
func NewGate(root string) (*Gate, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("gate root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("gate root: %w", err)
	}
	return &Gate{root: resolved}, nil
}

func (g *Gate) Root() string { return g.root }

// Resolve validates a stored document path and returns the absolute path to
// stream. Checks run in order and the first violation rejects before any
// filesystem call is made for the suspect input. A suspicious path is never
// truncated or repaired.
func (g *Gate) Resolve(stored string) (string, error) {
	if stored == "" {
		return "", g.reject(ViolationTraversal, stored)
	}
	if err := rejectTraversal(stored); err != nil {
		return "", g.reject(ViolationTraversal, stored)
	}
	cleaned := filepath.Clean("/" + filepath.FromSlash(stored))
	full := filepath.Join(g.root, cleaned)
	if !strings.HasPrefix(full, g.root+string(os.PathSeparator)) {
		return "", g.reject(ViolationOutsideRoot, stored)
	}

	info, err := os.Lstat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat %s: %w", full, err)
	}

	// Resolve symlinks in every component and re-check containment, so a
	// link inside the root cannot point the download outside it.
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		return "", g.reject(ViolationSymlink, stored)
	}
	if resolved != g.root && !strings.HasPrefix(resolved, g.root+string(os.PathSeparator)) {
		return "", g.reject(ViolationSymlink, stored)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		info, err = os.Stat(resolved)
		if err != nil {
			return "", g.reject(ViolationSymlink, stored)
		}
	}
	if !info.Mode().IsRegular() {
		return "", g.reject(ViolationNotRegular, stored)
	}
	if strings.ToLower(filepath.Ext(resolved)) != ".pdf" {
		return "", &GateError{Tag: ViolationFileType, Attempted: stored, kind: ErrInvalidFileType}
	}
	return resolved, nil
}

func (g *Gate) reject(tag, attempted string) error {
	return &GateError{Tag: tag, Attempted: attempted, kind: ErrInvalidPath}
}

// rejectTraversal refuses NUL bytes and parent-directory sequences in the
// raw string and in its URL-decoded and backslash-normalized variants, so
// encoded forms like %2e%2e or ..\ cannot slip past the literal check.
func rejectTraversal(p string) error {
	variants := []string{p}
	if once, err := url.PathUnescape(p); err == nil && once != p {
		variants = append(variants, once)
		if twice, err := url.PathUnescape(once); err == nil && twice != once {
			variants = append(variants, twice)
		}
	} else if err != nil {
		// Undecodable escapes are suspicious in a stored path.
		return fmt.Errorf("malformed escape")
	}
	for _, v := range variants {
		if strings.ContainsRune(v, 0) {
			return fmt.Errorf("NUL byte")
		}
		normalized := strings.ReplaceAll(v, "\\", "/")
		if strings.Contains(normalized, "..") {
			return fmt.Errorf("parent traversal")
		}
		if strings.HasPrefix(normalized, "/") || filepath.IsAbs(v) {
			return fmt.Errorf("absolute path")
		}
	}
	return nil
}
