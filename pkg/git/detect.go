// Package git detects the project a relay or chat session is running in.
package git

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const detectTimeout = 5 * time.Second

// ProjectName returns the name used to tag stored turns for dir. It is the
// base name of the enclosing git work tree, or of dir itself when dir is not
// inside one (or git is not installed).
func ProjectName(ctx context.Context, dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = abs
	out, err := cmd.Output()
	if err == nil {
		if top := strings.TrimSpace(string(out)); top != "" {
			return filepath.Base(top)
		}
	}

	return filepath.Base(abs)
}
