// Package mailbox supplies raw notifications from a local directory of
// .eml files.
package mailbox

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/pkg/logger"
)

// Dir reads every *.eml file below root. The id of each message is its path
// relative to root, so the same file always yields the same id.
type Dir struct {
	logger *logger.Logger
	root   string
}

func NewDir(logger *logger.Logger, root string) *Dir {
	return &Dir{logger: logger, root: root}
}

func (d *Dir) Fetch(ctx context.Context) ([]models.RawMessage, error) {
	var paths []string
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(path), ".eml") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", d.root, err)
	}
	sort.Strings(paths)

	messages := make([]models.RawMessage, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			d.logger.Warnw("Skipping unreadable message file", "path", path, "error", err)
			continue
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			rel = path
		}
		messages = append(messages, models.RawMessage{ID: filepath.ToSlash(rel), Raw: raw})
	}
	d.logger.Debugw("Mailbox scanned", "root", d.root, "messages", len(messages))
	return messages, nil
}
