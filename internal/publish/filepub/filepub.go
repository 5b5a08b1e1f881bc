// Package filepub implements schedule.Publisher on the local
// filesystem: each published message is one rendered markdown file.
// It lets the daemon run end to end, self-healing included, without a
// chat-platform gateway.
package filepub

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/agorabot/agora/internal/core/report"
	"github.com/agorabot/agora/internal/core/schedule"
)

// Publisher writes report documents under root/<destination>/<message>.md.
type Publisher struct {
	root string
	mu   sync.Mutex
}

// New creates a Publisher rooted at dir.
func New(dir string) *Publisher {
	return &Publisher{root: dir}
}

func (p *Publisher) path(destinationID, messageID int64) string {
	return filepath.Join(p.root, strconv.FormatInt(destinationID, 10), strconv.FormatInt(messageID, 10)+".md")
}

// Send writes a new message file and returns its id.
func (p *Publisher) Send(ctx context.Context, destinationID int64, doc report.Document) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	messageID := time.Now().UnixNano()
	if err := p.write(p.path(destinationID, messageID), doc); err != nil {
		return 0, fmt.Errorf("send to %d: %w", destinationID, err)
	}
	return messageID, nil
}

// Edit overwrites an existing message file in place. A missing file
// means the message vanished: schedule.ErrMessageNotFound.
func (p *Publisher) Edit(ctx context.Context, destinationID, messageID int64, doc report.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	path := p.path(destinationID, messageID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return schedule.ErrMessageNotFound
		}
		return fmt.Errorf("stat message %d: %w", messageID, err)
	}

	if err := p.write(path, doc); err != nil {
		return fmt.Errorf("edit message %d: %w", messageID, err)
	}
	return nil
}

// write renders the document and replaces the file atomically.
func (p *Publisher) write(path string, doc report.Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(report.Markdown(doc)), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // best effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
