package prompt

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/parley/internal/errors"
	"github.com/Iron-Ham/parley/internal/logging"
)

const (
	// PromptSuffix names the file a suspended conversation writes into
	// the exchange directory.
	PromptSuffix = ".prompt.json"

	// ReplySuffix names the file the replying side drops to resume the
	// conversation.
	ReplySuffix = ".reply.json"

	// replySettle is how long to let filesystem events quiet down
	// before reading the reply. Editors and atomic writers fire several
	// events per save.
	replySettle = 50 * time.Millisecond
)

// PromptFile is the JSON payload written to <dir>/<sessionID>.prompt.json.
type PromptFile struct {
	SessionID string    `json:"session_id"`
	Turn      int       `json:"turn"`
	Question  string    `json:"question,omitempty"`
	WrittenAt time.Time `json:"written_at"`
}

// ReplyFile is the JSON payload expected in <dir>/<sessionID>.reply.json.
// A reply that is not valid JSON is taken verbatim as the input, so a
// human can answer with a plain text file.
type ReplyFile struct {
	Input string `json:"input"`
}

// FilePrompter suspends a conversation through the filesystem. Prompt
// writes the pending question into the exchange directory and blocks
// until another process supplies the matching reply file. Both files
// are removed before returning.
type FilePrompter struct {
	dir    string
	logger *logging.Logger
}

// NewFilePrompter creates a prompter exchanging files under dir,
// creating the directory if needed.
func NewFilePrompter(dir string, logger *logging.Logger) (*FilePrompter, error) {
	if dir == "" {
		return nil, errors.NewValidationError("prompt exchange directory is required").
			WithField("prompt.exchange_dir")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewValidationError("cannot create prompt exchange directory").
			WithField("prompt.exchange_dir").WithValue(dir).WithCause(err)
	}
	return &FilePrompter{dir: dir, logger: logger.WithComponent("prompt")}, nil
}

// Dir returns the exchange directory.
func (p *FilePrompter) Dir() string { return p.dir }

// Prompt writes the prompt file, waits for the reply file, and returns
// its input. The prompt file is removed on every exit path; the reply
// file is consumed on success. Context cancellation aborts with an
// error matching errors.ErrCanceled.
func (p *FilePrompter) Prompt(ctx context.Context, spec PromptSpec) (string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", errors.NewSessionError("cannot watch prompt exchange directory", err).
			WithSessionID(spec.SessionID)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(p.dir); err != nil {
		return "", errors.NewSessionError("cannot watch prompt exchange directory", err).
			WithSessionID(spec.SessionID)
	}

	promptPath := filepath.Join(p.dir, spec.SessionID+PromptSuffix)
	replyName := spec.SessionID + ReplySuffix
	replyPath := filepath.Join(p.dir, replyName)

	if err := p.writePrompt(promptPath, spec); err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(promptPath) }()

	p.logger.Info("conversation suspended",
		"session_id", spec.SessionID,
		"turn", spec.Turn,
		"prompt_file", promptPath)

	// The first settle expiry doubles as a poll for a reply that landed
	// before the watch was in place.
	settle := time.NewTimer(replySettle)
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", errors.NewSessionError("prompt canceled",
				errors.Join(errors.ErrCanceled, ctx.Err())).WithSessionID(spec.SessionID)

		case ev, ok := <-watcher.Events:
			if !ok {
				return "", errors.NewSessionError("prompt watcher closed", nil).
					WithSessionID(spec.SessionID)
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Base(ev.Name) != replyName {
				continue
			}
			settle.Reset(replySettle)

		case err, ok := <-watcher.Errors:
			if !ok {
				return "", errors.NewSessionError("prompt watcher closed", nil).
					WithSessionID(spec.SessionID)
			}
			p.logger.Warn("prompt watcher error", "error", err.Error())

		case <-settle.C:
			input, found, err := readReply(replyPath)
			if err != nil {
				return "", errors.NewSessionError("cannot read reply file", err).
					WithSessionID(spec.SessionID)
			}
			if !found {
				continue
			}
			_ = os.Remove(replyPath)
			p.logger.Info("conversation resumed", "session_id", spec.SessionID, "turn", spec.Turn)
			return input, nil
		}
	}
}

func (p *FilePrompter) writePrompt(path string, spec PromptSpec) error {
	payload := PromptFile{
		SessionID: spec.SessionID,
		Turn:      spec.Turn,
		Question:  spec.Question,
		WrittenAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errors.NewSessionError("cannot encode prompt file", err).
			WithSessionID(spec.SessionID)
	}
	if err := writeAtomic(path, data, 0o644); err != nil {
		return errors.NewSessionError("cannot write prompt file", err).
			WithSessionID(spec.SessionID)
	}
	return nil
}

// readReply loads the reply file. found is false while the file is
// absent or still empty (a writer mid-flight).
func readReply(path string) (input string, found bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "", false, nil
	}

	var reply ReplyFile
	if json.Unmarshal([]byte(trimmed), &reply) == nil && reply.Input != "" {
		return strings.TrimSpace(reply.Input), true, nil
	}
	return trimmed, true, nil
}

// writeAtomic writes through a temp file and rename so a watcher on the
// exchange directory never observes a partial file.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	success = true
	return nil
}
