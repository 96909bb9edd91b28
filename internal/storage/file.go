package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "sdkbridge/pkg/logx"
)

// fileStore keeps two append-only JSON Lines files:
//   - <prefix>.events.jsonl
//   - <prefix>.links.jsonl
//
// Prune rewrites each file through a temp file and rename.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	eventsPath string
	linksPath  string
	events     *os.File
	links      *os.File

	last    LinkRecord
	hasLast bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:        log,
		eventsPath: prefix + ".events.jsonl",
		linksPath:  prefix + ".links.jsonl",
	}

	skipped, err := scanJSONL(s.linksPath, func(b []byte) bool {
		var l LinkRecord
		if json.Unmarshal(b, &l) == nil && l.URL != "" {
			s.last, s.hasLast = l, true
		}
		return true
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if skipped > 0 {
		log.Warn("file store skipped oversized lines", logx.String("path", s.linksPath), logx.Int("lines", skipped))
	}

	if err := s.reopenLocked(); err != nil {
		_ = s.closeLocked()
		return nil, err
	}
	return s, nil
}

func (s *fileStore) reopenLocked() error {
	_ = s.closeLocked()
	ef, err := os.OpenFile(s.eventsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	lf, err := os.OpenFile(s.linksPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = ef.Close()
		return err
	}
	s.events, s.links = ef, lf
	return nil
}

func (s *fileStore) closeLocked() error {
	var err1, err2 error
	if s.events != nil {
		err1 = s.events.Close()
		s.events = nil
	}
	if s.links != nil {
		err2 = s.links.Close()
		s.links = nil
	}
	return errors.Join(err1, err2)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *fileStore) AppendEvent(ctx context.Context, e EventRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events == nil {
		return ErrClosed
	}
	return json.NewEncoder(s.events).Encode(e)
}

func (s *fileStore) AppendLink(ctx context.Context, l LinkRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.At.IsZero() {
		l.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.links == nil {
		return ErrClosed
	}
	if err := json.NewEncoder(s.links).Encode(l); err != nil {
		return err
	}
	s.last, s.hasLast = l, true
	return nil
}

func (s *fileStore) LastLink(ctx context.Context) (LinkRecord, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast, nil
}

func (s *fileStore) Prune(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events == nil {
		return 0, ErrClosed
	}

	total := 0
	for _, path := range []string{s.eventsPath, s.linksPath} {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := pruneJSONL(path, before)
		total += n
		if err != nil {
			_ = s.reopenLocked()
			return total, err
		}
	}
	if err := s.reopenLocked(); err != nil {
		return total, err
	}
	s.last, s.hasLast = LinkRecord{}, false
	_, _ = scanJSONL(s.linksPath, func(b []byte) bool {
		var l LinkRecord
		if json.Unmarshal(b, &l) == nil && l.URL != "" {
			s.last, s.hasLast = l, true
		}
		return true
	})
	if total > 0 {
		s.log.Debug("file store pruned", logx.Int("removed", total), logx.Time("before", before))
	}
	return total, nil
}

// pruneJSONL rewrites path keeping lines whose "at" is not before cutoff.
// Lines that fail to parse are kept.
func pruneJSONL(path string, before time.Time) (int, error) {
	tmp := path + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(out)

	removed := 0
	var werr error
	skipped, err := scanJSONL(path, func(b []byte) bool {
		var rec struct {
			At time.Time `json:"at"`
		}
		if json.Unmarshal(b, &rec) == nil && !rec.At.IsZero() && rec.At.Before(before) {
			removed++
			return true
		}
		if _, werr = w.Write(append(b, '\n')); werr != nil {
			return false
		}
		return true
	})
	if err == nil {
		err = werr
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, err
	}
	// oversized lines are not copied over
	return removed + skipped, nil
}

// maxLineBytes bounds one journal line. Longer lines are skipped.
const maxLineBytes = 1 << 20

// scanJSONL calls fn for each non-empty line of path until fn returns
// false. It reports how many lines were skipped for exceeding maxLineBytes.
func scanJSONL(path string, fn func(line []byte) bool) (skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	r := bufio.NewReaderSize(f, 64*1024)
	for {
		line, oversized, err := readLine(r)
		if oversized {
			skipped++
		} else if len(line) > 0 && !fn(line) {
			return skipped, nil
		}
		if err == io.EOF {
			return skipped, nil
		}
		if err != nil {
			return skipped, err
		}
	}
}

// readLine returns the next line without its newline. A line longer than
// maxLineBytes is consumed and reported as oversized.
func readLine(r *bufio.Reader) (line []byte, oversized bool, err error) {
	for {
		chunk, rerr := r.ReadSlice('\n')
		if !oversized {
			if len(line)+len(chunk) > maxLineBytes+1 {
				oversized, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if rerr == bufio.ErrBufferFull {
			continue
		}
		if oversized {
			return nil, true, rerr
		}
		return bytes.TrimRight(line, "\r\n"), false, rerr
	}
}
