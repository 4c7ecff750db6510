package nostr

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

const cursorFile = "nostr.cursor"

// cursor tracks the creation time of the latest event delivered to the
// subscriber. With a datadir it is persisted, so that a restarted node
// resumes from where it stopped.
type cursor struct {
	path string
	mu   *sync.Mutex
	last nostr.Timestamp
}

func loadCursor(datadir string) (*cursor, error) {
	c := &cursor{mu: &sync.Mutex{}}
	if datadir == "" {
		return c, nil
	}
	c.path = filepath.Join(datadir, cursorFile)

	buf, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read nostr cursor: %w", err)
	}
	last, err := strconv.ParseInt(strings.TrimSpace(string(buf)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid nostr cursor %s: %w", c.path, err)
	}
	c.last = nostr.Timestamp(last)
	return c, nil
}

// since is where a subscription starts: the persisted position if any,
// otherwise now minus lookback.
func (c *cursor) since(now time.Time, lookback time.Duration) nostr.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last > 0 {
		return c.last
	}
	return nostr.Timestamp(now.Add(-lookback).Unix())
}

func (c *cursor) advance(ts nostr.Timestamp) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ts <= c.last {
		return nil
	}
	c.last = ts
	if c.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(c.path, []byte(strconv.FormatInt(int64(ts), 10)), 0600)
}
