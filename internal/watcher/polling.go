package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"
)

// pollLoop is the fallback strategy: on every tick, hash each watched file
// and emit a change event when the digest differs from the previous tick.
func (m *Monitor) pollLoop(done <-chan struct{}, loopDone chan<- struct{}) {
	defer close(loopDone)

	hashes := make(map[string]string)
	for _, path := range m.watchedFiles() {
		if h, ok := hashFile(path); ok {
			hashes[path] = h
		}
	}

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.pollOnce(hashes)
		}
	}
}

// pollOnce diffs current file digests against the previous generation.
func (m *Monitor) pollOnce(hashes map[string]string) {
	for _, path := range m.watchedFiles() {
		current, ok := hashFile(path)
		if !ok {
			continue
		}
		previous, seen := hashes[path]
		switch {
		case !seen:
			hashes[path] = current
			m.emit(path, "created")
		case previous != current:
			hashes[path] = current
			m.emit(path, "modified")
		}
	}
}

// hashFile returns the hex SHA-256 of a file's content. Unreadable files
// report not-ok; a read failure on one tick must not kill the loop.
func hashFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), true
}
