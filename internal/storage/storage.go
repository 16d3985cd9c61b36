// Package storage covers the small pieces of file I/O around a scrape: the
// per-retailer cookie files that let a trusted session survive across runs,
// and the caller-supplied URL lists.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Cookie is one persisted browser cookie. The shape matches what the browser
// driver exports, so a file written after one run can be imported verbatim
// into the next session.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"http_only"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"same_site,omitempty"`
}

// CookieStore reads and writes one cookie file. Saves are atomic (temp file
// plus rename) so a crash mid-write never corrupts an accrued session.
type CookieStore struct {
	mu   sync.Mutex
	path string
}

func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

func (s *CookieStore) Path() string {
	return s.path
}

// Load returns the stored cookies. A missing file is not an error: it simply
// means no session has been persisted yet.
func (s *CookieStore) Load() ([]Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookie file: %w", err)
	}

	return cookies, nil
}

func (s *CookieStore) Save(cookies []Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cookie dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	// Write to temp file first for atomicity
	tmpFile := s.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}

	if err := os.Rename(tmpFile, s.path); err != nil {
		return fmt.Errorf("failed to replace cookie file: %w", err)
	}

	return nil
}

// ReadURLList loads catalog URLs from a caller-supplied list, one per line,
// in file order. Blank lines and lines starting with '#' are skipped; no
// deduplication is applied.
func ReadURLList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open url list: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read url list: %w", err)
	}

	return urls, nil
}
