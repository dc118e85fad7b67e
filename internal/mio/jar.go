package mio

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	jarDirMode  = 0o700
	jarFileMode = 0o600
)

// FileJar is an http.CookieJar that mirrors the portal host's cookies to a
// file, so a background process sharing the same data directory rides the
// same session instead of logging in again.
type FileJar struct {
	inner *cookiejar.Jar
	path  string
	host  string

	mu sync.Mutex
}

type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Domain  string    `json:"domain,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
	Secure  bool      `json:"secure,omitempty"`
}

// NewFileJar loads any previously persisted cookies for baseURL's host from
// path and keeps the file in sync as the session evolves.
func NewFileJar(path, baseURL string) (*FileJar, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	jar := &FileJar{inner: inner, path: filepath.Clean(path), host: parsed.Host}
	if err := jar.load(parsed); err != nil {
		return nil, err
	}
	return jar, nil
}

func (j *FileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	if u.Host != j.host {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	stored := j.read()
	byName := make(map[string]storedCookie, len(stored)+len(cookies))
	for _, c := range stored {
		byName[c.Name] = c
	}
	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(time.Now())) {
			delete(byName, c.Name)
			continue
		}
		byName[c.Name] = storedCookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    c.Path,
			Domain:  c.Domain,
			Expires: c.Expires,
			Secure:  c.Secure,
		}
	}

	merged := make([]storedCookie, 0, len(byName))
	for _, c := range byName {
		merged = append(merged, c)
	}
	j.write(merged)
}

func (j *FileJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

func (j *FileJar) load(base *url.URL) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	stored := j.read()
	if len(stored) == 0 {
		return nil
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		if !c.Expires.IsZero() && c.Expires.Before(time.Now()) {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    c.Path,
			Domain:  c.Domain,
			Expires: c.Expires,
			Secure:  c.Secure,
		})
	}
	j.inner.SetCookies(base, cookies)
	return nil
}

// read returns the persisted cookies, treating a missing or corrupt file as
// empty. Cookie persistence is best-effort; a lost file only costs a login.
func (j *FileJar) read() []storedCookie {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return nil
	}

	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil
	}
	return stored
}

func (j *FileJar) write(cookies []storedCookie) {
	data, err := json.Marshal(cookies)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(j.path), jarDirMode); err != nil {
		return
	}
	_ = os.WriteFile(j.path, data, jarFileMode)
}

// Clear removes both the in-memory and the persisted cookies.
func (j *FileJar) Clear() error {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("reset cookie jar: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.inner = inner

	if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cookie file: %w", err)
	}
	return nil
}
