package mio

import (
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileJarPersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cookies.json")
	base := "https://portal.example.test"
	baseURL, err := url.Parse(base)
	require.NoError(t, err)

	jar, err := NewFileJar(path, base)
	require.NoError(t, err)
	jar.SetCookies(baseURL, []*http.Cookie{
		{Name: "mio_session", Value: "sess-1", Path: "/", Secure: true},
	})

	// A sibling process opening the same file sees the same session.
	reopened, err := NewFileJar(path, base)
	require.NoError(t, err)
	cookies := reopened.Cookies(baseURL)
	require.Len(t, cookies, 1)
	assert.Equal(t, "mio_session", cookies[0].Name)
	assert.Equal(t, "sess-1", cookies[0].Value)
}

func TestFileJarIgnoresForeignHosts(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cookies.json")
	jar, err := NewFileJar(path, "https://portal.example.test")
	require.NoError(t, err)

	other, err := url.Parse("https://elsewhere.example.test")
	require.NoError(t, err)
	jar.SetCookies(other, []*http.Cookie{{Name: "tracker", Value: "x"}})

	reopened, err := NewFileJar(path, "https://portal.example.test")
	require.NoError(t, err)
	base, _ := url.Parse("https://portal.example.test")
	assert.Empty(t, reopened.Cookies(base))
}

func TestFileJarDropsExpiredCookiesOnLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cookies.json")
	base := "https://portal.example.test"
	baseURL, _ := url.Parse(base)

	jar, err := NewFileJar(path, base)
	require.NoError(t, err)
	jar.SetCookies(baseURL, []*http.Cookie{
		{Name: "mio_session", Value: "sess-1", Expires: time.Now().Add(time.Hour)},
		{Name: "stale", Value: "old", Expires: time.Now().Add(time.Hour)},
	})
	jar.SetCookies(baseURL, []*http.Cookie{
		{Name: "stale", Value: "", MaxAge: -1},
	})

	reopened, err := NewFileJar(path, base)
	require.NoError(t, err)
	cookies := reopened.Cookies(baseURL)
	require.Len(t, cookies, 1)
	assert.Equal(t, "mio_session", cookies[0].Name)
}

func TestFileJarClear(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cookies.json")
	base := "https://portal.example.test"
	baseURL, _ := url.Parse(base)

	jar, err := NewFileJar(path, base)
	require.NoError(t, err)
	jar.SetCookies(baseURL, []*http.Cookie{{Name: "mio_session", Value: "sess-1"}})

	require.NoError(t, jar.Clear())
	assert.Empty(t, jar.Cookies(baseURL))

	reopened, err := NewFileJar(path, base)
	require.NoError(t, err)
	assert.Empty(t, reopened.Cookies(baseURL))
}