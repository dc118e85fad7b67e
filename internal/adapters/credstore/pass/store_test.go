package pass

import (
	"context"
	"errors"
	"testing"

	"github.com/snaka/mioportal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSaveUsesPassInsert(t *testing.T) {
	t.Parallel()

	called := false
	store := &Store{
		entry: defaultEntry,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			called = true
			assert.Equal(t, []string{"insert", "-m", "-f", "mioportal/credentials"}, args)
			assert.JSONEq(t, `{"mioId":"mio12345","password":"hunter2"}`, input)
			return "", "", nil
		},
	}

	err := store.Save(context.Background(), domain.Credentials{MioID: "mio12345", Password: "hunter2"})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestStoreLoadDecodesStoredJSON(t *testing.T) {
	t.Parallel()

	store := &Store{
		entry: defaultEntry,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"show", "mioportal/credentials"}, args)
			return `{"mioId":"mio12345","password":"hunter2"}` + "\n", "", nil
		},
	}

	creds, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Credentials{MioID: "mio12345", Password: "hunter2"}, creds)
}

func TestStoreLoadMapsMissingEntryToNotFound(t *testing.T) {
	t.Parallel()

	store := &Store{
		entry: defaultEntry,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "mioportal/credentials is not in the password store.", errors.New("exit status 1")
		},
	}

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestStoreLoadRejectsIncompleteCredentials(t *testing.T) {
	t.Parallel()

	store := &Store{
		entry: defaultEntry,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return `{"mioId":"mio12345"}`, "", nil
		},
	}

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestStoreDeleteIgnoresMissingEntry(t *testing.T) {
	t.Parallel()

	store := &Store{
		entry: defaultEntry,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"rm", "-f", "mioportal/credentials"}, args)
			return "", "mioportal/credentials is not in the password store.", errors.New("exit status 1")
		},
	}

	require.NoError(t, store.Delete(context.Background()))
}

func TestStoreLoadReturnsClearError(t *testing.T) {
	t.Parallel()

	store := &Store{
		entry: defaultEntry,
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "gpg: decryption failed", errors.New("exit status 2")
		},
	}

	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "pass load")
	assert.ErrorContains(t, err, "gpg: decryption failed")
}
