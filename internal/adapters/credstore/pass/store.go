package pass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/snaka/mioportal/internal/domain"
	"github.com/snaka/mioportal/internal/ports"
)

var ErrUnavailable = errors.New("pass command unavailable")

// defaultEntry is the password-store path the portal credential lives under.
const defaultEntry = "mioportal/credentials"

type runFunc func(ctx context.Context, input string, args ...string) (stdout string, stderr string, err error)

// Store keeps the credential in the user's password store (the standard
// `pass` tool), which encrypts at rest via GPG.
type Store struct {
	entry string
	run   runFunc
}

var _ ports.CredentialStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{entry: defaultEntry, run: runPassCommand}
}

type storedCredentials struct {
	MioID    string `json:"mioId"`
	Password string `json:"password"`
}

func (s *Store) Load(ctx context.Context) (domain.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return domain.Credentials{}, err
	}

	stdout, stderr, err := s.run(ctx, "", "show", s.entry)
	if err != nil {
		if strings.Contains(stderr, "not in the password store") {
			return domain.Credentials{}, domain.ErrCredentialNotFound
		}
		return domain.Credentials{}, formatError("load", s.entry, err, stderr)
	}

	var stored storedCredentials
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &stored); err != nil {
		return domain.Credentials{}, fmt.Errorf("decode stored credentials: %w", err)
	}

	creds := domain.Credentials{MioID: stored.MioID, Password: stored.Password}
	if !creds.Valid() {
		return domain.Credentials{}, domain.ErrCredentialNotFound
	}
	return creds, nil
}

func (s *Store) Save(ctx context.Context, creds domain.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	encoded, err := json.Marshal(storedCredentials{MioID: creds.MioID, Password: creds.Password})
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	_, stderr, err := s.run(ctx, string(encoded)+"\n", "insert", "-m", "-f", s.entry)
	if err != nil {
		return formatError("save", s.entry, err, stderr)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, stderr, err := s.run(ctx, "", "rm", "-f", s.entry)
	if err != nil {
		if strings.Contains(stderr, "not in the password store") {
			return nil
		}
		return formatError("delete", s.entry, err, stderr)
	}
	return nil
}

func runPassCommand(ctx context.Context, input string, args ...string) (string, string, error) {
	path, err := exec.LookPath("pass")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", ErrUnavailable
		}
		return "", "", fmt.Errorf("locate pass command: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}

func formatError(op string, entry string, err error, stderr string) error {
	if stderr == "" {
		return fmt.Errorf("pass %s %q: %w", op, entry, err)
	}

	return fmt.Errorf("pass %s %q: %w: %s", op, entry, err, stderr)
}
