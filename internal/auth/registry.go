package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/playgroundai/playground-api/internal/store"
)

var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrUsernameTaken   = errors.New("username already exists")
	ErrInvalidToken    = errors.New("invalid token")
)

const (
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyz"
	tokenLength   = 10

	usersDocument = "users.json"
)

// Usernames containing any of these substrings (case-insensitive) are rejected.
var usernameBlocklist = []string{"tlodev", "tlo"}

// Registry issues opaque bearer tokens and maps them to usernames. The mapping
// lives in a single durable document; tokens are never expired, revoked or
// reused.
type Registry struct {
	files *store.FileStore
}

func NewRegistry(files *store.FileStore) *Registry {
	return &Registry{files: files}
}

// Register validates the username, issues a fresh token and persists the
// mapping before returning it. Username uniqueness is case-insensitive.
func (r *Registry) Register(username string) (string, error) {
	if username == "" {
		return "", ErrInvalidUsername
	}
	lower := strings.ToLower(username)
	for _, bad := range usernameBlocklist {
		if strings.Contains(lower, bad) {
			return "", ErrInvalidUsername
		}
	}

	unlock := r.files.Lock(usersDocument)
	defer unlock()

	users := map[string]string{}
	if _, err := r.files.Load(usersDocument, &users); err != nil {
		return "", err
	}

	for _, existing := range users {
		if strings.EqualFold(existing, username) {
			return "", ErrUsernameTaken
		}
	}

	token, err := generateToken()
	if err != nil {
		return "", err
	}
	// Redraw on the (vanishingly unlikely) collision with an issued token.
	for {
		if _, taken := users[token]; !taken {
			break
		}
		if token, err = generateToken(); err != nil {
			return "", err
		}
	}

	users[token] = username
	if err := r.files.Save(usersDocument, users); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the username a token was issued to. Pure lookup.
func (r *Registry) Resolve(token string) (string, error) {
	users := map[string]string{}
	if _, err := r.files.Load(usersDocument, &users); err != nil {
		return "", err
	}
	username, ok := users[token]
	if !ok {
		return "", ErrInvalidToken
	}
	return username, nil
}

func generateToken() (string, error) {
	buf := make([]byte, tokenLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(tokenAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate token: %w", err)
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}
