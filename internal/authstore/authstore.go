// Package authstore manages the administrator credential file: AES-256-GCM
// encryption at rest, bcrypt password hashing, and the interactive setup
// wizard that provisions the first two administrators.
package authstore

import (
	"bufio"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/jLSumner/apollo/internal/jsp"
)

const authPath = "apollo_auth.enc"

// keySalt is mixed into the hostname to derive the at-rest encryption key.
// Tying the key to the machine's hostname means the credential file isn't
// portable off the host it was written on; see DESIGN.md for the
// open-question decision to keep this as specified rather than move to a
// passphrase-derived key.
const keySalt = "apollo-coordinator-credential-store"

// nonce is fixed rather than random per write, matching the same
// open-question decision; see DESIGN.md.
var nonce = []byte("unique nonce")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Administrator is one console login identity.
type Administrator struct {
	Username       string     `json:"username"`
	PasswordHash   string     `json:"password_hash"`
	FullName       string     `json:"full_name"`
	CreatedAt      string     `json:"created_at"`
	FailedAttempts int        `json:"failed_attempts"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

// Config is the full administrator credential set, persisted encrypted.
type Config struct {
	Administrators        map[string]*Administrator `json:"administrators"`
	SessionTimeoutMinutes int                        `json:"session_timeout_minutes"`
	MaxFailedAttempts     int                        `json:"max_failed_attempts"`
}

func newConfig() *Config {
	return &Config{
		Administrators:        map[string]*Administrator{},
		SessionTimeoutMinutes: 30,
		MaxFailedAttempts:     5,
	}
}

// Store guards Config and serializes credential-file writes. mu is also
// used as the async-from-sync interlock the console's login prompt uses:
// TryVerify fails fast rather than blocking the UI thread behind a
// concurrent save.
type Store struct {
	mu  sync.Mutex
	cfg *Config
}

// dummyHash is verified against on every lookup of a username that doesn't
// exist, so a failed login for an unknown user costs the same bcrypt
// comparison as one for a real user with a wrong password.
var dummyHash = mustHash("correct horse battery staple")

func mustHash(pw string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}

// Load reads and decrypts apollo_auth.enc, defaulting to an empty
// credential set if the file does not exist yet (first run, before the
// setup wizard).
func Load() (*Store, error) {
	if !jsp.Exists(authPath) {
		return &Store{cfg: newConfig()}, nil
	}
	ciphertext, err := os.ReadFile(authPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading credential file")
	}
	plaintext, err := decrypt(ciphertext)
	if err != nil {
		return nil, errors.Wrap(err, "decrypting credential file")
	}
	cfg := newConfig()
	if err := json.Unmarshal(plaintext, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing credential file")
	}
	return &Store{cfg: cfg}, nil
}

// IsProvisioned reports whether at least one administrator exists.
func (s *Store) IsProvisioned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cfg.Administrators) > 0
}

// VerifyAndTouch checks username/password, and on success stamps the
// administrator's last-login time and resets its failed-attempt counter,
// persisting the change. A failed attempt increments the counter and is
// also persisted.
func (s *Store) VerifyAndTouch(username, password string) (bool, error) {
	s.mu.Lock()
	admin, ok := s.cfg.Administrators[username]
	hash := dummyHash
	if ok {
		hash = admin.PasswordHash
	}
	cmpErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	ok = ok && cmpErr == nil

	if admin == nil {
		s.mu.Unlock()
		return false, nil
	}
	now := time.Now()
	if ok {
		admin.FailedAttempts = 0
		admin.LastLogin = &now
	} else {
		admin.FailedAttempts++
	}
	cfg := *s.cfg
	s.mu.Unlock()

	if err := s.persist(&cfg); err != nil {
		return ok, err
	}
	return ok, nil
}

// TryVerify is the non-blocking variant VerifyAndTouch's callers in the
// synchronous console UI use: it never waits on a concurrent save,
// reporting busy=true instead.
func (s *Store) TryVerify(username, password string) (valid, busy bool) {
	if !s.mu.TryLock() {
		return false, true
	}
	admin, ok := s.cfg.Administrators[username]
	hash := dummyHash
	if ok {
		hash = admin.PasswordHash
	}
	cmpErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	valid = ok && cmpErr == nil
	if valid {
		now := time.Now()
		admin.FailedAttempts = 0
		admin.LastLogin = &now
	} else if admin != nil {
		admin.FailedAttempts++
	}
	cfg := *s.cfg
	s.mu.Unlock()

	if admin != nil {
		_ = s.persist(&cfg)
	}
	return valid, false
}

// AddAdministrator provisions a new login, hashing password with bcrypt.
// Neither username nor fullName may be empty: both identify the
// administrator in the console UI and in confirmation prompts.
func (s *Store) AddAdministrator(username, fullName, password string) error {
	if strings.TrimSpace(username) == "" {
		return errors.New("username must not be empty")
	}
	if strings.TrimSpace(fullName) == "" {
		return errors.New("full name must not be empty")
	}
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	s.mu.Lock()
	s.cfg.Administrators[username] = &Administrator{
		Username:     username,
		PasswordHash: string(hash),
		FullName:     fullName,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	cfg := *s.cfg
	s.mu.Unlock()
	return s.persist(&cfg)
}

func (s *Store) persist(cfg *Config) error {
	plaintext, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshaling credential file")
	}
	ciphertext, err := encrypt(plaintext)
	if err != nil {
		return errors.Wrap(err, "encrypting credential file")
	}
	return jsp.WriteBytes(authPath, ciphertext)
}

func deriveKey() ([32]byte, error) {
	host, err := os.Hostname()
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "resolving hostname")
	}
	return sha256.Sum256([]byte(host + keySalt)), nil
}

func encrypt(plaintext []byte) ([]byte, error) {
	key, err := deriveKey()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nil
}

func decrypt(ciphertext []byte) ([]byte, error) {
	key, err := deriveKey()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// RunSetupWizard prompts an operator on r/w for the first two
// administrators, requiring each password be entered twice and be at
// least 8 characters. Grounded on the same two-administrator bootstrap
// the original setup flow requires before the coordinator will start.
func RunSetupWizard(r io.Reader, w io.Writer) (*Store, error) {
	s := &Store{cfg: newConfig()}
	scanner := bufio.NewScanner(r)

	for i := 1; i <= 2; i++ {
		fmt.Fprintf(w, "--- administrator %d of 2 ---\n", i)
		var fullName string
		for {
			var err error
			fullName, err = prompt(scanner, w, "full name: ")
			if err != nil {
				return nil, err
			}
			if fullName == "" {
				fmt.Fprintln(w, "full name must not be empty, try again")
				continue
			}
			break
		}
		var username string
		for {
			var err error
			username, err = prompt(scanner, w, "username: ")
			if err != nil {
				return nil, err
			}
			if username == "" {
				fmt.Fprintln(w, "username must not be empty, try again")
				continue
			}
			break
		}
		for {
			pw1, err := prompt(scanner, w, "password (min 8 chars): ")
			if err != nil {
				return nil, err
			}
			if len(pw1) < 8 {
				fmt.Fprintln(w, "password too short, try again")
				continue
			}
			pw2, err := prompt(scanner, w, "confirm password: ")
			if err != nil {
				return nil, err
			}
			if pw1 != pw2 {
				fmt.Fprintln(w, "passwords did not match, try again")
				continue
			}
			if err := s.AddAdministrator(username, fullName, pw1); err != nil {
				return nil, err
			}
			break
		}
	}
	return s, nil
}

func prompt(scanner *bufio.Scanner, w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New("unexpected end of input")
	}
	return strings.TrimSpace(scanner.Text()), nil
}
