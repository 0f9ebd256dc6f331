package authstore

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte(`{"administrators":{}}`)

	ciphertext, err := encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	ciphertext, err := encrypt([]byte("hello"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	ciphertext[0] ^= 0xFF

	if _, err := decrypt(ciphertext); err == nil {
		t.Fatal("decrypt should reject a tampered ciphertext (GCM auth tag check)")
	}
}

func TestVerifyAndTouchRejectsUnknownUserAgainstDummyHash(t *testing.T) {
	s := &Store{cfg: newConfig()}

	ok, err := s.VerifyAndTouch("nobody", "whatever-password")
	if err != nil {
		t.Fatalf("VerifyAndTouch: %v", err)
	}
	if ok {
		t.Fatal("unknown username must never verify")
	}
}

// chdirTemp switches the working directory to a fresh t.TempDir() for the
// life of the test, restoring the original on cleanup. authstore resolves
// apollo_auth.enc relative to the working directory, so this is how tests
// exercise a real file round trip without clobbering the repo.
func chdirTemp(t *testing.T) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

// TestRunSetupWizardBootstrapsAndReloads covers scenario F: no
// apollo_auth.enc exists, the wizard provisions two administrators, and on
// a fresh Load (simulating a restart) both can log in with their original
// credentials while a bad password for a real username fails.
func TestRunSetupWizardBootstrapsAndReloads(t *testing.T) {
	chdirTemp(t)

	if fileExists(authPath) {
		t.Fatal("apollo_auth.enc should not exist before the wizard runs")
	}

	input := strings.Join([]string{
		"Ada Lovelace", "ada", "correcthorse1", "correcthorse1",
		"Grace Hopper", "grace", "anotherpassword1", "anotherpassword1",
	}, "\n") + "\n"

	store, err := RunSetupWizard(strings.NewReader(input), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("RunSetupWizard: %v", err)
	}
	if !store.IsProvisioned() {
		t.Fatal("wizard should leave the store provisioned")
	}

	if !fileExists(authPath) {
		t.Fatal("apollo_auth.enc should exist after the wizard runs")
	}

	reloaded, err := Load()
	if err != nil {
		t.Fatalf("Load after wizard: %v", err)
	}

	if ok, err := reloaded.VerifyAndTouch("ada", "correcthorse1"); err != nil || !ok {
		t.Fatalf("login for ada should succeed after reload: ok=%v err=%v", ok, err)
	}
	if ok, err := reloaded.VerifyAndTouch("grace", "anotherpassword1"); err != nil || !ok {
		t.Fatalf("login for grace should succeed after reload: ok=%v err=%v", ok, err)
	}
	if ok, _ := reloaded.VerifyAndTouch("ada", "wrong-password"); ok {
		t.Fatal("login with a bad password must fail")
	}

	admin := reloaded.cfg.Administrators["ada"]
	if admin.FullName != "Ada Lovelace" {
		t.Fatalf("FullName = %q, want %q", admin.FullName, "Ada Lovelace")
	}
	if admin.CreatedAt == "" {
		t.Fatal("CreatedAt must be stamped")
	}
}

func TestRunSetupWizardRejectsEmptyFullNameAndUsername(t *testing.T) {
	chdirTemp(t)

	input := strings.Join([]string{
		"", "Ada Lovelace", "", "ada", "correcthorse1", "correcthorse1",
		"Grace Hopper", "grace", "anotherpassword1", "anotherpassword1",
	}, "\n") + "\n"

	if _, err := RunSetupWizard(strings.NewReader(input), &bytes.Buffer{}); err != nil {
		t.Fatalf("RunSetupWizard should recover from blank full name/username and succeed: %v", err)
	}
}

func TestAddAdministratorRejectsEmptyUsernameOrFullName(t *testing.T) {
	s := &Store{cfg: newConfig()}

	if err := s.AddAdministrator("", "Ada Lovelace", "correcthorse1"); err == nil {
		t.Fatal("AddAdministrator should reject an empty username")
	}
	if err := s.AddAdministrator("ada", "", "correcthorse1"); err == nil {
		t.Fatal("AddAdministrator should reject an empty full name")
	}
}

// TestLoginTimingIsIndependentOfUsernameValidity is the timing-invariance
// property (spec invariant #4, scenario F): a bad password against a real
// username and a bad password against an unknown username must both pay
// for exactly one bcrypt comparison, so neither should be dramatically
// faster than the other. bcrypt's cost factor dominates wall-clock time
// here, so a coarse ratio bound is enough to catch a regression that
// short-circuits the unknown-user path before hashing.
func TestLoginTimingIsIndependentOfUsernameValidity(t *testing.T) {
	s := &Store{cfg: newConfig()}
	if err := s.AddAdministrator("ada", "Ada Lovelace", "correcthorse1"); err != nil {
		t.Fatalf("AddAdministrator: %v", err)
	}

	const rounds = 5
	var knownUserTotal, unknownUserTotal time.Duration

	for i := 0; i < rounds; i++ {
		start := time.Now()
		if ok, _ := s.VerifyAndTouch("ada", "wrong-password"); ok {
			t.Fatal("wrong password must not verify")
		}
		knownUserTotal += time.Since(start)

		start = time.Now()
		if ok, _ := s.VerifyAndTouch("nobody", "wrong-password"); ok {
			t.Fatal("unknown user must not verify")
		}
		unknownUserTotal += time.Since(start)
	}

	ratio := float64(knownUserTotal) / float64(unknownUserTotal)
	if ratio < 0.5 || ratio > 2 {
		t.Fatalf("bad-password timing diverged too much between known and unknown usernames: known=%s unknown=%s ratio=%.2f", knownUserTotal, unknownUserTotal, ratio)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
