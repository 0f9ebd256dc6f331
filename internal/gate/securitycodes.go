// Package gate implements the privileged-action confirmation flow: every
// destructive console action must be staged, then confirmed with the
// action-specific code loaded from the security-codes file, before it is
// actually applied.
package gate

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// SecurityCodes holds the KEY >> VALUE pairs a confirmation must match.
type SecurityCodes struct {
	codes map[string]string
}

// LoadSecurityCodes parses a file of "KEY >> VALUE" lines. Whitespace
// around the key is stripped entirely (not just trimmed) so "Directive
// Deletion >> foo" and "DirectiveDeletion >> foo" are equivalent keys,
// matching the loader's original behavior. The key must otherwise match a
// Kind constant's literal string exactly (e.g. "PluginDeletion") since
// Gate.Confirm looks it up verbatim.
func LoadSecurityCodes(path string) (*SecurityCodes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open security codes file %s", path)
	}
	defer f.Close()

	codes := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, ok := strings.Cut(line, ">>")
		if !ok {
			continue
		}
		formattedKey := strings.ReplaceAll(strings.TrimSpace(key), " ", "")
		codes[formattedKey] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read security codes file %s", path)
	}
	return &SecurityCodes{codes: codes}, nil
}

// Code returns the confirmation code registered for action, if any.
func (s *SecurityCodes) Code(action string) (string, bool) {
	c, ok := s.codes[action]
	return c, ok
}
