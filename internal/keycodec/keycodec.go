package keycodec

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mosaichq/license-api/internal/ierr"
)

// alphabet excludes 0/O and 1/I so keys survive being read over the phone.
// 32 characters, so a random byte mod 32 is unbiased.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	groupLength = 8
	groupCount  = 3
)

// Codec generates opaque license keys and derives the keyed fingerprint
// stored in place of the raw key. The fingerprint is HMAC-SHA256, never a
// bare hash: a leaked table of fingerprints is useless without the secret.
type Codec struct {
	secret []byte
}

func New(secret string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: license key HMAC secret is empty", ierr.ErrConfiguration)
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Generate returns a key in the form XXXXXXXX-XXXXXXXX-XXXXXXXX drawn from
// a cryptographically secure source.
func (c *Codec) Generate() (string, error) {
	raw := make([]byte, groupLength*groupCount)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to read random bytes for license key: %w", err)
	}

	groups := make([]string, groupCount)
	for g := 0; g < groupCount; g++ {
		var b strings.Builder
		b.Grow(groupLength)
		for i := 0; i < groupLength; i++ {
			b.WriteByte(alphabet[raw[g*groupLength+i]%byte(len(alphabet))])
		}
		groups[g] = b.String()
	}

	return strings.Join(groups, "-"), nil
}

// Fingerprint derives the deterministic storage form of a key. Equal keys
// under the same secret always map to the same fingerprint, which is what
// makes equality lookups work.
func (c *Codec) Fingerprint(key string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}
