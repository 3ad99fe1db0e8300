// Package icecreds generates and parses the short-term ICE credentials
// that admit a Candidate (spec §3, §6).
package icecreds

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	ufragLen = 9  // bytes of entropy, spec §4.8
	pwdLen   = 18 // bytes of entropy, spec §4.8
)

// Generate returns a fresh (ufrag, password) pair: a base64 encoding of
// 9 random bytes and 18 random bytes respectively (spec §4.8).
func Generate() (ufrag, password string, err error) {
	ufragRaw, err := randomBytes(ufragLen)
	if err != nil {
		return "", "", fmt.Errorf("icecreds: generate ufrag: %w", err)
	}
	pwdRaw, err := randomBytes(pwdLen)
	if err != nil {
		return "", "", fmt.Errorf("icecreds: generate password: %w", err)
	}

	return base64.RawStdEncoding.EncodeToString(ufragRaw),
		base64.RawStdEncoding.EncodeToString(pwdRaw), nil
}

func randomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Username builds the wire username "{local_ufrag}:{remote_ufrag}"
// used both as the STUN USERNAME attribute and the Candidate index key
// (spec §3, §6).
func Username(localUfrag, remoteUfrag string) string {
	return localUfrag + ":" + remoteUfrag
}

// ParseUsername splits a wire username into (local_ufrag, remote_ufrag).
// It splits at the first ':' only, so the remote ufrag may itself contain
// ':'. Returns ok=false if username contains no ':'.
func ParseUsername(username string) (localUfrag, remoteUfrag string, ok bool) {
	parts := strings.SplitN(username, ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
