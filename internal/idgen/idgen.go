// Package idgen generates short hash-based identifiers.
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

const (
	issueIDLength = 6
	eventIDLength = 8
)

// EncodeBase36 converts a byte slice to a base36 string of the given length.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	var result strings.Builder
	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	// Keep the least significant digits when over length.
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// IssueID creates a hash-based issue ID in the form "tri-xxxxxx".
// The nonce handles the (rare) hash collision: callers bump it and retry.
func IssueID(title, author string, ts time.Time, nonce int) string {
	content := fmt.Sprintf("%s|%s|%d|%d", title, author, ts.UnixNano(), nonce)
	hash := sha256.Sum256([]byte(content))
	return "tri-" + EncodeBase36(hash[:4], issueIDLength)
}

// EventID creates a hash-based event ID in the form "evt-xxxxxxxx".
// The sequence number makes the content unique within a log even when two
// events for the same issue share a timestamp.
func EventID(issueID, eventType string, ts time.Time, seq int64) string {
	content := fmt.Sprintf("%s|%s|%d|%d", issueID, eventType, ts.UnixNano(), seq)
	hash := sha256.Sum256([]byte(content))
	return "evt-" + EncodeBase36(hash[:5], eventIDLength)
}
