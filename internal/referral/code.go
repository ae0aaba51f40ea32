// Package referral generates the referral codes handed to students and
// agents at registration.
package referral

import (
	"context"
	"crypto/rand"
	"fmt"
)

// codeAlphabet excludes the visually ambiguous characters O, I, 0 and 1.
// 32 characters, so a random byte maps onto it without modulo bias.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the length of every referral code.
const CodeLength = 8

// CodeLookup answers whether a code is already taken. Implementations check
// every table that holds codes (students and agents share one namespace).
type CodeLookup interface {
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
}

// NewCode returns a random CodeLength-character code from codeAlphabet,
// using crypto/rand. It does not check for collisions.
func NewCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("referral code entropy: %w", err)
	}
	out := make([]byte, CodeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}

// Generate loops until it produces a code none of the lookups knows about.
// Collisions are low-probability and handled by loop-and-recheck, not by an
// error; the storage layer's unique constraint stays the source of truth,
// so callers still retry their INSERT on a unique violation.
func Generate(ctx context.Context, lookups ...CodeLookup) (string, error) {
	for {
		code, err := NewCode()
		if err != nil {
			return "", err
		}
		taken := false
		for _, l := range lookups {
			exists, err := l.ReferralCodeExists(ctx, code)
			if err != nil {
				return "", err
			}
			if exists {
				taken = true
				break
			}
		}
		if !taken {
			return code, nil
		}
	}
}
