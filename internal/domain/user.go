// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MaxIdentityLen    = 128
	MaxDisplayNameLen = 64
)

var (
	ErrIdentityEmpty   = errors.New("identity empty")
	ErrIdentityTooLong = errors.New("identity too long")
)

// Identity is the stable user id handed to the client by the sign-in flow.
// The relay treats it as opaque.
type Identity string

// ParseIdentity trims and bounds a client supplied identity.
func ParseIdentity(raw string) (Identity, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrIdentityEmpty
	}
	if len(s) > MaxIdentityLen {
		return "", ErrIdentityTooLong
	}
	return Identity(s), nil
}

// CallerInfo is the display metadata a caller attaches to call-user.
type CallerInfo struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Clip keeps display fields within limits without rejecting the call.
func (c CallerInfo) Clip() CallerInfo {
	if len(c.Name) > MaxDisplayNameLen {
		cut := MaxDisplayNameLen
		for cut > 0 && !utf8.RuneStart(c.Name[cut]) {
			cut--
		}
		c.Name = c.Name[:cut]
	}
	return c
}
