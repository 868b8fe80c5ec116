package prefs

import (
	"errors"
	"fmt"
)

var ErrInvalidScheme = errors.New("invalid color scheme")

type Scheme string

const (
	SchemeLight Scheme = "light"
	SchemeDark  Scheme = "dark"
)

func (s Scheme) Valid() bool {
	return s == SchemeLight || s == SchemeDark
}

func (s Scheme) Toggled() Scheme {
	if s == SchemeDark {
		return SchemeLight
	}
	return SchemeDark
}

func ParseScheme(value string) (Scheme, error) {
	scheme := Scheme(value)
	if !scheme.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidScheme, value)
	}
	return scheme, nil
}

// Signal reports the host platform's light/dark preference. It is only
// consulted when durable storage holds no usable value.
type Signal interface {
	PrefersDark() bool
}

type StaticSignal bool

func (s StaticSignal) PrefersDark() bool {
	return bool(s)
}

func schemeFromSignal(signal Signal) Scheme {
	if signal != nil && signal.PrefersDark() {
		return SchemeDark
	}
	return SchemeLight
}
