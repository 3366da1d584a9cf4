// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"
)

// MinMlockLimitKB is the mlock budget below which secrets are kept in
// ordinary memory.
const MinMlockLimitKB = 64

var (
	memguardInitOnce sync.Once
	mlockSufficient  bool
)

// ErrNoSecret is returned when revealing an empty Secret.
var ErrNoSecret = errors.New("no API key configured")

// Secret holds an API key sealed in a memguard Enclave. The plaintext only
// exists in a locked buffer for the duration of a Use.
//
// When the process mlock limit is too small the key is kept in ordinary
// memory and a warning is logged once.
type Secret struct {
	enclave  *memguard.Enclave
	fallback []byte
}

// NewSecret seals value. An empty value yields an empty Secret.
func NewSecret(value string) *Secret {
	if value == "" {
		return &Secret{}
	}
	initMemguard()
	if !mlockSufficient {
		return &Secret{fallback: []byte(value)}
	}
	return &Secret{enclave: memguard.NewEnclave([]byte(value))}
}

// Empty reports whether no key was configured.
func (s *Secret) Empty() bool {
	return s == nil || (s.enclave == nil && len(s.fallback) == 0)
}

// Use passes the plaintext key to fn while its locked buffer is open. fn
// must not retain the slice; the buffer is wiped when fn returns.
func (s *Secret) Use(fn func(key []byte) error) error {
	if s.Empty() {
		return ErrNoSecret
	}
	if s.enclave == nil {
		return fn(s.fallback)
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return fmt.Errorf("open API key enclave: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// HeaderValue returns prefix followed by the key, built in one allocation
// straight from the locked buffer.
//
// Known limitation: net/http headers are strings, so this value sits in
// ordinary GC-managed memory until the request that carries it is
// collected. Callers build it per request and never cache it.
func (s *Secret) HeaderValue(prefix string) (string, error) {
	var value string
	err := s.Use(func(key []byte) error {
		var b strings.Builder
		b.Grow(len(prefix) + len(key))
		b.WriteString(prefix)
		b.Write(key)
		value = b.String()
		return nil
	})
	return value, err
}

func initMemguard() {
	memguardInitOnce.Do(func() {
		var rlimit unix.Rlimit
		if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
			slog.Warn("Could not determine mlock limit", "error", err)
			mlockSufficient = true
			return
		}
		if rlimit.Cur == unix.RLIM_INFINITY {
			mlockSufficient = true
			return
		}
		limitKB := int64(rlimit.Cur / 1024)
		mlockSufficient = limitKB >= MinMlockLimitKB
		if !mlockSufficient {
			slog.Warn("SECURITY: mlock limit insufficient, API keys held in ordinary memory",
				"current_limit_kb", limitKB,
				"required_kb", MinMlockLimitKB,
			)
		}
	})
}

// secretTransport sets the auth header from a Secret on every request, so
// SDK clients never hold the plaintext key.
type secretTransport struct {
	secret *Secret
	header string
	prefix string
	base   http.RoundTripper
}

func (t *secretTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	value, err := t.secret.HeaderValue(t.prefix)
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Header.Set(t.header, value)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func bearerClient(secret *Secret, base *http.Client) *http.Client {
	client := &http.Client{}
	if base != nil {
		*client = *base
	}
	client.Transport = &secretTransport{secret: secret, header: "Authorization", prefix: "Bearer ", base: client.Transport}
	return client
}
