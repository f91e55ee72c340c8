// Package secure holds secret byte strings (PINs, passphrases) so that they
// are not printed by accident and are zeroed once released.
//
// A Secret never exposes its contents through fmt: every verb prints a fixed
// placeholder. The raw bytes are only reachable through Unsecure, which is
// meant for the one consumer that actually needs them (e.g. the code building
// a VERIFY APDU). Wipe overwrites the backing array with zeros; a finalizer
// does the same if the owner forgets.
package secure

import (
	"crypto/subtle"
	"fmt"
	"runtime"
)

// Redacted is what a Secret prints as.
const Redacted = "***SECRET***"

// Secret is a byte string that is zeroed on release.
type Secret struct {
	data []byte
}

// New takes ownership of b. The caller must not keep or reuse b afterwards.
func New(b []byte) *Secret {
	s := &Secret{data: b}
	runtime.SetFinalizer(s, (*Secret).Wipe)
	return s
}

// Copy stores a private copy of b and zeroes b.
func Copy(b []byte) *Secret {
	data := make([]byte, len(b))
	copy(data, b)
	Zero(b)
	return New(data)
}

// Unsecure returns the secret bytes. The returned slice aliases the Secret's
// storage and becomes all zeros after Wipe. The finalizer wipes it too, so
// the caller must keep the Secret reachable (runtime.KeepAlive) for as long
// as the slice is in use.
func (s *Secret) Unsecure() []byte {
	if s == nil {
		return nil
	}
	return s.data
}

// Len returns the number of bytes held.
func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	return len(s.data)
}

// Equal reports whether both secrets hold the same bytes, in constant time.
func (s *Secret) Equal(other *Secret) bool {
	eq := subtle.ConstantTimeCompare(s.Unsecure(), other.Unsecure()) == 1
	runtime.KeepAlive(s)
	runtime.KeepAlive(other)
	return eq
}

// Wipe zeroes the secret. It is safe to call more than once.
func (s *Secret) Wipe() {
	if s == nil {
		return
	}
	Zero(s.data)
	s.data = s.data[:0]
	runtime.SetFinalizer(s, nil)
}

// String implements fmt.Stringer.
func (s *Secret) String() string {
	return Redacted
}

// GoString implements fmt.GoStringer.
func (s *Secret) GoString() string {
	return "secure.Secret(" + Redacted + ")"
}

// Format keeps %x, %q and friends from reaching the bytes.
func (s *Secret) Format(f fmt.State, verb rune) {
	if verb == 'v' && f.Flag('#') {
		_, _ = fmt.Fprint(f, s.GoString())
		return
	}
	_, _ = fmt.Fprint(f, Redacted)
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// Keep the stores from being treated as dead.
	runtime.KeepAlive(b)
}
