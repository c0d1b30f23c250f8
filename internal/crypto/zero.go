package crypto

// Bytes wraps a byte buffer that carries key material, plaintext, decoded
// ciphertext or token/passphrase hashes. Callers must call Zero() on every
// exit path once ownership of the buffer ends, as required for keys,
// nonces, plaintext, decrypted output, hashes and serialised payloads.
//
// Zero() is idempotent: zeroising an already-zeroised or zero-value Bytes
// is a no-op.
type Bytes struct {
	b []byte
}

// NewBytes takes ownership of b; the caller must not retain a reference to
// it outside of the returned Bytes.
func NewBytes(b []byte) Bytes {
	return Bytes{b: b}
}

// Bytes returns the underlying slice. The slice is only valid until Zero()
// is called.
func (z Bytes) Bytes() []byte {
	return z.b
}

// Len returns the length of the wrapped buffer.
func (z Bytes) Len() int {
	return len(z.b)
}

// Zero overwrites every byte of the buffer with zero, so it does not linger
// in memory after the scope that owns it exits.
func (z *Bytes) Zero() {
	for i := range z.b {
		z.b[i] = 0
	}
	z.b = nil
}

// String never renders the wrapped bytes, so accidental %v/%s logging of a
// Bytes value cannot leak key material, plaintext or tokens.
func (z Bytes) String() string {
	return "[redacted]"
}
