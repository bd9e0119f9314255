// Package password provides the secret-material strategies for stored broker
// credentials: a one-way salted hash for verify-only deployments and a keyed
// reversible encryption for deployments that must hand the original password back
// to provisioning flows. Exactly one mode is active per deployment.
package password

// Hasher turns a plaintext password into stored secret material and checks a
// plaintext against it. Verify must not be vulnerable to timing side-channels on
// the comparison step.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, secret string) bool
}

// Decrypter is implemented by reversible hashers that can recover the original
// plaintext from the stored secret.
type Decrypter interface {
	Decrypt(secret string) (string, error)
}
