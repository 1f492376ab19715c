package interfaces

// Encryptor seals and opens secret material at rest. Implementations are
// authenticated (tamper-evident): Decrypt fails on any modification of the
// ciphertext.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}
