package blobstore

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"pkt.systems/kryptograf"
	"pkt.systems/kryptograf/keymgmt"
)

const (
	descriptorName    = "golem/blobstore"
	descriptorContext = "golem blob values"
)

// Crypto seals and opens blob values with a data-encryption key derived
// from the root key in the PEM key file. Values are snappy-compressed
// before encryption. A nil Crypto passes data through unchanged.
type Crypto struct {
	kg       kryptograf.Kryptograf
	material kryptograf.Material
}

// NewCrypto loads the PEM key file at path, creating the root key and
// blob descriptor on first use, and persists any additions back to the
// file.
func NewCrypto(path string) (*Crypto, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	var out []byte
	store, err := keymgmt.LoadPEMInto(existing, &out)
	if err != nil {
		return nil, fmt.Errorf("load key file: %w", err)
	}
	root, err := store.EnsureRootKey()
	if err != nil {
		return nil, fmt.Errorf("ensure root key: %w", err)
	}
	mat, err := store.EnsureDescriptor(descriptorName, root, []byte(descriptorContext))
	if err != nil {
		return nil, fmt.Errorf("ensure blob descriptor: %w", err)
	}
	if err := store.Commit(); err != nil {
		return nil, fmt.Errorf("commit key material: %w", err)
	}

	if len(out) == 0 {
		out = existing
	}
	if len(out) == 0 {
		raw, err := store.Bytes()
		if err != nil {
			return nil, fmt.Errorf("serialize key material: %w", err)
		}
		out = raw
	}
	if !bytes.Equal(out, existing) {
		if err := os.WriteFile(path, out, 0o600); err != nil {
			return nil, fmt.Errorf("write key file: %w", err)
		}
	}

	return &Crypto{
		kg:       kryptograf.New(root).WithSnappy(),
		material: mat,
	}, nil
}

// Enabled reports whether encryption is active.
func (c *Crypto) Enabled() bool { return c != nil }

// Seal compresses and encrypts plaintext.
func (c *Crypto) Seal(plaintext []byte) ([]byte, error) {
	if !c.Enabled() {
		return plaintext, nil
	}
	var buf bytes.Buffer
	buf.Grow(len(plaintext) + 256)

	w, err := c.kg.EncryptWriter(&buf, c.material)
	if err != nil {
		return nil, fmt.Errorf("encrypt blob: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		w.Close()
		return nil, fmt.Errorf("encrypt blob write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("encrypt blob close: %w", err)
	}
	return buf.Bytes(), nil
}

// Open decrypts and decompresses sealed data.
func (c *Crypto) Open(sealed []byte) ([]byte, error) {
	if !c.Enabled() {
		return sealed, nil
	}
	r, err := c.kg.DecryptReader(bytes.NewReader(sealed), c.material)
	if err != nil {
		return nil, fmt.Errorf("decrypt blob: %w", err)
	}
	defer r.Close()

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypt blob read: %w", err)
	}
	return plaintext, nil
}
