package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// OpenSSLCipher speaks the OpenSSL "Salted__" passphrase format that CryptoJS
// emits for AES.encrypt(text, passphrase):
//
//	base64("Salted__" || salt[8] || AES-256-CBC(PKCS#7(plaintext)))
//
// with key and IV derived by EVP_BytesToKey(MD5, passphrase, salt, 1 round).
type OpenSSLCipher struct {
	passphrase []byte
}

const (
	saltMagic = "Salted__"
	saltLen   = 8
	keyLen    = 32
	ivLen     = aes.BlockSize
)

func NewOpenSSLCipher(passphrase string) (*OpenSSLCipher, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase must not be empty")
	}
	return &OpenSSLCipher{passphrase: []byte(passphrase)}, nil
}

func (c *OpenSSLCipher) Encrypt(plaintext []byte) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("rand salt: %w", err)
	}
	key, iv := evpBytesToKey(c.passphrase, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(saltMagic)+saltLen+len(padded))
	copy(out, saltMagic)
	copy(out[len(saltMagic):], salt)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(saltMagic)+saltLen:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *OpenSSLCipher) Decrypt(b64 string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	if len(data) < len(saltMagic)+saltLen+aes.BlockSize || !bytes.HasPrefix(data, []byte(saltMagic)) {
		return nil, errors.New("not an openssl salted payload")
	}
	salt := data[len(saltMagic) : len(saltMagic)+saltLen]
	ct := data[len(saltMagic)+saltLen:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext is not a multiple of the block size")
	}

	key, iv := evpBytesToKey(c.passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)
	return pkcs7Unpad(pt, aes.BlockSize)
}

// evpBytesToKey derives a 32-byte key and 16-byte IV the way OpenSSL's
// EVP_BytesToKey does with MD5 and a single iteration.
func evpBytesToKey(passphrase, salt []byte) (key, iv []byte) {
	var derived, prev []byte
	for len(derived) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keyLen], derived[keyLen : keyLen+ivLen]
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

// errBadPadding almost always means the passphrase does not match.
var errBadPadding = errors.New("bad padding")

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errBadPadding
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errBadPadding
		}
	}
	return b[:len(b)-n], nil
}
