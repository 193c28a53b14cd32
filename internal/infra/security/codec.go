package security

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"ticketgate/internal/config"
	"ticketgate/internal/domain"
	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/adapter"
)

// Cipher is a symmetric passphrase cipher producing printable ciphertext.
type Cipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

var (
	_ Cipher = (*OpenSSLCipher)(nil)
	_ Cipher = (*EncryptionService)(nil)
)

// NewCipher builds the cipher named by security.cipher.
func NewCipher(cfg config.SecurityConfig) (Cipher, error) {
	switch strings.ToLower(cfg.Cipher) {
	case "", "openssl":
		return NewOpenSSLCipher(cfg.SharedSecret)
	case "gcm":
		return NewEncryptionService(cfg.SharedSecret, cfg.KDFSalt)
	default:
		return nil, fmt.Errorf("unknown cipher %q", cfg.Cipher)
	}
}

var _ adapter.PayloadCodec = (*PayloadCodec)(nil)

// PayloadCodec turns scanned ciphertext into a TicketRecord and back.
type PayloadCodec struct {
	cipher Cipher
}

func NewPayloadCodec(c Cipher) *PayloadCodec {
	return &PayloadCodec{cipher: c}
}

// Decrypt fails with domain.ErrDecrypt on malformed ciphertext or key mismatch.
func (p *PayloadCodec) Decrypt(ciphertext string) ([]byte, error) {
	if strings.TrimSpace(ciphertext) == "" {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrDecrypt)
	}
	pt, err := p.cipher.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecrypt, err)
	}
	return pt, nil
}

// Parse fails with domain.ErrParse when the bytes are not UTF-8 JSON carrying name and key.
func (p *PayloadCodec) Parse(b []byte) (*model.TicketRecord, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", domain.ErrParse)
	}
	if !utf8.Valid(b) {
		return nil, fmt.Errorf("%w: plaintext is not valid UTF-8", domain.ErrParse)
	}
	var rec model.TicketRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return &rec, nil
}

// Decode runs Decrypt then Parse. Either failure is reported as domain.ErrPayloadInvalid,
// still matching the specific cause with errors.Is.
func (p *PayloadCodec) Decode(ciphertext string) (*model.TicketRecord, error) {
	pt, err := p.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPayloadInvalid, err)
	}
	rec, err := p.Parse(pt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPayloadInvalid, err)
	}
	return rec, nil
}

// Encode serialises and encrypts a record for printing into a code.
func (p *PayloadCodec) Encode(rec *model.TicketRecord) (string, error) {
	if rec == nil {
		return "", errors.New("nil record")
	}
	if err := rec.Validate(); err != nil {
		return "", err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return p.cipher.Encrypt(b)
}
