package adapter

import "ticketgate/internal/domain/model"

// PayloadCodec decrypts and parses scanned payloads, and produces them at issuance.
type PayloadCodec interface {
	// Decode fails with an error matching domain.ErrPayloadInvalid.
	Decode(ciphertext string) (*model.TicketRecord, error)
	Encode(rec *model.TicketRecord) (string, error)
}
