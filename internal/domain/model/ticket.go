package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"ticketgate/internal/domain"
)

// Partition is one of the two top-level store namespaces a ticket can live in.
type Partition string

const (
	PartitionUnused Partition = "Unused"
	PartitionUsed   Partition = "Used"
)

// Path joins the partition and a derived key into a store path.
func (p Partition) Path(derivedKey string) string {
	return string(p) + "/" + derivedKey
}

// SplitPath is the inverse of Partition.Path.
func SplitPath(path string) (Partition, string, error) {
	head, rest, ok := strings.Cut(path, "/")
	if !ok || rest == "" {
		return "", "", fmt.Errorf("%w: malformed path %q", domain.ErrInvalidArgument, path)
	}
	p := Partition(head)
	if p != PartitionUnused && p != PartitionUsed {
		return "", "", fmt.Errorf("%w: unknown partition %q", domain.ErrInvalidArgument, head)
	}
	return p, rest, nil
}

// keySuffixLen is how many trailing characters of the ticket key take part in the derived key.
const keySuffixLen = 6

// TicketRecord represents one issued single-use ticket.
// Fields other than the four holder fields are carried opaquely in Extra.
type TicketRecord struct {
	Name   string
	Number string
	Email  string
	Key    string
	Extra  map[string]json.RawMessage
}

// DerivedKey returns "{name}'s ticket ID {last 6 chars of key}".
func (t *TicketRecord) DerivedKey() string {
	return DeriveKey(t.Name, t.Key)
}

// DeriveKey builds the store path segment for a holder name and ticket key.
// Keys shorter than six characters are used whole.
func DeriveKey(name, key string) string {
	r := []rune(key)
	if len(r) > keySuffixLen {
		r = r[len(r)-keySuffixLen:]
	}
	return fmt.Sprintf("%s's ticket ID %s", name, string(r))
}

// Validate checks the fields required to locate the ticket in the store.
func (t *TicketRecord) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(t.Key) == "" {
		return fmt.Errorf("%w: key is required", domain.ErrInvalidArgument)
	}
	return nil
}

const (
	fieldName   = "name"
	fieldNumber = "number"
	fieldEmail  = "email"
	fieldKey    = "key"
)

func (t TicketRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(t.Extra)+4)
	for k, v := range t.Extra {
		out[k] = v
	}
	for k, v := range map[string]string{
		fieldName:   t.Name,
		fieldNumber: t.Number,
		fieldEmail:  t.Email,
		fieldKey:    t.Key,
	} {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = b
	}
	return json.Marshal(out)
}

func (t *TicketRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("ticket record must be a JSON object")
	}

	var rec TicketRecord
	var err error
	if rec.Name, err = stringField(raw, fieldName, false); err != nil {
		return err
	}
	if rec.Key, err = stringField(raw, fieldKey, false); err != nil {
		return err
	}
	if rec.Number, err = stringField(raw, fieldNumber, true); err != nil {
		return err
	}
	if rec.Email, err = stringField(raw, fieldEmail, true); err != nil {
		return err
	}
	for _, k := range []string{fieldName, fieldNumber, fieldEmail, fieldKey} {
		delete(raw, k)
	}
	if len(raw) > 0 {
		rec.Extra = raw
	}
	*t = rec
	return nil
}

// stringField reads a string field; numeric values are accepted as their literal text when lenient.
func stringField(raw map[string]json.RawMessage, name string, lenient bool) (string, error) {
	v, ok := raw[name]
	if !ok {
		return "", nil
	}
	v = bytes.TrimSpace(v)
	if bytes.Equal(v, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	if lenient {
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			return n.String(), nil
		}
	}
	return "", fmt.Errorf("field %q must be a string", name)
}
