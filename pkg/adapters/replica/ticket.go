package replica

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aretw0/furrow/pkg/core"
)

const ticketPrefix = "furrow"

// Ticket grants a peer the ability to join and sync one document.
type Ticket struct {
	Doc   string   `json:"doc"`
	Node  string   `json:"node"`
	Addrs []string `json:"addrs"`
}

// String encodes the ticket as a copy-pasteable token.
func (t Ticket) String() string {
	raw, _ := json.Marshal(t)
	return ticketPrefix + base64.RawURLEncoding.EncodeToString(raw)
}

// ParseTicket decodes a token produced by Ticket.String.
func ParseTicket(s string) (Ticket, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, ticketPrefix) {
		return Ticket{}, fmt.Errorf("%w: missing %q prefix", core.ErrInvalidTicket, ticketPrefix)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(s, ticketPrefix))
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", core.ErrInvalidTicket, err)
	}
	var t Ticket
	if err := json.Unmarshal(raw, &t); err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", core.ErrInvalidTicket, err)
	}
	if _, err := uuid.Parse(t.Doc); err != nil {
		return Ticket{}, fmt.Errorf("%w: bad document id: %v", core.ErrInvalidTicket, err)
	}
	if len(t.Addrs) == 0 {
		return Ticket{}, fmt.Errorf("%w: no peer addresses", core.ErrInvalidTicket)
	}
	return t, nil
}
