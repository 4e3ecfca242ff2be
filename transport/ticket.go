package transport

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
)

// TicketPrefix marks a ginseng ticket string.
const TicketPrefix = "ginseng:"

// MaxTicketLength bounds accepted ticket strings so a hostile input cannot
// force a large decode allocation.
const MaxTicketLength = 512

// ErrBadTicket indicates a malformed or unresolvable ticket string.
var ErrBadTicket = errors.New("malformed ticket")

// ticketEncoding is unpadded lowercase base32, safe to paste anywhere.
var ticketEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Ticket locates a share: the node holding the blobs plus the content hash
// of the share manifest, enabling a receiver to find and verify a transfer
// without a central directory.
type Ticket struct {
	NodeID string
	Hash   Hash
}

// String encodes the ticket as an opaque printable string.
func (t Ticket) String() string {
	node := []byte(t.NodeID)
	payload := make([]byte, 0, 1+len(node)+len(t.Hash))
	payload = append(payload, byte(len(node)))
	payload = append(payload, node...)
	payload = append(payload, t.Hash[:]...)
	return TicketPrefix + strings.ToLower(ticketEncoding.EncodeToString(payload))
}

// ParseTicket decodes a ticket string. All malformed inputs map to
// ErrBadTicket with context.
func ParseTicket(s string) (Ticket, error) {
	if len(s) > MaxTicketLength {
		return Ticket{}, fmt.Errorf("%w: ticket too long (%d bytes)", ErrBadTicket, len(s))
	}
	if !strings.HasPrefix(s, TicketPrefix) {
		return Ticket{}, fmt.Errorf("%w: missing %q prefix", ErrBadTicket, TicketPrefix)
	}

	payload, err := ticketEncoding.DecodeString(strings.ToUpper(strings.TrimPrefix(s, TicketPrefix)))
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrBadTicket, err)
	}
	if len(payload) < 1 {
		return Ticket{}, fmt.Errorf("%w: empty payload", ErrBadTicket)
	}

	nodeLen := int(payload[0])
	if len(payload) != 1+nodeLen+len(Hash{}) {
		return Ticket{}, fmt.Errorf("%w: payload length %d inconsistent", ErrBadTicket, len(payload))
	}
	if nodeLen == 0 {
		return Ticket{}, fmt.Errorf("%w: empty node id", ErrBadTicket)
	}

	var t Ticket
	t.NodeID = string(payload[1 : 1+nodeLen])
	copy(t.Hash[:], payload[1+nodeLen:])
	return t, nil
}
