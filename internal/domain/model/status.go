package model

// TicketStatus reports which partitions hold a derived key.
type TicketStatus string

const (
	TicketStatusUnused  TicketStatus = "unused"
	TicketStatusUsed    TicketStatus = "used"
	TicketStatusBoth    TicketStatus = "both" // interrupted redemption
	TicketStatusUnknown TicketStatus = "unknown"
)

// StatusOf classifies presence in the two partitions.
func StatusOf(inUnused, inUsed bool) TicketStatus {
	switch {
	case inUnused && inUsed:
		return TicketStatusBoth
	case inUnused:
		return TicketStatusUnused
	case inUsed:
		return TicketStatusUsed
	}
	return TicketStatusUnknown
}
