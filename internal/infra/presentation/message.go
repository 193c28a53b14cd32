package presentation

import (
	"ticketgate/internal/domain/model"
	"ticketgate/internal/infra/i18n"
)

// messageKey maps an event onto its locale key.
func messageKey(ev model.Event) string {
	switch ev.Kind {
	case model.EventScanning:
		return "scanning"
	case model.EventProcessing:
		return "processing"
	case model.EventApproved:
		return "approved"
	case model.EventInvalid:
		return "invalid"
	case model.EventCancelled:
		return "cancelled"
	}
	if ev.Message == model.MsgCameraError {
		return "camera_error"
	}
	return "error"
}

// localize returns the translated message, or the event's own text without a translator.
func localize(tr *i18n.Translator, ev model.Event) string {
	if tr == nil {
		return ev.Message
	}
	key := messageKey(ev)
	if s := tr.T(key); s != key {
		return s
	}
	return ev.Message
}
