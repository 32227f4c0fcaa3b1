package messenger

import "time"

// webhookPayload is the Messenger Platform delivery body. Only the fields
// the controller reads are decoded.
type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID        string           `json:"id"`
		Time      int64            `json:"time"`
		Messaging []messagingEvent `json:"messaging"`
	} `json:"entry"`
}

type messagingEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Timestamp int64 `json:"timestamp"`
	Message   *struct {
		Mid    string `json:"mid"`
		Text   string `json:"text"`
		IsEcho bool   `json:"is_echo"`
	} `json:"message"`
}

// events flattens a page delivery into message events. Deliveries for other
// objects and non-message callbacks (reads, postbacks) yield nothing.
func (p *webhookPayload) events(now time.Time) []InboundEvent {
	if p.Object != "page" {
		return nil
	}

	var out []InboundEvent
	for _, entry := range p.Entry {
		for _, m := range entry.Messaging {
			if m.Message == nil || m.Sender.ID == "" {
				continue
			}
			at := now
			if m.Timestamp > 0 {
				at = time.UnixMilli(m.Timestamp)
			}
			out = append(out, InboundEvent{
				SenderID:   m.Sender.ID,
				Text:       m.Message.Text,
				MessageID:  m.Message.Mid,
				IsEcho:     m.Message.IsEcho,
				ReceivedAt: at,
			})
		}
	}
	return out
}
