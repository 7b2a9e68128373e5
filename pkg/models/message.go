package models

import "sort"

type Message struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	Sender       string `json:"sender"`
	Content      string `json:"content"`
	// TS is the message create time (ns since epoch), assigned remotely for
	// pulled/pushed messages and locally for optimistic sends.
	TS int64 `json:"ts"`
	// SendFailed marks a locally sent message whose server acknowledgment
	// never arrived inside the watchdog window. Local-only annotation; the
	// message itself is never retried or removed because of it.
	SendFailed bool `json:"send_failed,omitempty"`
}

// SortMessages orders messages by create time, breaking identical timestamps
// by message id so consumers see a stable order across pulls.
func SortMessages(msgs []Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].TS != msgs[j].TS {
			return msgs[i].TS < msgs[j].TS
		}
		return msgs[i].ID < msgs[j].ID
	})
}

// MaxTS returns the largest create time in msgs, or 0 when msgs is empty.
func MaxTS(msgs []Message) int64 {
	var max int64
	for _, m := range msgs {
		if m.TS > max {
			max = m.TS
		}
	}
	return max
}
