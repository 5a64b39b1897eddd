package events

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"timelock-backend/internal/models"
	"timelock-backend/internal/services"
)

func TestSubject(t *testing.T) {
	if got := Subject("timelock", services.EventMessageCreated); got != "timelock.message.created" {
		t.Fatalf("subject = %q", got)
	}
	if got := Subject("", services.EventStreakUpdated); got != "streak.updated" {
		t.Fatalf("subject without prefix = %q", got)
	}
}

func TestNatsPublisher_Message(t *testing.T) {
	p := NewNatsPublisher(nil, "timelock")
	unlock := models.NewDate(2024, time.June, 12)
	streak := 4

	msg, err := p.message(services.Event{
		Type:          services.EventStreakUpdated,
		PartnershipID: "p1",
		ActorID:       "u1",
		PartnerID:     "u2",
		UnlockDate:    &unlock,
		Streak:        &streak,
		OccurredAt:    time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if msg.Subject != "timelock.streak.updated" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	if msg.Header.Get("Partnership-Id") != "p1" {
		t.Fatalf("headers = %v", msg.Header)
	}

	var decoded map[string]any
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["unlock_date"] != "2024-06-12" || decoded["streak"] != float64(4) {
		t.Fatalf("payload = %s", msg.Data)
	}
	if _, ok := decoded["message_id"]; ok {
		t.Fatalf("empty message_id not omitted: %s", msg.Data)
	}
	if strings.Contains(string(msg.Data), "content") {
		t.Fatalf("payload carries content: %s", msg.Data)
	}
}
