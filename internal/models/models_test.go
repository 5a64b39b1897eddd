package models

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPartnership_Members(t *testing.T) {
	p := &Partnership{UserAID: "u1", UserBID: "u2", Status: StatusPending}

	if !p.HasMember("u1") || !p.HasMember("u2") || p.HasMember("u3") {
		t.Fatalf("HasMember mismatch")
	}
	if p.PartnerOf("u1") != "u2" || p.PartnerOf("u2") != "u1" || p.PartnerOf("u3") != "" {
		t.Fatalf("PartnerOf mismatch")
	}
	if p.IsAccepted() {
		t.Fatalf("pending partnership reported accepted")
	}
}

func TestMessage_StateAndView(t *testing.T) {
	today := NewDate(2024, time.June, 1)
	msg := &Message{
		ID:         "m1",
		SenderID:   "u1",
		ReceiverID: "u2",
		Content:    "see you soon",
		UnlockDate: today.AddDays(1),
	}

	if got := msg.StateOn(today); got != MessageLocked {
		t.Fatalf("state today = %s", got)
	}

	receiver := msg.ViewFor("u2", today)
	if receiver.Content != "" || receiver.State != MessageLocked || receiver.Direction != DirectionReceived {
		t.Fatalf("locked receiver view = %+v", receiver)
	}

	sender := msg.ViewFor("u1", today)
	if sender.Content != msg.Content || sender.Direction != DirectionSent {
		t.Fatalf("sender view = %+v", sender)
	}

	tomorrow := today.AddDays(1)
	if got := msg.StateOn(tomorrow); got != MessageUnlockable {
		t.Fatalf("state tomorrow = %s", got)
	}
	if v := msg.ViewFor("u2", tomorrow); v.Content != msg.Content {
		t.Fatalf("unlocked receiver view hides content")
	}

	msg.Opened = true
	if got := msg.StateOn(today); got != MessageOpened {
		t.Fatalf("opened state = %s", got)
	}
}

func TestErrors_KindSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("failed to accept partnership: %w", ErrUnauthorized)

	if KindOf(wrapped) != KindAuthorization {
		t.Fatalf("kind = %s", KindOf(wrapped))
	}
	if !errors.Is(wrapped, ErrUnauthorized) {
		t.Fatalf("errors.Is lost the sentinel")
	}
	if MessageOf(wrapped) != ErrUnauthorized.Msg {
		t.Fatalf("message = %q", MessageOf(wrapped))
	}

	cause := errors.New("connection refused")
	unavailable := fmt.Errorf("failed to get user: %w", Unavailable(cause))
	if KindOf(unavailable) != KindUnavailable || !errors.Is(unavailable, cause) {
		t.Fatalf("unavailable lost kind or cause")
	}
	if Unavailable(nil) != nil {
		t.Fatalf("Unavailable(nil) != nil")
	}

	plain := errors.New("boom")
	if KindOf(plain) != KindInternal || MessageOf(plain) != "internal error" {
		t.Fatalf("plain error classified as %s %q", KindOf(plain), MessageOf(plain))
	}
}
