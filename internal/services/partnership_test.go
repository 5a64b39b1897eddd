package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"timelock-backend/internal/models"
)

func TestPartnership_RequestAcceptScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser(t, "u1", "AAAAAA")
	env.addUser(t, "u2", "BBBBBB")

	p, err := env.partnerships.SendRequest(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	if p.Status != models.StatusPending || p.UserAID != "u1" || p.UserBID != "u2" {
		t.Fatalf("request = %+v", p)
	}

	sent, err := env.partnerships.GetSentRequest(ctx, "u1")
	if err != nil || sent == nil || sent.ID != p.ID {
		t.Fatalf("sent request = %+v, %v", sent, err)
	}
	pending, err := env.partnerships.GetPendingRequest(ctx, "u2")
	if err != nil || pending == nil || pending.ID != p.ID {
		t.Fatalf("pending request = %+v, %v", pending, err)
	}
	if none, err := env.partnerships.GetPendingRequest(ctx, "u1"); err != nil || none != nil {
		t.Fatalf("requester pending = %+v, %v", none, err)
	}

	for _, id := range []string{"u1", "u2"} {
		partner, err := env.partnerships.GetPartnerID(ctx, id)
		if err != nil || partner != "" {
			t.Fatalf("partner of %s before accept = %q, %v", id, partner, err)
		}
	}

	relationshipDate := models.NewDate(2024, time.January, 1)
	if _, err := env.partnerships.AcceptRequest(ctx, "u2", p.ID, relationshipDate); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if partner, err := env.partnerships.GetPartnerID(ctx, "u1"); err != nil || partner != "u2" {
		t.Fatalf("partner of u1 = %q, %v", partner, err)
	}
	if partner, err := env.partnerships.GetPartnerID(ctx, "u2"); err != nil || partner != "u1" {
		t.Fatalf("partner of u2 = %q, %v", partner, err)
	}

	stats, err := env.partnerships.GetRelationshipStats(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.RelationshipDate == nil || stats.RelationshipDate.String() != "2024-01-01" {
		t.Fatalf("relationship date = %v", stats.RelationshipDate)
	}
	if got := env.partnerships.DaysTogether(stats); got != 161 {
		t.Fatalf("days together = %d, want 161", got)
	}

	if sent, err := env.partnerships.GetSentRequest(ctx, "u1"); err != nil || sent != nil {
		t.Fatalf("sent request after accept = %+v, %v", sent, err)
	}

	want := []string{EventPartnershipRequested, EventPartnershipAccepted}
	if got := env.events.Types(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestPartnership_SendRequestErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		env.addUser(t, u, "CODE"+u[1:]+"X")
	}

	if _, err := env.partnerships.SendRequest(ctx, "u1", "u1"); !errors.Is(err, models.ErrSelfPair) {
		t.Fatalf("self pair err = %v", err)
	}
	if _, err := env.partnerships.SendRequest(ctx, "u1", "nobody"); !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("unknown user err = %v", err)
	}

	if _, err := env.partnerships.SendRequest(ctx, "u1", "u2"); err != nil {
		t.Fatalf("send request: %v", err)
	}
	if _, err := env.partnerships.SendRequest(ctx, "u1", "u3"); !errors.Is(err, models.ErrAlreadyPaired) {
		t.Fatalf("second request by sender err = %v", err)
	}
	if _, err := env.partnerships.SendRequest(ctx, "u2", "u3"); !errors.Is(err, models.ErrAlreadyPaired) {
		t.Fatalf("request by recipient of pending err = %v", err)
	}
	if _, err := env.partnerships.SendRequest(ctx, "u3", "u1"); !errors.Is(err, models.ErrPartnerAlreadyPaired) {
		t.Fatalf("request to paired user err = %v", err)
	}
	if _, err := env.partnerships.SendRequest(ctx, "u3", "u4"); err != nil {
		t.Fatalf("independent pair: %v", err)
	}
}

func TestPartnership_SendRequestByCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser(t, "u1", "AAAAAA")
	env.addUser(t, "u2", "BBBBBB")

	if _, err := env.partnerships.SendRequestByCode(ctx, "u1", "BBB"); !errors.Is(err, models.ErrInvalidCode) {
		t.Fatalf("short code err = %v", err)
	}
	if _, err := env.partnerships.SendRequestByCode(ctx, "u1", "ZZZZZZ"); !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("unknown code err = %v", err)
	}
	if _, err := env.partnerships.SendRequestByCode(ctx, "u1", "AAAAAA"); !errors.Is(err, models.ErrSelfPair) {
		t.Fatalf("own code err = %v", err)
	}

	p, err := env.partnerships.SendRequestByCode(ctx, "u1", " bbbbbb ")
	if err != nil {
		t.Fatalf("send by code: %v", err)
	}
	if p.UserBID != "u2" {
		t.Fatalf("recipient = %s", p.UserBID)
	}
}

func TestPartnership_AcceptRules(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser(t, "u1", "AAAAAA")
	env.addUser(t, "u2", "BBBBBB")

	p, err := env.partnerships.SendRequest(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	today := env.cal.Today()

	if _, err := env.partnerships.AcceptRequest(ctx, "u2", "missing", today); !errors.Is(err, models.ErrPartnershipNotFound) {
		t.Fatalf("missing err = %v", err)
	}
	if _, err := env.partnerships.AcceptRequest(ctx, "u1", p.ID, today); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("accept by requester err = %v", err)
	}
	if _, err := env.partnerships.AcceptRequest(ctx, "u2", p.ID, today.AddDays(1)); !errors.Is(err, models.ErrFutureDate) {
		t.Fatalf("future date err = %v", err)
	}

	accepted, err := env.partnerships.AcceptRequest(ctx, "u2", p.ID, today)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !accepted.IsAccepted() || *accepted.RelationshipDate != today {
		t.Fatalf("accepted = %+v", accepted)
	}

	if _, err := env.partnerships.AcceptRequest(ctx, "u2", p.ID, today); !errors.Is(err, models.ErrAlreadyAccepted) {
		t.Fatalf("second accept err = %v", err)
	}

	stored := env.partnership(t, p.ID)
	if *stored.RelationshipDate != today {
		t.Fatalf("relationship date changed to %s", stored.RelationshipDate)
	}
}

func TestPartnership_CancelRules(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser(t, "u1", "AAAAAA")
	env.addUser(t, "u2", "BBBBBB")
	env.addUser(t, "u3", "CCCCCC")

	p, err := env.partnerships.SendRequest(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("send request: %v", err)
	}

	if err := env.partnerships.CancelRequest(ctx, "u3", p.ID); !errors.Is(err, models.ErrNotMember) {
		t.Fatalf("outsider cancel err = %v", err)
	}

	// Recipient declines.
	if err := env.partnerships.CancelRequest(ctx, "u2", p.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if err := env.partnerships.CancelRequest(ctx, "u2", p.ID); !errors.Is(err, models.ErrPartnershipNotFound) {
		t.Fatalf("second decline err = %v", err)
	}
	state, err := env.partnerships.GetPairingState(ctx, "u1")
	if err != nil || state.State != models.StateUnpaired {
		t.Fatalf("state after decline = %+v, %v", state, err)
	}

	// Requester cancels, and both are free again.
	p, err = env.partnerships.SendRequest(ctx, "u2", "u1")
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if err := env.partnerships.CancelRequest(ctx, "u2", p.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	accepted := env.pair(t, "u1", "u2", env.cal.Today())
	if err := env.partnerships.CancelRequest(ctx, "u1", accepted.ID); !errors.Is(err, models.ErrAlreadyAccepted) {
		t.Fatalf("cancel accepted err = %v", err)
	}
	if partner, err := env.partnerships.GetPartnerID(ctx, "u1"); err != nil || partner != "u2" {
		t.Fatalf("partner after refused cancel = %q, %v", partner, err)
	}
}

func TestPartnership_PairingState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser(t, "u1", "AAAAAA")
	env.addUser(t, "u2", "BBBBBB")

	check := func(user string, want models.PairingState, wantPartner string) {
		t.Helper()
		got, err := env.partnerships.GetPairingState(ctx, user)
		if err != nil {
			t.Fatalf("pairing state %s: %v", user, err)
		}
		if got.State != want || got.PartnerID != wantPartner {
			t.Fatalf("pairing state %s = %s/%q, want %s/%q", user, got.State, got.PartnerID, want, wantPartner)
		}
	}

	check("u1", models.StateUnpaired, "")

	p, err := env.partnerships.SendRequest(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	check("u1", models.StateRequestSent, "")
	check("u2", models.StateRequestReceived, "")

	if _, err := env.partnerships.AcceptRequest(ctx, "u2", p.ID, env.cal.Today()); err != nil {
		t.Fatalf("accept: %v", err)
	}
	check("u1", models.StatePaired, "u2")
	check("u2", models.StatePaired, "u1")
}

func TestPartnership_StatsCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	unpaired, err := env.partnerships.GetRelationshipStats(ctx, "nobody")
	if err != nil {
		t.Fatalf("unpaired stats: %v", err)
	}
	if unpaired.TotalMessages != 0 || unpaired.CurrentStreak != 0 || unpaired.RelationshipDate != nil {
		t.Fatalf("unpaired stats = %+v", unpaired)
	}
	if env.partnerships.DaysTogether(unpaired) != 0 {
		t.Fatalf("unpaired days together != 0")
	}

	env.addUser(t, "u1", "AAAAAA")
	env.addUser(t, "u2", "BBBBBB")
	p := env.pair(t, "u1", "u2", env.cal.Today())

	env.send(t, "u1", "u2", "one", env.cal.Today())
	stats, err := env.partnerships.GetRelationshipStats(ctx, "u2")
	if err != nil || stats.TotalMessages != 1 {
		t.Fatalf("stats = %+v, %v", stats, err)
	}
	if _, _, ok, _ := env.cache.Get(ctx, p.ID); !ok {
		t.Fatalf("stats not cached")
	}

	before := env.cache.invalidated
	env.send(t, "u2", "u1", "two", env.cal.Today())
	if env.cache.invalidated != before+1 {
		t.Fatalf("message creation did not invalidate stats")
	}

	stats, err = env.partnerships.GetRelationshipStats(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalMessages != 2 || stats.CurrentStreak != 1 {
		t.Fatalf("stats after both sent = %+v", stats)
	}
}

func TestPartnership_StatsCacheSkipsWriteRacingWithMessage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser(t, "u1", "AAAAAA")
	env.addUser(t, "u2", "BBBBBB")
	p := env.pair(t, "u1", "u2", env.cal.Today())

	var once sync.Once
	env.cache.beforeSet = func() {
		once.Do(func() {
			env.send(t, "u1", "u2", "one", env.cal.Today())
			env.send(t, "u2", "u1", "two", env.cal.Today())
		})
	}

	if _, err := env.partnerships.GetRelationshipStats(ctx, "u1"); err != nil {
		t.Fatalf("first stats: %v", err)
	}
	if _, _, ok, _ := env.cache.Get(ctx, p.ID); ok {
		t.Fatalf("stats computed before the messages were cached")
	}

	stats, err := env.partnerships.GetRelationshipStats(ctx, "u1")
	if err != nil {
		t.Fatalf("second stats: %v", err)
	}
	if stats.TotalMessages != 2 || stats.CurrentStreak != 1 {
		t.Fatalf("stats after both sent = %+v", stats)
	}
	cached, _, ok, _ := env.cache.Get(ctx, p.ID)
	if !ok || cached.CurrentStreak != 1 {
		t.Fatalf("cached stats = %+v, %v", cached, ok)
	}
}

func TestDaysTogether(t *testing.T) {
	start := models.NewDate(2024, time.January, 1)
	if got := DaysTogether(&start, models.NewDate(2024, time.January, 31)); got != 30 {
		t.Fatalf("days = %d", got)
	}
	if got := DaysTogether(&start, start.AddDays(-1)); got != 0 {
		t.Fatalf("future relationship date days = %d", got)
	}
	if got := DaysTogether(nil, start); got != 0 {
		t.Fatalf("nil days = %d", got)
	}
}
