package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/herd-1807-capstone/api-routes/internal/auth"
	"github.com/herd-1807-capstone/api-routes/internal/shared/apperr"
	"github.com/herd-1807-capstone/api-routes/internal/shared/lock"
	"github.com/herd-1807-capstone/api-routes/internal/store"
)

func newChatService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	return NewService(st, lock.NewTable()), st
}

func seedTour(t *testing.T, st store.Store, tourID string, members ...string) {
	t.Helper()
	writes := map[string]any{
		store.Join("tours", tourID): map[string]string{"name": "Tour " + tourID},
	}
	for _, m := range members {
		writes[store.Join("tours", tourID, "members", m)] = m
		writes[store.Join("users", m)] = map[string]string{"name": "User " + m, "tour": tourID}
	}
	if err := st.AtomicUpdate(context.Background(), writes); err != nil {
		t.Fatalf("seed tour: %v", err)
	}
}

func TestPairKeyOrderIndependent(t *testing.T) {
	if PairKey("alice", "bob") != PairKey("bob", "alice") {
		t.Fatalf("pair key must not depend on argument order")
	}
	if PairKey("alice", "bob") != "alice:bob" {
		t.Fatalf("unexpected pair key: %q", PairKey("alice", "bob"))
	}
}

func TestResolveCreatesOnce(t *testing.T) {
	svc, st := newChatService(t)
	seedTour(t, st, "t1", "alice", "bob")
	ctx := context.Background()

	id, created, err := svc.Resolve(ctx, "t1", "alice", "bob")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !created || id == "" {
		t.Fatalf("first resolve should create: id=%q created=%v", id, created)
	}

	// same pair from the other side resolves to the same thread
	again, created, err := svc.Resolve(ctx, "t1", "bob", "alice")
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if created || again != id {
		t.Fatalf("second resolve should reuse %q, got %q created=%v", id, again, created)
	}

	// the conversation record and all three indexes land together
	var conv Conversation
	if err := st.Get(ctx, store.Join("tours", "t1", "conversations", id), &conv); err != nil {
		t.Fatalf("conversation doc: %v", err)
	}
	if conv.UserA != "alice" || conv.UserB != "bob" || conv.PairKey != "alice:bob" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	var indexed string
	if err := st.Get(ctx, store.Join("tours", "t1", "pairs", "alice:bob"), &indexed); err != nil || indexed != id {
		t.Fatalf("pair index: %v %q", err, indexed)
	}
	var other string
	if err := st.Get(ctx, store.Join("users", "alice", "conversations", id), &other); err != nil || other != "bob" {
		t.Fatalf("alice index: %v %q", err, other)
	}
	if err := st.Get(ctx, store.Join("users", "bob", "conversations", id), &other); err != nil || other != "alice" {
		t.Fatalf("bob index: %v %q", err, other)
	}
}

func TestResolveConcurrentBothSides(t *testing.T) {
	svc, st := newChatService(t)
	seedTour(t, st, "t1", "alice", "bob")
	ctx := context.Background()

	const workers = 16
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			id, _, err := svc.Resolve(ctx, "t1", a, b)
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	if len(seen) != 1 {
		t.Fatalf("concurrent resolution minted %d threads, want 1", len(seen))
	}

	entries, err := st.Children(ctx, store.Join("tours", "t1", "conversations"))
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("store holds %d conversations, want 1", len(entries))
	}
}

func TestResolveSeparateScopes(t *testing.T) {
	svc, st := newChatService(t)
	seedTour(t, st, "t1", "alice", "bob", "carol")
	seedTour(t, st, "t2", "alice", "bob")
	ctx := context.Background()

	ab1, _, err := svc.Resolve(ctx, "t1", "alice", "bob")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ac1, _, err := svc.Resolve(ctx, "t1", "alice", "carol")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ab2, _, err := svc.Resolve(ctx, "t2", "alice", "bob")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if ab1 == ac1 {
		t.Fatalf("different pairs must not share threads")
	}
	if ab1 == ab2 {
		t.Fatalf("same pair in different tours must not share threads")
	}
}

func TestResolveRejectsDegeneratePairs(t *testing.T) {
	svc, _ := newChatService(t)
	ctx := context.Background()

	cases := [][3]string{
		{"t1", "alice", "alice"},
		{"t1", "", "bob"},
		{"", "alice", "bob"},
	}
	for _, c := range cases {
		if _, _, err := svc.Resolve(ctx, c[0], c[1], c[2]); apperr.Code(err) != apperr.CodeInvalid {
			t.Fatalf("Resolve(%q,%q,%q) should be invalid, got %v", c[0], c[1], c[2], err)
		}
	}
}

func TestAppendMessageOrderingAndNames(t *testing.T) {
	svc, st := newChatService(t)
	seedTour(t, st, "t1", "alice", "bob")
	ctx := context.Background()

	convID, _, err := svc.Resolve(ctx, "t1", "alice", "bob")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	texts := []string{"hi", "hello", "how are you"}
	senders := []string{"alice", "bob", "alice"}
	for i, text := range texts {
		msg, err := svc.AppendMessage(ctx, "t1", convID, senders[i], text)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if msg.ID == "" || msg.Timestamp == 0 {
			t.Fatalf("message missing key or timestamp: %+v", msg)
		}
	}

	actor := auth.User{ID: "alice", Role: auth.RoleMember, Tour: "t1"}
	messages, err := svc.Messages(ctx, actor, "t1", convID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, msg := range messages {
		if msg.Text != texts[i] || msg.FromID != senders[i] {
			t.Fatalf("order lost at %d: %+v", i, msg)
		}
	}
	if messages[0].FromName != "User alice" || messages[0].ToName != "User bob" {
		t.Fatalf("display names not snapshotted: %+v", messages[0])
	}
}

func TestAppendMessageRejectsOutsider(t *testing.T) {
	svc, st := newChatService(t)
	seedTour(t, st, "t1", "alice", "bob", "mallory")
	ctx := context.Background()

	convID, _, err := svc.Resolve(ctx, "t1", "alice", "bob")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, err = svc.AppendMessage(ctx, "t1", convID, "mallory", "let me in")
	if apperr.Code(err) != apperr.CodeInvalidParticipant {
		t.Fatalf("expected invalid_participant, got %v", err)
	}

	_, err = svc.AppendMessage(ctx, "t1", "no-such-conv", "alice", "hi")
	if apperr.Code(err) != apperr.CodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestSendGuardsAndResolves(t *testing.T) {
	svc, st := newChatService(t)
	seedTour(t, st, "t1", "alice", "bob")
	ctx := context.Background()

	alice := auth.User{ID: "alice", Role: auth.RoleMember, Tour: "t1"}
	convID, msg, err := svc.Send(ctx, alice, "t1", "bob", "hi bob")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if convID == "" || msg.Text != "hi bob" || msg.ToID != "bob" {
		t.Fatalf("unexpected send result: %q %+v", convID, msg)
	}

	// the reply lands in the same thread
	bob := auth.User{ID: "bob", Role: auth.RoleMember, Tour: "t1"}
	convID2, _, err := svc.Send(ctx, bob, "t1", "alice", "hi alice")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if convID2 != convID {
		t.Fatalf("reply minted a second thread: %q vs %q", convID2, convID)
	}

	stranger := auth.User{ID: "zoe", Role: auth.RoleMember}
	if _, _, err := svc.Send(ctx, stranger, "t1", "bob", "hi"); apperr.Code(err) != apperr.CodeForbidden {
		t.Fatalf("non-member send should be forbidden, got %v", err)
	}

	if _, _, err := svc.Send(ctx, alice, "ghost-tour", "bob", "hi"); apperr.Code(err) != apperr.CodeNotFound {
		t.Fatalf("send into missing tour should be not_found, got %v", err)
	}

	if _, _, err := svc.Send(ctx, alice, "t1", "nobody", "hi"); apperr.Code(err) != apperr.CodeNotFound {
		t.Fatalf("send to missing user should be not_found, got %v", err)
	}
}

func TestMessagesAccessControl(t *testing.T) {
	svc, st := newChatService(t)
	seedTour(t, st, "t1", "alice", "bob", "carol", "admin")
	ctx := context.Background()

	if err := st.AtomicUpdate(ctx, map[string]any{
		store.Join("users", "admin"): store.Patch{"role": "admin"},
	}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	alice := auth.User{ID: "alice", Role: auth.RoleMember, Tour: "t1"}
	convID, _, err := svc.Send(ctx, alice, "t1", "bob", "secret")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	carol := auth.User{ID: "carol", Role: auth.RoleMember, Tour: "t1"}
	if _, err := svc.Messages(ctx, carol, "t1", convID); apperr.Code(err) != apperr.CodeInvalidParticipant {
		t.Fatalf("third member must not read the thread, got %v", err)
	}

	admin := auth.User{ID: "admin", Role: auth.RoleAdmin, Tour: "t1"}
	messages, err := svc.Messages(ctx, admin, "t1", convID)
	if err != nil || len(messages) != 1 {
		t.Fatalf("admin read: %v %d", err, len(messages))
	}

	if _, err := svc.Messages(ctx, alice, "t1", "ghost"); apperr.Code(err) != apperr.CodeNotFound {
		t.Fatalf("missing conversation should be not_found, got %v", err)
	}
}
