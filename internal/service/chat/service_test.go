package chat_test

import (
	"errors"
	"strings"
	"testing"

	chatmodel "github.com/mviana/docchat/backend/internal/model/chat"
	"github.com/mviana/docchat/backend/internal/model/document"
	"github.com/mviana/docchat/backend/internal/persist"
	chat "github.com/mviana/docchat/backend/internal/service/chat"
)

func TestFreshInstallBootstrapsOneConversation(t *testing.T) {
	mirror := persist.NewMemory(nil)
	svc := chat.NewService(mirror)

	conversations := svc.List()
	if len(conversations) != 1 {
		t.Fatalf("expected exactly one conversation, got %d", len(conversations))
	}
	if conversations[0].Title != chatmodel.DefaultTitle {
		t.Fatalf("expected default title, got %q", conversations[0].Title)
	}
	if len(conversations[0].Messages) != 0 {
		t.Fatal("expected empty messages on fresh install")
	}
	if svc.ActiveID() != conversations[0].ID {
		t.Fatal("expected the bootstrapped conversation to be active")
	}
	if mirror.Saves == 0 {
		t.Fatal("expected the bootstrap to persist")
	}
}

func TestLoadRestoresStoredCollection(t *testing.T) {
	first := chatmodel.NewConversation()
	first.Title = "restored"
	second := chatmodel.NewConversation()
	mirror := persist.NewMemory([]chatmodel.Conversation{first, second})

	svc := chat.NewService(mirror)

	conversations := svc.List()
	if len(conversations) != 2 {
		t.Fatalf("expected two conversations, got %d", len(conversations))
	}
	if conversations[0].Title != "restored" {
		t.Fatalf("unexpected title %q", conversations[0].Title)
	}
	if svc.ActiveID() != first.ID {
		t.Fatal("expected the first stored conversation to be active")
	}
}

func TestCreateAppendsAndActivates(t *testing.T) {
	svc := chat.NewService(persist.NewMemory(nil))

	conv := svc.Create()
	if svc.ActiveID() != conv.ID {
		t.Fatal("expected the new conversation to become active")
	}
	if got := len(svc.List()); got != 2 {
		t.Fatalf("expected two conversations, got %d", got)
	}
}

func TestDeleteOnlyConversationSynthesizesFresh(t *testing.T) {
	svc := chat.NewService(persist.NewMemory(nil))
	original := svc.ActiveID()

	svc.Delete(original)

	conversations := svc.List()
	if len(conversations) != 1 {
		t.Fatalf("expected exactly one conversation, got %d", len(conversations))
	}
	if conversations[0].ID == original {
		t.Fatal("expected a synthesized conversation, got the deleted one")
	}
	if len(conversations[0].Messages) != 0 {
		t.Fatal("expected the synthesized conversation to be empty")
	}
	if svc.ActiveID() != conversations[0].ID {
		t.Fatal("expected the synthesized conversation to be active")
	}
}

func TestDeleteActiveMovesToFirstRemaining(t *testing.T) {
	svc := chat.NewService(persist.NewMemory(nil))
	first := svc.ActiveID()
	second := svc.Create()

	svc.Delete(second.ID)

	if svc.ActiveID() != first {
		t.Fatalf("expected active to move to %s, got %s", first, svc.ActiveID())
	}
}

func TestDeleteInactiveKeepsActive(t *testing.T) {
	svc := chat.NewService(persist.NewMemory(nil))
	first := svc.ActiveID()
	second := svc.Create()

	svc.Delete(first)

	if svc.ActiveID() != second.ID {
		t.Fatal("expected active reference to stay on the surviving conversation")
	}
}

func TestDeleteUnknownIsNoOp(t *testing.T) {
	mirror := persist.NewMemory(nil)
	svc := chat.NewService(mirror)
	savesBefore := mirror.Saves

	svc.Delete("missing")

	if len(svc.List()) != 1 {
		t.Fatal("expected collection unchanged")
	}
	if mirror.Saves != savesBefore {
		t.Fatal("expected no persistence for a no-op delete")
	}
}

func TestSelectUnknownIsNoOp(t *testing.T) {
	svc := chat.NewService(persist.NewMemory(nil))
	active := svc.ActiveID()

	if svc.Select("missing") {
		t.Fatal("expected select of unknown id to fail")
	}
	if svc.ActiveID() != active {
		t.Fatal("expected active reference unchanged")
	}
}

func TestAppendUserMessageValidation(t *testing.T) {
	svc := chat.NewService(persist.NewMemory(nil))

	if err := svc.AppendUserMessage(svc.ActiveID(), "   "); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if err := svc.AppendUserMessage("missing", "Hello"); !errors.Is(err, chat.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestFirstUserMessageFreezesTitle(t *testing.T) {
	svc := chat.NewService(persist.NewMemory(nil))
	id := svc.ActiveID()

	if err := svc.AppendUserMessage(id, "What is the capital of France?"); err != nil {
		t.Fatalf("AppendUserMessage err: %v", err)
	}

	conv, _ := svc.Get(id)
	if conv.Title != "What is the capital of France?" {
		t.Fatalf("unexpected title %q", conv.Title)
	}

	if err := svc.CommitAssistantMessage(id, "Paris.", nil); err != nil {
		t.Fatalf("CommitAssistantMessage err: %v", err)
	}
	if err := svc.AppendUserMessage(id, "And of Portugal?"); err != nil {
		t.Fatalf("AppendUserMessage err: %v", err)
	}

	after, _ := svc.Get(id)
	if after.Title != conv.Title {
		t.Fatalf("title changed from %q to %q", conv.Title, after.Title)
	}
}

func TestLongFirstMessageTruncatesTitle(t *testing.T) {
	svc := chat.NewService(persist.NewMemory(nil))
	id := svc.ActiveID()
	input := strings.Repeat("x", 40)

	if err := svc.AppendUserMessage(id, input); err != nil {
		t.Fatalf("AppendUserMessage err: %v", err)
	}

	conv, _ := svc.Get(id)
	if conv.Title != strings.Repeat("x", 30)+"..." {
		t.Fatalf("unexpected title %q", conv.Title)
	}
}

func TestCommitStoresDocumentSnapshot(t *testing.T) {
	svc := chat.NewService(persist.NewMemory(nil))
	id := svc.ActiveID()

	if err := svc.AppendUserMessage(id, "What is the total?"); err != nil {
		t.Fatalf("AppendUserMessage err: %v", err)
	}
	snapshot := []document.Document{{ID: "d1", Name: "invoice.txt", Content: "Invoice #42"}}
	if err := svc.CommitAssistantMessage(id, "The total is 42.", snapshot); err != nil {
		t.Fatalf("CommitAssistantMessage err: %v", err)
	}

	conv, _ := svc.Get(id)
	if len(conv.Messages) != 2 {
		t.Fatalf("expected two messages, got %d", len(conv.Messages))
	}
	if conv.Messages[0].Role != chatmodel.RoleUser || conv.Messages[1].Role != chatmodel.RoleAssistant {
		t.Fatal("unexpected message roles")
	}
	if len(conv.Documents) != 1 || conv.Documents[0].Content != "Invoice #42" {
		t.Fatalf("unexpected document snapshot: %+v", conv.Documents)
	}
}

func TestSaveFailureDoesNotBlockMutation(t *testing.T) {
	mirror := persist.NewMemory(nil)
	svc := chat.NewService(mirror)

	mirror.SaveErr = errors.New("disk full")
	conv := svc.Create()

	if _, ok := svc.Get(conv.ID); !ok {
		t.Fatal("expected the mutation to stand despite the save failure")
	}
	if svc.Degraded() {
		t.Fatal("one failure should not yet report degraded durability")
	}

	svc.Create()
	svc.Create()
	if !svc.Degraded() {
		t.Fatal("expected degraded durability after repeated save failures")
	}

	mirror.SaveErr = nil
	svc.Create()
	if svc.Degraded() {
		t.Fatal("expected a successful save to clear the degraded state")
	}
}
