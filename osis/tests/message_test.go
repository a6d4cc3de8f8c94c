package tests

import (
	"errors"
	"testing"
)

func TestMessageLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	// The contact form is public.
	anon := env.newClient()
	err := anon.sendMessage("Budi", "budi@mail.com", "Pendaftaran", "Bagaimana cara mendaftar OSIS?")
	if err != nil {
		t.Fatal(err)
	}

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	messages, err := admin.listMessages("status=unread")
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 unread message, got %d", len(messages))
	}
	messageId := messages[0].Id

	message, err := admin.getMessage(messageId)
	if err != nil {
		t.Fatal(err)
	}
	if message.Status != "read" {
		t.Fatalf("first view should mark message read, got status %v", message.Status)
	}

	if err := admin.updateMessageStatus(messageId, "archived"); err != nil {
		t.Fatal(err)
	}

	if err := admin.updateMessageStatus(messageId, "unread"); !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("expected archived message restore to be rejected, got %v", err)
	}
	if err := admin.updateMessageStatus(messageId, "read"); !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("expected archived message restore to be rejected, got %v", err)
	}

	if err := admin.Delete("/messages/" + messageId).Do(nil); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.getMessage(messageId); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestMessageReadAuditedExactlyOnce(t *testing.T) {
	env := setupTestEnv(t)

	anon := env.newClient()
	if err := anon.sendMessage("Sari", "sari@mail.com", "Saran", "Tolong adakan lomba futsal"); err != nil {
		t.Fatal(err)
	}

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	messages, err := admin.listMessages("")
	if err != nil {
		t.Fatal(err)
	}
	messageId := messages[0].Id

	for i := 0; i < 3; i++ {
		if _, err := admin.getMessage(messageId); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := env.auditEntries("read_message")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 read_message audit entry, got %d", len(entries))
	}
}

func TestMessageCreateValidation(t *testing.T) {
	env := setupTestEnv(t)

	anon := env.newClient()
	err := anon.sendMessage("", "not-an-email", "", "")
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestMessageSearchAndStatistics(t *testing.T) {
	env := setupTestEnv(t)

	anon := env.newClient()
	if err := anon.sendMessage("Budi", "budi@mail.com", "Futsal", "lomba futsal"); err != nil {
		t.Fatal(err)
	}
	if err := anon.sendMessage("Sari", "sari@mail.com", "Paskibra", "latihan paskibra"); err != nil {
		t.Fatal(err)
	}

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	found, err := admin.listMessages("search=futsal")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Subject != "Futsal" {
		t.Fatalf("unexpected search result: %+v", found)
	}

	var stats struct {
		Total  int64 `json:"total"`
		Unread int64 `json:"unread"`
	}
	if err := admin.Get("/messages/statistics").Do(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.Unread != 2 {
		t.Fatalf("unexpected statistics: %+v", stats)
	}
}
