package storage

import (
	"path/filepath"
	"testing"

	"github.com/oak/crypto-sentinel/internal/model"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStorage(dbPath)
	if err != nil {
		t.Fatalf("NewStorage() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestChatMessageRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	for i, role := range []string{"user", "assistant", "user", "assistant"} {
		_, err := s.SaveChatMessage(model.ChatMessage{
			ChatID:      "chat-1",
			Role:        role,
			Content:     "message",
			RoundNumber: i/2 + 1,
		})
		if err != nil {
			t.Fatalf("SaveChatMessage() error = %v", err)
		}
	}

	count, err := s.GetChatRoundCount("chat-1")
	if err != nil {
		t.Fatalf("GetChatRoundCount() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("GetChatRoundCount() = %d, want 2", count)
	}

	history, err := s.GetChatHistory("chat-1", 10)
	if err != nil {
		t.Fatalf("GetChatHistory() error = %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("GetChatHistory() returned %d messages, want 4", len(history))
	}
	if history[0].RoundNumber > history[len(history)-1].RoundNumber {
		t.Fatalf("GetChatHistory() not in chronological order")
	}
}

func TestArchiveChatMessages(t *testing.T) {
	s := newTestStorage(t)

	for round := 1; round <= 4; round++ {
		if _, err := s.SaveChatMessage(model.ChatMessage{ChatID: "chat-2", Role: "user", Content: "x", RoundNumber: round}); err != nil {
			t.Fatalf("SaveChatMessage() error = %v", err)
		}
	}

	if err := s.ArchiveChatMessages("chat-2", 1, 4); err != nil {
		t.Fatalf("ArchiveChatMessages() error = %v", err)
	}

	rows, err := s.GetChatMessagesByRounds("chat-2", 1, 4)
	if err != nil {
		t.Fatalf("GetChatMessagesByRounds() error = %v", err)
	}
	for _, row := range rows {
		if !row.Archived {
			t.Fatalf("expected row %d to be archived", row.ID)
		}
	}

	history, err := s.GetChatHistory("chat-2", 10)
	if err != nil {
		t.Fatalf("GetChatHistory() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("GetChatHistory() returned %d rows, want 0 archived rows excluded", len(history))
	}
}

func TestAnalysisRecords(t *testing.T) {
	s := newTestStorage(t)

	for i := 0; i < 3; i++ {
		_, err := s.SaveAnalysisRecord(model.AnalysisRecord{
			AgentName: "首席分析师",
			Symbol:    "BTCUSDT",
			Content:   "report",
			DataType:  "chief_analysis",
		})
		if err != nil {
			t.Fatalf("SaveAnalysisRecord() error = %v", err)
		}
	}

	records, err := s.GetAnalysisRecords("chief_analysis", "首席分析师", 10)
	if err != nil {
		t.Fatalf("GetAnalysisRecords() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("GetAnalysisRecords() returned %d, want 3", len(records))
	}
}
