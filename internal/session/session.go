// Package session implements the per-chat conversation log: round
// numbering, an in-memory read cache, and background compression of
// old rounds into a single summary message. Grounded on
// core/session_manager.py's cache+threading.Thread(daemon=True) shape,
// translated to a mutex-guarded map and a detached goroutine.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/oak/crypto-sentinel/internal/constant"
	"github.com/oak/crypto-sentinel/internal/llm"
	"github.com/oak/crypto-sentinel/internal/logger"
	"github.com/oak/crypto-sentinel/internal/model"
	"github.com/oak/crypto-sentinel/internal/storage"
)

const compressionThreshold = 5
const summaryAgentName = "对话概要"

const summarizePromptTemplate = `请简要概括以下对话的关键信息（用户需求、已完成操作、重要结论）：

%s

用3-5句话总结核心内容。`

// Store is the session manager: it wraps storage.Storage with an
// in-memory read cache per chatId and triggers background compression.
type Store struct {
	db     *storage.Storage
	caller llm.Caller
	log    *logger.ColorLogger

	mu    sync.Mutex
	cache map[string][]model.ChatMessage
}

// New builds a session Store.
func New(db *storage.Storage, caller llm.Caller, log *logger.ColorLogger) *Store {
	return &Store{
		db:     db,
		caller: caller,
		log:    log,
		cache:  make(map[string][]model.ChatMessage),
	}
}

// GetHistory returns up to limit non-archived messages for chatId, in
// chronological order. Served from cache when present.
func (s *Store) GetHistory(chatID string, limit int) ([]model.ChatMessage, error) {
	s.mu.Lock()
	if cached, ok := s.cache[chatID]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	history, err := s.db.GetChatHistory(chatID, limit)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[chatID] = history
	s.mu.Unlock()

	return history, nil
}

// AddMessage computes the round number for role and persists the
// message, then invalidates the read cache (it will be refilled from
// storage on the next GetHistory call).
func (s *Store) AddMessage(chatID, role, content string) error {
	roundNumber, err := s.nextRound(chatID, role)
	if err != nil {
		return err
	}

	if _, err := s.db.SaveChatMessage(model.ChatMessage{
		ChatID:      chatID,
		Role:        role,
		Content:     content,
		RoundNumber: roundNumber,
	}); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, chatID)
	s.mu.Unlock()

	s.log.Info(fmt.Sprintf("会话消息已保存: chat=%s, round=%d, role=%s", chatID, roundNumber, role))
	return nil
}

func (s *Store) nextRound(chatID, role string) (int, error) {
	current, err := s.db.GetChatRoundCount(chatID)
	if err != nil {
		return 0, err
	}
	if role == constant.RoleUser {
		return current + 1, nil
	}
	if current > 0 {
		return current, nil
	}
	return 1, nil
}

// CheckAndCompress spawns a background compression task once roundCount
// reaches compressionThreshold. It never blocks the caller.
func (s *Store) CheckAndCompress(chatID string) {
	roundCount, err := s.db.GetChatRoundCount(chatID)
	if err != nil {
		s.log.Warning(fmt.Sprintf("获取轮次计数失败: %v", err))
		return
	}
	if roundCount < compressionThreshold {
		return
	}

	s.log.Info(fmt.Sprintf("触发会话压缩: chat=%s, round=%d", chatID, roundCount))
	go s.summarize(chatID, roundCount)
}

func (s *Store) summarize(chatID string, currentRound int) {
	messages, err := s.db.GetChatMessagesByRounds(chatID, 1, 4)
	if err != nil {
		s.log.Warning(fmt.Sprintf("读取待压缩消息失败: %v", err))
		return
	}
	if len(messages) == 0 {
		return
	}

	var conversation strings.Builder
	for i, m := range messages {
		if i > 0 {
			conversation.WriteString("\n")
		}
		fmt.Fprintf(&conversation, "%s: %s", m.Role, m.Content)
	}

	prompt := fmt.Sprintf(summarizePromptTemplate, conversation.String())
	summary, err := s.caller.Call(context.Background(), prompt, "", summaryAgentName)
	if err != nil {
		s.log.Warning(fmt.Sprintf("会话概要生成失败: %v", err))
		return
	}

	if _, err := s.db.SaveChatMessage(model.ChatMessage{
		ChatID:      chatID,
		Role:        constant.RoleSystem,
		Content:     "[历史对话概要] " + summary,
		RoundNumber: currentRound,
		IsSummary:   true,
	}); err != nil {
		s.log.Warning(fmt.Sprintf("保存会话概要失败: %v", err))
		return
	}

	if err := s.db.ArchiveChatMessages(chatID, 1, 4); err != nil {
		s.log.Warning(fmt.Sprintf("归档历史消息失败: %v", err))
		return
	}

	s.mu.Lock()
	delete(s.cache, chatID)
	s.mu.Unlock()

	s.log.Success(fmt.Sprintf("会话压缩完成: chat=%s", chatID))
}
