// Package storage is the sqlite-backed persistence layer, following the
// teacher's database/sql + modernc.org/sqlite idiom: a thin Storage struct
// wrapping *sql.DB, a schema created with CREATE TABLE IF NOT EXISTS, and
// manual sql.NullX handling for optional columns.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/oak/crypto-sentinel/internal/model"
)

// Storage wraps the sqlite connection and every persistence operation the
// orchestration core needs.
type Storage struct {
	db *sql.DB
}

// NewStorage opens (creating if needed) the sqlite database at dbPath and
// ensures the schema exists.
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			round_number INTEGER NOT NULL,
			is_summary INTEGER NOT NULL DEFAULT 0,
			metadata TEXT,
			archived INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_chat_id ON chat_messages(chat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_round ON chat_messages(chat_id, round_number)`,

		`CREATE TABLE IF NOT EXISTS analysis_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			agent_name TEXT NOT NULL,
			symbol TEXT,
			content TEXT NOT NULL,
			summary TEXT,
			data_type TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_records_type ON analysis_records(data_type, agent_name)`,

		`CREATE TABLE IF NOT EXISTS market_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_market_data_symbol ON market_data(symbol)`,

		`CREATE TABLE IF NOT EXISTS trigger_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			symbol TEXT,
			fired_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			detail TEXT
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

// SaveChatMessage inserts one chat message row and returns its id.
func (s *Storage) SaveChatMessage(msg model.ChatMessage) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO chat_messages (chat_id, role, content, round_number, is_summary, metadata, archived)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ChatID, msg.Role, msg.Content, msg.RoundNumber, boolToInt(msg.IsSummary), nullableString(msg.Metadata), boolToInt(msg.Archived),
	)
	if err != nil {
		return 0, fmt.Errorf("insert chat message: %w", err)
	}
	return res.LastInsertId()
}

// GetChatHistory returns up to limit non-archived messages for chatID in
// chronological order.
func (s *Storage) GetChatHistory(chatID string, limit int) ([]model.ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, chat_id, role, content, round_number, is_summary, metadata, archived, created_at
		 FROM chat_messages WHERE chat_id = ? AND archived = 0
		 ORDER BY id DESC LIMIT ?`,
		chatID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	var reversed []model.ChatMessage
	for rows.Next() {
		msg, err := scanChatMessage(rows)
		if err != nil {
			return nil, err
		}
		reversed = append(reversed, msg)
	}

	out := make([]model.ChatMessage, len(reversed))
	for i, msg := range reversed {
		out[len(reversed)-1-i] = msg
	}
	return out, nil
}

// GetChatRoundCount returns the highest round number recorded for chatID.
func (s *Storage) GetChatRoundCount(chatID string) (int, error) {
	var count sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(round_number) FROM chat_messages WHERE chat_id = ?`, chatID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("query round count: %w", err)
	}
	if !count.Valid {
		return 0, nil
	}
	return int(count.Int64), nil
}

// GetChatMessagesByRounds returns messages for chatID whose round number
// falls in [startRound, endRound].
func (s *Storage) GetChatMessagesByRounds(chatID string, startRound, endRound int) ([]model.ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, chat_id, role, content, round_number, is_summary, metadata, archived, created_at
		 FROM chat_messages WHERE chat_id = ? AND round_number BETWEEN ? AND ?
		 ORDER BY id ASC`,
		chatID, startRound, endRound,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages by round: %w", err)
	}
	defer rows.Close()

	var out []model.ChatMessage
	for rows.Next() {
		msg, err := scanChatMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// ArchiveChatMessages marks every message for chatID in [startRound,
// endRound] as archived, without deleting them.
func (s *Storage) ArchiveChatMessages(chatID string, startRound, endRound int) error {
	_, err := s.db.Exec(
		`UPDATE chat_messages SET archived = 1 WHERE chat_id = ? AND round_number BETWEEN ? AND ?`,
		chatID, startRound, endRound,
	)
	if err != nil {
		return fmt.Errorf("archive chat messages: %w", err)
	}
	return nil
}

// SaveAnalysisRecord persists one analyst output.
func (s *Storage) SaveAnalysisRecord(rec model.AnalysisRecord) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO analysis_records (timestamp, agent_name, symbol, content, summary, data_type)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		timeOrNow(rec.Timestamp), rec.AgentName, nullableString(rec.Symbol), rec.Content, nullableString(rec.Summary), rec.DataType,
	)
	if err != nil {
		return 0, fmt.Errorf("insert analysis record: %w", err)
	}
	return res.LastInsertId()
}

// GetAnalysisRecords returns the most recent limit records matching the
// given data type and, optionally, agent name (empty string matches any).
func (s *Storage) GetAnalysisRecords(dataType, agentName string, limit int) ([]model.AnalysisRecord, error) {
	query := `SELECT id, timestamp, agent_name, symbol, content, summary, data_type
	          FROM analysis_records WHERE data_type = ?`
	args := []any{dataType}
	if agentName != "" {
		query += ` AND agent_name = ?`
		args = append(args, agentName)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analysis records: %w", err)
	}
	defer rows.Close()

	var out []model.AnalysisRecord
	for rows.Next() {
		var rec model.AnalysisRecord
		var symbol, summary sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.AgentName, &symbol, &rec.Content, &summary, &rec.DataType); err != nil {
			return nil, fmt.Errorf("scan analysis record: %w", err)
		}
		rec.Symbol = symbol.String
		rec.Summary = summary.String
		out = append(out, rec)
	}
	return out, nil
}

// SaveMarketDataSnapshot persists an opaque JSON payload for a symbol.
func (s *Storage) SaveMarketDataSnapshot(symbol, payload string) error {
	_, err := s.db.Exec(`INSERT INTO market_data (symbol, payload) VALUES (?, ?)`, symbol, payload)
	if err != nil {
		return fmt.Errorf("insert market data snapshot: %w", err)
	}
	return nil
}

// SaveTriggerEvent records that a scheduled or monitor trigger fired.
func (s *Storage) SaveTriggerEvent(kind, symbol, detail string) error {
	_, err := s.db.Exec(
		`INSERT INTO trigger_events (kind, symbol, detail) VALUES (?, ?, ?)`,
		kind, nullableString(symbol), nullableString(detail),
	)
	if err != nil {
		return fmt.Errorf("insert trigger event: %w", err)
	}
	return nil
}

// GetTriggerEvents returns the most recent limit trigger events of kind.
func (s *Storage) GetTriggerEvents(kind string, limit int) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT detail FROM trigger_events WHERE kind = ? ORDER BY id DESC LIMIT ?`,
		kind, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query trigger events: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var detail sql.NullString
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("scan trigger event: %w", err)
		}
		out = append(out, detail.String)
	}
	return out, nil
}

func scanChatMessage(rows *sql.Rows) (model.ChatMessage, error) {
	var msg model.ChatMessage
	var metadata sql.NullString
	var isSummary, archived int
	var createdAt sql.NullTime

	err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &msg.RoundNumber,
		&isSummary, &metadata, &archived, &createdAt)
	if err != nil {
		return msg, fmt.Errorf("scan chat message: %w", err)
	}
	msg.IsSummary = isSummary != 0
	msg.Archived = archived != 0
	msg.Metadata = metadata.String
	if createdAt.Valid {
		msg.CreatedAt = createdAt.Time
	}
	return msg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
