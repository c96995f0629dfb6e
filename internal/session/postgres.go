package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
)

// postgresStore persists sessions as JSON rows. Live sessions are cached in
// memory so every update for a chat shares one *Session and its run lock;
// the table is the durable copy read on first touch after a restart.
type postgresStore struct {
	db *sqlx.DB

	mu    sync.Mutex
	cache map[int64]*Session
}

// NewPostgresStore constructs a store backed by the sessions table.
func NewPostgresStore(db *sqlx.DB) Store {
	return &postgresStore{
		db:    db,
		cache: make(map[int64]*Session),
	}
}

func (p *postgresStore) GetOrCreate(ctx context.Context, chatID int64) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sess, ok := p.cache[chatID]; ok {
		return sess, nil
	}

	var raw []byte
	err := p.db.GetContext(ctx, &raw, `SELECT data FROM sessions WHERE chat_id = $1`, chatID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		sess := NewSession(chatID)
		p.cache[chatID] = sess
		return sess, nil
	case err != nil:
		return nil, fmt.Errorf("session: load chat %d: %w", chatID, err)
	}

	sess := NewSession(chatID)
	if err := json.Unmarshal(raw, sess); err != nil {
		return nil, fmt.Errorf("session: decode chat %d: %w", chatID, err)
	}
	sess.ChatID = chatID
	if sess.CommandWindows == nil {
		sess.CommandWindows = make(map[string]*CommandWindow)
	}
	p.cache[chatID] = sess
	return sess, nil
}

func (p *postgresStore) Replace(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode chat %d: %w", s.ChatID, err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO sessions (chat_id, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chat_id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		s.ChatID, raw,
	)
	if err != nil {
		return fmt.Errorf("session: persist chat %d: %w", s.ChatID, err)
	}
	return nil
}

func (p *postgresStore) Reset(ctx context.Context, chatID int64) error {
	p.mu.Lock()
	delete(p.cache, chatID)
	p.mu.Unlock()

	if _, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("session: reset chat %d: %w", chatID, err)
	}
	return nil
}
