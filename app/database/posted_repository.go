package database

import (
	"fmt"
	"time"
)

// SQLPostedMessageRepository handles database operations for the ledger of
// messages already sent to destinations.
type SQLPostedMessageRepository struct {
	db *DB
}

func NewPostedMessageRepository(db *DB) *SQLPostedMessageRepository {
	return &SQLPostedMessageRepository{db: db}
}

func (r *SQLPostedMessageRepository) Insert(m *PostedMessage) error {
	_, err := r.db.Exec(`
		INSERT INTO posted_messages (category, news_item_id, guild_id, channel_id,
		                             message_id, rich_format, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (news_item_id, guild_id, channel_id) DO NOTHING
	`, m.Category, m.NewsItemID, m.GuildID, m.ChannelID, m.MessageID,
		boolToInt(m.RichFormat), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert posted message: %w", err)
	}
	return nil
}

// ListRichFormat returns the sends for one news item that can be edited in
// place. Plain-format sends are immutable and excluded.
func (r *SQLPostedMessageRepository) ListRichFormat(category string, newsItemID int64) ([]PostedMessage, error) {
	rows, err := r.db.Query(`
		SELECT id, category, news_item_id, guild_id, channel_id, message_id,
		       rich_format, created_at
		FROM posted_messages
		WHERE category = ? AND news_item_id = ? AND rich_format = 1
	`, category, newsItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list posted messages: %w", err)
	}
	defer rows.Close()

	var messages []PostedMessage
	for rows.Next() {
		var m PostedMessage
		var richFormat int
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.Category, &m.NewsItemID, &m.GuildID,
			&m.ChannelID, &m.MessageID, &richFormat, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan posted message row: %w", err)
		}
		m.RichFormat = richFormat != 0
		m.CreatedAt = time.Unix(createdAt, 0).UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posted message rows: %w", err)
	}
	return messages, nil
}

func (r *SQLPostedMessageRepository) DeleteByGuild(guildID string) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM posted_messages WHERE guild_id = ?`, guildID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete guild posted messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// DeleteByMessage drops the ledger row for a message deleted on the platform
// side, so no further update jobs target it.
func (r *SQLPostedMessageRepository) DeleteByMessage(channelID, messageID string) error {
	_, err := r.db.Exec(`DELETE FROM posted_messages WHERE channel_id = ? AND message_id = ?`, channelID, messageID)
	if err != nil {
		return fmt.Errorf("failed to delete posted message: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
