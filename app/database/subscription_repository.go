package database

import (
	"fmt"
	"time"
)

// SQLSubscriptionRepository handles database operations for destination setups
type SQLSubscriptionRepository struct {
	db *DB
}

func NewSubscriptionRepository(db *DB) *SQLSubscriptionRepository {
	return &SQLSubscriptionRepository{db: db}
}

func (r *SQLSubscriptionRepository) ListByCategory(category string) ([]Subscription, error) {
	rows, err := r.db.Query(`
		SELECT id, guild_id, category, channel_id, blacklist, created_at, updated_at
		FROM subscriptions
		WHERE category = ?
		ORDER BY guild_id ASC
	`, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var s Subscription
		var createdAt, updatedAt int64
		if err := rows.Scan(&s.ID, &s.GuildID, &s.Category, &s.ChannelID,
			&s.Blacklist, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription row: %w", err)
		}
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscription rows: %w", err)
	}
	return subs, nil
}

func (r *SQLSubscriptionRepository) Upsert(guildID, category, channelID, blacklist string) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT INTO subscriptions (guild_id, category, channel_id, blacklist, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (guild_id, category) DO UPDATE SET
			channel_id = excluded.channel_id,
			blacklist = excluded.blacklist,
			updated_at = excluded.updated_at
	`, guildID, category, channelID, blacklist, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (r *SQLSubscriptionRepository) Delete(guildID, category string) error {
	_, err := r.db.Exec(`DELETE FROM subscriptions WHERE guild_id = ? AND category = ?`, guildID, category)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

// DeleteByGuild removes every subscription for a guild, used when the bot is
// removed from it.
func (r *SQLSubscriptionRepository) DeleteByGuild(guildID string) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM subscriptions WHERE guild_id = ?`, guildID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete guild subscriptions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
