package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"newsherald/app/render"
	"newsherald/app/source"
)

// SQLNewsRepository handles database operations for news items
type SQLNewsRepository struct {
	db *DB
}

func NewNewsRepository(db *DB) *SQLNewsRepository {
	return &SQLNewsRepository{db: db}
}

// FindByKey looks an item up by its natural key. Returns nil when the item
// has not been seen before.
func (r *SQLNewsRepository) FindByKey(category, title, normalizedDate string) (*NewsItem, error) {
	row := r.db.QueryRow(`
		SELECT id, category, title, normalized_date, link, tag, description,
		       body_json, extras_json, created_at, updated_at
		FROM news_items
		WHERE category = ? AND title = ? AND normalized_date = ?
	`, category, title, normalizedDate)

	item, err := scanNewsItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find news item: %w", err)
	}
	return item, nil
}

func (r *SQLNewsRepository) Insert(item *NewsItem) (int64, error) {
	bodyJSON, err := marshalBody(item.Body)
	if err != nil {
		return 0, err
	}
	extrasJSON, err := marshalExtras(item.Extras)
	if err != nil {
		return 0, err
	}

	now := time.Now().Unix()
	res, err := r.db.Exec(`
		INSERT INTO news_items (category, title, normalized_date, link, tag,
		                        description, body_json, extras_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.Category, item.Title, item.NormalizedDate, item.Link, item.Tag,
		item.Description, bodyJSON, extrasJSON, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert news item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	return id, nil
}

func (r *SQLNewsRepository) UpdateDescription(id int64, description string, body []render.BodyBlock) error {
	bodyJSON, err := marshalBody(body)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		UPDATE news_items
		SET description = ?, body_json = ?, updated_at = ?
		WHERE id = ?
	`, description, bodyJSON, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update news description: %w", err)
	}
	return nil
}

func (r *SQLNewsRepository) UpdateExtras(id int64, extras source.Extras) error {
	extrasJSON, err := marshalExtras(extras)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		UPDATE news_items
		SET extras_json = ?, updated_at = ?
		WHERE id = ?
	`, extrasJSON, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update news extras: %w", err)
	}
	return nil
}

func (r *SQLNewsRepository) CountByCategory() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT category, COUNT(*) FROM news_items GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to count news items: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[category] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating count rows: %w", err)
	}
	return counts, nil
}

func scanNewsItem(row *sql.Row) (*NewsItem, error) {
	var item NewsItem
	var bodyJSON, extrasJSON sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&item.ID, &item.Category, &item.Title, &item.NormalizedDate,
		&item.Link, &item.Tag, &item.Description, &bodyJSON, &extrasJSON,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if bodyJSON.Valid && bodyJSON.String != "" {
		if err := json.Unmarshal([]byte(bodyJSON.String), &item.Body); err != nil {
			return nil, fmt.Errorf("failed to decode body blocks: %w", err)
		}
	}
	if extrasJSON.Valid && extrasJSON.String != "" {
		if err := json.Unmarshal([]byte(extrasJSON.String), &item.Extras); err != nil {
			return nil, fmt.Errorf("failed to decode extras: %w", err)
		}
	}

	item.CreatedAt = time.Unix(createdAt, 0).UTC()
	item.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &item, nil
}

func marshalBody(body []render.BodyBlock) (sql.NullString, error) {
	if len(body) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode body blocks: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func marshalExtras(extras source.Extras) (sql.NullString, error) {
	if extras.IsZero() {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(extras)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode extras: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
