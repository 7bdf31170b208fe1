package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/simplechat/convmeta/store"
)

func (d *DB) CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error) {
	metadataJSON, err := marshalMetadata(create.Metadata)
	if err != nil {
		return nil, err
	}
	if create.Version == 0 {
		create.Version = 1
	}
	if create.RowStatus == "" {
		create.RowStatus = store.Normal
	}

	fields := []string{"uid", "creator_id", "title", "metadata", "version", "created_ts", "updated_ts", "row_status"}
	args := []any{create.UID, create.CreatorID, create.Title, metadataJSON, create.Version, create.CreatedTs, create.UpdatedTs, create.RowStatus}

	stmt := `INSERT INTO conversation (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return create, nil
}

func (d *DB) GetConversation(ctx context.Context, find *store.FindConversation) (*store.Conversation, error) {
	list, err := d.ListConversations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrConversationNotFound
	}
	return list[0], nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.CreatorID != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *find.CreatorID)
	}
	if find.RowStatus != nil {
		where, args = append(where, "row_status = "+placeholder(len(args)+1)), append(args, *find.RowStatus)
	}

	query := `SELECT id, uid, creator_id, title, metadata, version, created_ts, updated_ts, row_status
		FROM conversation WHERE ` + strings.Join(where, " AND ") + ` ORDER BY updated_ts DESC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Conversation, 0)
	for rows.Next() {
		c := &store.Conversation{}
		var metadataJSON string
		if err := rows.Scan(&c.ID, &c.UID, &c.CreatorID, &c.Title, &metadataJSON, &c.Version, &c.CreatedTs, &c.UpdatedTs, &c.RowStatus); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if c.Metadata, err = unmarshalMetadata(metadataJSON); err != nil {
			return nil, err
		}
		list = append(list, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateConversationMetadata(ctx context.Context, update *store.UpdateConversationMetadata) (*store.Conversation, error) {
	set, args := []string{}, []any{}

	if update.Metadata != nil {
		metadataJSON, err := marshalMetadata(update.Metadata)
		if err != nil {
			return nil, err
		}
		set, args = append(set, "metadata = "+placeholder(len(args)+1)), append(args, metadataJSON)
	}
	if update.Title != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *update.Title)
	}
	if update.RowStatus != nil {
		set, args = append(set, "row_status = "+placeholder(len(args)+1)), append(args, *update.RowStatus)
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, update.UpdatedTs)
	set = append(set, "version = version + 1")

	args = append(args, update.ID, update.ExpectedVersion)
	// RETURNING all fields to avoid a second round trip.
	stmt := `UPDATE conversation SET ` + strings.Join(set, ", ") +
		` WHERE id = ` + placeholder(len(args)-1) + ` AND version = ` + placeholder(len(args)) +
		` RETURNING id, uid, creator_id, title, metadata, version, created_ts, updated_ts, row_status`

	result := &store.Conversation{}
	var metadataJSON string
	err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&result.ID, &result.UID, &result.CreatorID, &result.Title, &metadataJSON, &result.Version, &result.CreatedTs, &result.UpdatedTs, &result.RowStatus,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			// Distinguish a missing row from a stale version.
			var exists bool
			if checkErr := d.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM conversation WHERE id = $1)", update.ID).Scan(&exists); checkErr != nil {
				return nil, fmt.Errorf("failed to check conversation existence: %w", checkErr)
			}
			if !exists {
				return nil, store.ErrConversationNotFound
			}
			return nil, store.ErrVersionConflict
		}
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}

	if result.Metadata, err = unmarshalMetadata(metadataJSON); err != nil {
		return nil, err
	}
	return result, nil
}

func (d *DB) DeleteConversation(ctx context.Context, delete *store.DeleteConversation) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM conversation WHERE id = $1", delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return store.ErrConversationNotFound
	}
	return nil
}

func (d *DB) VacuumConversations(ctx context.Context, beforeTs int64) (int64, error) {
	result, err := d.db.ExecContext(ctx,
		"DELETE FROM conversation WHERE row_status = $1 AND updated_ts < $2",
		store.Archived, beforeTs)
	if err != nil {
		return 0, fmt.Errorf("failed to vacuum conversations: %w", err)
	}
	return result.RowsAffected()
}
