package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/drink-tracker/internal/apperror"
	"github.com/sakif/drink-tracker/internal/assemble"
	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/query"
	"github.com/sakif/drink-tracker/internal/repository"
)

var _ repository.TagRepository = (*Store)(nil)

// taggableTable is where one TaggableKind lives and how it links to tags.
type taggableTable struct {
	table    string
	idColumn string
	link     query.Association
}

var taggables = map[model.TaggableKind]taggableTable{
	model.IngredientKind: {table: "ingredients", idColumn: "ingredient_id", link: query.IngredientTags},
	model.DrinkKind:      {table: "drinks", idColumn: "drink_id", link: query.DrinkTags},
}

func taggableFor(kind model.TaggableKind) (taggableTable, error) {
	t, ok := taggables[kind]
	if !ok {
		return taggableTable{}, apperror.ValidationFailed("kind", fmt.Sprintf("%s cannot carry tags", kind))
	}
	return t, nil
}

// ListTags returns every tag, or only those of tagType when it is set.
func (s *Store) ListTags(ctx context.Context, tagType *string) ([]model.Tag, error) {
	pred, err := query.New().Equal("type", tagType).Build()
	if err != nil {
		return nil, err
	}

	tags := []model.Tag{}
	err = s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		return sqlx.SelectContext(ctx, conn, &tags, conn.Rebind(
			`SELECT tag_id, name, type FROM tags WHERE `+pred.SQL+` ORDER BY type, name`), pred.Args...)
	})
	if err != nil {
		return nil, classify("listing tags", err)
	}
	return tags, nil
}

// AttachTag links tagID to an entity the owner controls. Attaching a tag
// that is already there is a no-op.
func (s *Store) AttachTag(ctx context.Context, kind model.TaggableKind, entityID, tagID, owner int64) error {
	t, err := taggableFor(kind)
	if err != nil {
		return err
	}

	return s.pool.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireOwned(ctx, tx, t, entityID, owner, string(kind)); err != nil {
			return err
		}
		if err := requireTag(ctx, tx, tagID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("tag", fmt.Sprint(tagID))
			}
			return err
		}
		return insertTagLink(ctx, tx, t.link, entityID, tagID)
	})
}

// DetachTag removes the link; a missing link is NotFound.
func (s *Store) DetachTag(ctx context.Context, kind model.TaggableKind, entityID, tagID, owner int64) error {
	t, err := taggableFor(kind)
	if err != nil {
		return err
	}

	return s.pool.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireOwned(ctx, tx, t, entityID, owner, string(kind)); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(fmt.Sprintf(
			`DELETE FROM %s WHERE %s = ? AND %s = ?`, t.link.Table, t.link.ParentColumn, t.link.MemberColumn)),
			entityID, tagID)
		if err != nil {
			return classify("detaching tag", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("tag", fmt.Sprint(tagID))
		}
		return nil
	})
}

// requireOwned fails with NotFound unless the live entity belongs to owner.
// Someone else's row is indistinguishable from a missing one.
func requireOwned(ctx context.Context, q querier, t taggableTable, id, owner int64, resource string) error {
	var one int
	err := sqlx.GetContext(ctx, q, &one, q.Rebind(fmt.Sprintf(
		`SELECT 1 FROM %s WHERE %s = ? AND created_user_id = ? AND delete_time IS NULL`, t.table, t.idColumn)),
		id, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(resource, fmt.Sprint(id))
	}
	return classify("checking ownership", err)
}

// requireTag returns sql.ErrNoRows (unwrapped) when the tag does not exist,
// so callers can choose between NotFound and a validation error.
func requireTag(ctx context.Context, q querier, tagID int64) error {
	var one int
	err := sqlx.GetContext(ctx, q, &one, q.Rebind(`SELECT 1 FROM tags WHERE tag_id = ?`), tagID)
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return classify("checking tag", err)
}

func insertTagLink(ctx context.Context, q querier, link query.Association, parentID, tagID int64) error {
	_, err := q.ExecContext(ctx, q.Rebind(fmt.Sprintf(
		`INSERT INTO %s (%s, %s) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		link.Table, link.ParentColumn, link.MemberColumn)),
		parentID, tagID)
	return classify("linking tag", err)
}

// insertTagRefs validates and links every requested tag inside a writer's
// transaction. The first unknown tag aborts the write.
func insertTagRefs(ctx context.Context, q querier, link query.Association, parentID int64, refs []model.TagRef) error {
	for _, ref := range refs {
		if err := requireTag(ctx, q, ref.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ValidationFailed("tags", fmt.Sprintf("No tag of ID %d exists", ref.ID))
			}
			return err
		}
		if err := insertTagLink(ctx, q, link, parentID, ref.ID); err != nil {
			return err
		}
	}
	return nil
}

// tagColumns are the nullable tag columns of a LEFT JOIN against tags.
type tagColumns struct {
	TagID   assemble.NullInt `db:"tag_id"`
	TagName sql.NullString   `db:"tag_name"`
	TagType sql.NullString   `db:"tag_type"`
}

// addTag attaches the row's tag (if any) to item, once per parent key.
func addTag[K comparable, V any](f *assemble.Fold[K, V], key K, item model.Taggable, cols tagColumns) {
	if !cols.TagID.Valid || !f.Child(key, "tag", cols.TagID.Int64) {
		return
	}
	item.AddTag(model.Tag{ID: cols.TagID.Int64, Name: cols.TagName.String, Type: cols.TagType.String})
}
