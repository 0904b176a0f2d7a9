package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// GormCollection stores documents of type T in the table gorm maps T to.
type GormCollection[T any] struct {
	db *gorm.DB
}

func NewCollection[T any](db *gorm.DB) *GormCollection[T] {
	return &GormCollection[T]{db: db}
}

func (c *GormCollection[T]) Create(ctx context.Context, doc *T) error {
	return c.db.WithContext(ctx).Create(doc).Error
}

func (c *GormCollection[T]) Get(ctx context.Context, id string) (*T, error) {
	var doc T
	err := c.db.WithContext(ctx).Where("id = ?", id).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *GormCollection[T]) List(ctx context.Context, queries ...Query) (*DocumentList[T], error) {
	var (
		conds         []clause.Expression
		orders        []clause.OrderByColumn
		limit, offset int
	)
	for _, q := range queries {
		switch q.kind {
		case queryEqual:
			conds = append(conds, clause.Eq{Column: clause.Column{Name: q.field}, Value: q.value})
		case querySearch:
			term, _ := q.value.(string)
			conds = append(conds, clause.Expr{
				SQL:  `? LIKE ? ESCAPE '\'`,
				Vars: []any{clause.Column{Name: q.field}, "%" + likeEscaper.Replace(term) + "%"},
			})
		case queryOrderDesc:
			orders = append(orders, clause.OrderByColumn{Column: clause.Column{Name: q.field}, Desc: true})
		case queryLimit:
			limit = q.n
		case queryOffset:
			offset = q.n
		}
	}

	filtered := func() *gorm.DB {
		tx := c.db.WithContext(ctx).Model(new(T))
		if len(conds) > 0 {
			tx = tx.Clauses(clause.Where{Exprs: conds})
		}
		return tx
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, err
	}

	tx := filtered()
	for _, o := range orders {
		tx = tx.Order(o)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}

	docs := []T{}
	if err := tx.Find(&docs).Error; err != nil {
		return nil, err
	}
	return &DocumentList[T]{Documents: docs, Total: total}, nil
}

func (c *GormCollection[T]) Update(ctx context.Context, id string, fields map[string]any) (*T, error) {
	if err := c.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields).Error; err != nil {
		return nil, err
	}
	return c.Get(ctx, id)
}

func (c *GormCollection[T]) UpdateIf(ctx context.Context, id string, expect, fields map[string]any) (*T, error) {
	conds := make([]clause.Expression, 0, len(expect))
	for col, v := range expect {
		conds = append(conds, clause.Eq{Column: clause.Column{Name: col}, Value: v})
	}

	tx := c.db.WithContext(ctx).Model(new(T)).Where("id = ?", id)
	if len(conds) > 0 {
		tx = tx.Clauses(clause.Where{Exprs: conds})
	}
	res := tx.Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := c.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}
	return c.Get(ctx, id)
}

func (c *GormCollection[T]) Delete(ctx context.Context, id string) error {
	res := c.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
