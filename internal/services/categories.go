package services

import (
	"context"
	"errors"
	"fmt"

	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/storage"
)

type defaultCategory struct {
	name  string
	color string
}

var defaultCategories = map[core.CategoryType][]defaultCategory{
	core.CategoryExpense: {
		{"Food", "green"},
		{"Transport", "blue"},
		{"Fuel", "orange"},
		{"Parking", "gray"},
		{"Communication", "cyan"},
		{"Apps & Subscriptions", "indigo"},
		{"Entertainment", "purple"},
		{"Shopping", "pink"},
		{"Health", "red"},
		{"Education", "yellow"},
		{"Insurance", "teal"},
		{"Sport", "lime"},
		{"Direct Debit", "slate"},
	},
	core.CategoryIncome: {
		{"Salary", "green"},
		{"Bonus", "blue"},
		{"Business", "purple"},
		{"Investments", "yellow"},
		{"Allowance", "orange"},
		{"Gift", "pink"},
	},
	core.CategorySaving: {
		{"Emergency", "red"},
		{"Vacation", "blue"},
		{"Car", "gray"},
		{"Apartment", "purple"},
		{"Pension", "green"},
		{"Investments", "yellow"},
	},
}

// Categories owns the name-keyed category table. Ledger rows hold category
// names, so renames and deletes rewrite those rows in the same transaction.
type Categories struct {
	db     *storage.DB
	logger *log.Logger
}

func NewCategories(db *storage.DB, logger *log.Logger) *Categories {
	if logger == nil {
		logger = log.Default(log.ComponentCategory)
	}
	return &Categories{db: db, logger: logger}
}

// List returns the categories of typ in scope, seeding the defaults the
// first time a (type, scope) pair is read.
func (c *Categories) List(ctx context.Context, userID string, typ core.CategoryType, scope core.BudgetType) ([]core.Category, error) {
	s, err := c.db.Scope(userID)
	if err != nil {
		return nil, err
	}
	if typ == "" {
		typ = core.CategoryExpense
	}
	if scope == "" {
		scope = core.Personal
	}
	if !typ.Valid() {
		return nil, core.Invalid("category type must be expense, income or saving")
	}
	if !scope.Valid() {
		return nil, core.Invalid("scope must be PERSONAL or BUSINESS")
	}

	n, err := s.CountCategories(ctx, typ, scope)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if err := c.seed(ctx, s, typ, scope); err != nil {
			return nil, err
		}
	}

	out, err := s.ListCategories(ctx, typ, scope)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Category{}
	}
	return out, nil
}

func (c *Categories) seed(ctx context.Context, s *storage.Scope, typ core.CategoryType, scope core.BudgetType) error {
	return s.InTx(ctx, func(tx *storage.Scope) error {
		for _, d := range defaultCategories[typ] {
			cat := core.Category{Name: d.name, Type: typ, Scope: scope, Color: d.color}
			// a concurrent first read may have seeded already
			if err := tx.InsertCategory(ctx, &cat); err != nil && !errors.Is(err, core.ErrConflict) {
				return err
			}
		}
		c.logger.InfoContext(ctx, "Default categories seeded",
			log.FieldUserID, tx.UserID(),
			"type", typ,
			"scope", scope)
		return nil
	})
}

func (c *Categories) Add(ctx context.Context, userID string, in core.CategoryInput) (core.Category, error) {
	s, err := c.db.Scope(userID)
	if err != nil {
		return core.Category{}, err
	}
	if err := in.Normalize(); err != nil {
		return core.Category{}, err
	}

	cat := core.Category{Name: in.Name, Type: in.Type, Scope: in.Scope, Color: in.Color}
	if err := s.InsertCategory(ctx, &cat); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return core.Category{}, core.Conflict(fmt.Sprintf("category %q already exists", in.Name))
		}
		return core.Category{}, err
	}
	c.logger.InfoContext(ctx, "Category added",
		log.FieldUserID, userID,
		log.FieldID, cat.ID,
		"name", cat.Name)
	return cat, nil
}

// RenameResult reports the renamed category and how many ledger rows followed.
type RenameResult struct {
	Category  core.Category `json:"category"`
	Rewritten int64         `json:"rewritten"`
}

// Rename changes the name (and optionally the color) of a category and
// rewrites every ledger row of its scope that carries the old name. When
// another category type shares the old name only the kinds of this type are
// rewritten.
func (c *Categories) Rename(ctx context.Context, userID, id, name, color string) (RenameResult, error) {
	s, err := c.db.Scope(userID)
	if err != nil {
		return RenameResult{}, err
	}
	in := core.CategoryInput{Name: name, Type: core.CategoryExpense}
	if err := in.Normalize(); err != nil {
		return RenameResult{}, err
	}
	name = in.Name

	var res RenameResult
	err = s.InTx(ctx, func(tx *storage.Scope) error {
		cat, err := tx.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		oldName := cat.Name
		cat.Name = name
		if color != "" {
			cat.Color = color
		}
		if err := tx.UpdateCategory(ctx, cat); err != nil {
			return err
		}
		res.Category = cat
		if oldName == name {
			return nil
		}

		kinds, err := c.cascadeKinds(ctx, tx, cat, oldName)
		if err != nil {
			return err
		}
		res.Rewritten, err = tx.RewriteCategory(ctx, kinds, cat.Scope, oldName, name)
		return err
	})
	if errors.Is(err, core.ErrConflict) {
		return RenameResult{}, core.Conflict(fmt.Sprintf("category %q already exists", name))
	}
	if err != nil {
		return RenameResult{}, err
	}

	c.logger.InfoContext(ctx, "Category renamed",
		log.FieldUserID, userID,
		log.FieldID, id,
		log.FieldOperation, log.OpRename,
		"rows", res.Rewritten)
	return res, nil
}

// cascadeKinds picks the ledger kinds whose rows follow a change to cat.
func (c *Categories) cascadeKinds(ctx context.Context, tx *storage.Scope, cat core.Category, name string) ([]core.Kind, error) {
	for _, other := range []core.CategoryType{core.CategoryExpense, core.CategoryIncome, core.CategorySaving} {
		if other == cat.Type {
			continue
		}
		_, err := tx.FindCategory(ctx, name, other, cat.Scope)
		if err == nil {
			return cat.Type.Kinds(), nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
	}
	return core.Kinds, nil
}

// Delete removes a category. A category still used by ledger rows is refused
// with a conflict unless reassignTo names the category those rows move to.
func (c *Categories) Delete(ctx context.Context, userID, id, reassignTo string) (int64, error) {
	s, err := c.db.Scope(userID)
	if err != nil {
		return 0, err
	}

	var moved int64
	err = s.InTx(ctx, func(tx *storage.Scope) error {
		cat, err := tx.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		kinds, err := c.cascadeKinds(ctx, tx, cat, cat.Name)
		if err != nil {
			return err
		}
		used, err := tx.CountCategoryUsage(ctx, kinds, cat.Scope, cat.Name)
		if err != nil {
			return err
		}
		if used > 0 {
			if reassignTo == "" {
				return core.Conflict(fmt.Sprintf("category %q is used by %d entries", cat.Name, used))
			}
			if _, err := tx.FindCategory(ctx, reassignTo, cat.Type, cat.Scope); err != nil {
				if errors.Is(err, core.ErrNotFound) {
					return core.Invalid(fmt.Sprintf("unknown category %q", reassignTo))
				}
				return err
			}
			if moved, err = tx.RewriteCategory(ctx, kinds, cat.Scope, cat.Name, reassignTo); err != nil {
				return err
			}
		}
		return tx.DeleteCategory(ctx, id)
	})
	if err != nil {
		return 0, err
	}

	c.logger.InfoContext(ctx, "Category deleted",
		log.FieldUserID, userID,
		log.FieldID, id,
		"reassigned", moved)
	return moved, nil
}
