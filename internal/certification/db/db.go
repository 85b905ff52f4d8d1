// Package db persists the certification aggregate with GORM. Every
// multi-statement operation runs inside one transaction and rolls back in
// full on error.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gartstein/certify/internal/certification/approval"
	dbmodels "github.com/gartstein/certify/internal/certification/db/models"
	e "github.com/gartstein/certify/internal/certification/errors"
	"github.com/gartstein/certify/internal/certification/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviseFunc turns the stored due date into the history entry to append,
// or nil when nothing changed.
type ReviseFunc func(previous time.Time) *models.DueDateChange

type Repository struct {
	db *gorm.DB
}

type Config struct {
	// Driver is "postgres" (default) or "sqlite".
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Path is the sqlite database file.
	Path string
}

func (c *Config) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case "", "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
		return postgres.Open(dsn), nil
	case "sqlite":
		path := c.Path
		if path == "" {
			path = "certify.db"
		}
		return sqlite.Open(path + "?_foreign_keys=on&_txlock=immediate"), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

func NewRepository(cfg *Config) (*Repository, error) {
	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// SQLite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access database pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return newRepository(db)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func newRepository(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(dbmodels.All()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Repository{db: db}, nil
}

// CreateCertification inserts the parent row and then every child row of
// draft, all in one transaction, with all four stages pending.
func (r *Repository) CreateCertification(ctx context.Context, draft *models.Draft, requestedBy string) (*models.Certification, error) {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	now := r.db.NowFunc()
	row := newRow(draft, requestedBy)
	row.CreatedAt = now
	row.LastUpdatedOn = now

	err := r.WithTransaction(ctx, func(tx *Repository) error {
		if err := tx.db.WithContext(ctx).Omit(clause.Associations).Create(row).Error; err != nil {
			return err
		}
		return tx.insertChildren(ctx, row.ID, draft)
	})
	if err != nil {
		return nil, storageError(err)
	}

	return r.GetCertification(ctx, row.ID)
}

// ReplaceCertification rewrites the descriptive fields and the child
// collections of certification id. Stage columns and the existing due-date
// history are left alone; the entry produced by revise, if any, is appended.
func (r *Repository) ReplaceCertification(ctx context.Context, id uint, draft *models.Draft, revise ReviseFunc) error {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return err
	}

	err := r.WithTransaction(ctx, func(tx *Repository) error {
		current, err := tx.lockCertification(ctx, id)
		if err != nil {
			return err
		}

		row := newRow(draft, current.RequestedBy)
		row.LastUpdatedOn = r.db.NowFunc()
		result := tx.db.WithContext(ctx).Model(&dbmodels.Certification{}).
			Where("id = ?", id).
			Select(descriptiveColumns).
			Updates(row)
		if result.Error != nil {
			return result.Error
		}

		for _, child := range []interface{}{
			&dbmodels.ProductType{},
			&dbmodels.MaterialCategory{},
			&dbmodels.ProductionLine{},
			&dbmodels.Upload{},
		} {
			if err := tx.db.WithContext(ctx).Where("certification_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		if err := tx.insertChildren(ctx, id, draft); err != nil {
			return err
		}

		if revise == nil {
			return nil
		}
		change := revise(models.DateOf(time.Time(current.DueDate)))
		if change == nil {
			return nil
		}
		return tx.db.WithContext(ctx).Create(historyRow(id, change)).Error
	})
	return storageError(err)
}

func (r *Repository) GetCertification(ctx context.Context, id uint) (*models.Certification, error) {
	var row dbmodels.Certification
	result := r.preloaded(ctx).First(&row, "id = ?", id)
	if result.Error != nil {
		return nil, storageError(result.Error)
	}
	return toDomain(&row), nil
}

// ListCertifications returns every certification ordered by id.
func (r *Repository) ListCertifications(ctx context.Context) ([]*models.Certification, error) {
	var rows []dbmodels.Certification
	if err := r.preloaded(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, storageError(err)
	}

	out := make([]*models.Certification, 0, len(rows))
	for i := range rows {
		out = append(out, toDomain(&rows[i]))
	}
	return out, nil
}

// DeleteCertification removes the parent row; foreign keys cascade to the
// children and uploads.
func (r *Repository) DeleteCertification(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&dbmodels.Certification{}, id)
	if result.Error != nil {
		return storageError(result.Error)
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// ApplyApprovalStage records decision on its stage. The parent row is locked
// for the duration of the guard check and the write, so concurrent decisions
// on one certification are serialized.
func (r *Repository) ApplyApprovalStage(ctx context.Context, id uint, decision approval.Decision) (*models.Certification, error) {
	err := r.WithTransaction(ctx, func(tx *Repository) error {
		row, err := tx.lockCertification(ctx, id)
		if err != nil {
			return err
		}

		stages := stageDecisions(row)
		if err := approval.Check(stages, decision); err != nil {
			return err
		}
		next := approval.Apply(stages, decision)
		applied := next[decision.Stage]

		var comment *string
		if applied.Comment != "" {
			comment = &applied.Comment
		}
		cols := stageColumns[decision.Stage]
		return tx.db.WithContext(ctx).Model(&dbmodels.Certification{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				cols.status:       string(applied.Status),
				cols.comment:      comment,
				cols.at:           applied.At.UTC(),
				"status":          string(approval.DeriveStatus(next)),
				"last_updated_on": r.db.NowFunc(),
			}).Error
	})
	if err != nil {
		return nil, storageError(err)
	}

	return r.GetCertification(ctx, id)
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Exec(ctx context.Context, query string, params ...interface{}) error {
	result := r.db.WithContext(ctx).Exec(query, params...)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func (r *Repository) lockCertification(ctx context.Context, id uint) (*dbmodels.Certification, error) {
	var row dbmodels.Certification
	result := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "id = ?", id)
	if result.Error != nil {
		return nil, result.Error
	}
	return &row, nil
}

func (r *Repository) insertChildren(ctx context.Context, id uint, draft *models.Draft) error {
	for _, rows := range childRows(id, draft).batches() {
		if err := r.db.WithContext(ctx).Create(rows).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) preloaded(ctx context.Context) *gorm.DB {
	byID := func(db *gorm.DB) *gorm.DB { return db.Order("id") }
	return r.db.WithContext(ctx).
		Preload("ProductTypes", byID).
		Preload("MaterialCategories", byID).
		Preload("ProductionLines", byID).
		Preload("DueDateHistory", func(db *gorm.DB) *gorm.DB { return db.Order("changed_at, id") }).
		Preload("Uploads", byID)
}

// storageError classifies err into the store's error taxonomy. Domain
// errors pass through untouched.
func storageError(err error) error {
	switch {
	case err == nil:
		return nil
	case e.IsDomain(err):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return e.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrCheckConstraintViolated):
		return fmt.Errorf("%w: %w", e.ErrConstraintViolation, err)
	default:
		return fmt.Errorf("%w: %w", e.ErrStorage, err)
	}
}
