package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"soulreflect/pkg/auth"
	"soulreflect/pkg/domain"
)

const migrateLockID int64 = 70611306

// GormStore implements ProfileStore on a SQL database. Profiles and their
// reflections live in separate tables; an append is a single insert inside a
// transaction, so concurrent appends from several processes are not lost.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPostgresStore opens Postgres and runs auto-migrations under an advisory lock.
func NewPostgresStore(dsn string) (*GormStore, error) {
	return openGormStore(postgres.Open(dsn))
}

// NewSQLiteStore opens (or creates) a SQLite database.
func NewSQLiteStore(path string) (*GormStore, error) {
	return openGormStore(sqlite.Open(path))
}

func openGormStore(dialector gorm.Dialector) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&ProfileModel{}, &ReflectionModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if db.Dialector.Name() == "postgres" {
		err = withMigrationLock(db, migrate)
	} else {
		err = migrate(db)
	}
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db, now: time.Now}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) loadProfile(tx *gorm.DB, email string) (ProfileModel, bool, error) {
	var model ProfileModel
	err := tx.Where("email = ?", email).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ProfileModel{}, false, nil
	}
	if err != nil {
		return ProfileModel{}, false, err
	}
	return model, true, nil
}

func (s *GormStore) loadHistory(tx *gorm.DB, email string) ([]domain.StoredResult, error) {
	var rows []ReflectionModel
	if err := tx.Where("email = ?", email).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.StoredResult, 0, len(rows))
	for _, row := range rows {
		r, err := reflectionFromModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Exists implements ProfileStore.
func (s *GormStore) Exists(ctx context.Context, email string) (bool, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return false, ErrInvalidEmail
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&ProfileModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// LoadByCredential implements ProfileStore.
func (s *GormStore) LoadByCredential(ctx context.Context, email, secret string) (domain.UserProfile, bool, error) {
	profile, model, ok, err := s.inspect(ctx, email)
	if err != nil || !ok {
		return domain.UserProfile{}, false, err
	}
	if !auth.CheckSecret(secret, model.Credential) {
		return domain.UserProfile{}, false, nil
	}
	return profile, true, nil
}

// Inspect implements Inspector.
func (s *GormStore) Inspect(ctx context.Context, email string) (domain.UserProfile, bool, error) {
	profile, _, ok, err := s.inspect(ctx, email)
	return profile, ok, err
}

func (s *GormStore) inspect(ctx context.Context, email string) (domain.UserProfile, ProfileModel, bool, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.UserProfile{}, ProfileModel{}, false, ErrInvalidEmail
	}
	db := s.db.WithContext(ctx)
	model, ok, err := s.loadProfile(db, email)
	if err != nil || !ok {
		return domain.UserProfile{}, ProfileModel{}, false, err
	}
	history, err := s.loadHistory(db, email)
	if err != nil {
		return domain.UserProfile{}, ProfileModel{}, false, err
	}
	return profileFromModel(model, history), model, true, nil
}

// Save implements ProfileStore. The stored history is replaced by profile.History.
func (s *GormStore) Save(ctx context.Context, profile domain.UserProfile, secret string) error {
	key := domain.NormalizeEmail(profile.Email)
	if key == "" {
		return ErrInvalidEmail
	}
	hash, err := auth.HashSecret(secret)
	if err != nil {
		return err
	}
	model := profileToModel(profile, key, hash)
	rows := make([]ReflectionModel, 0, len(profile.History))
	for _, r := range profile.History {
		row, err := reflectionToModel(key, r)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_email", "name", "language", "auth_method", "credential", "last_reflection_at", "updated_at"}),
		}).Create(&model).Error; err != nil {
			return err
		}
		if err := tx.Where("email = ?", key).Delete(&ReflectionModel{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// AppendReflection implements ProfileStore.
func (s *GormStore) AppendReflection(ctx context.Context, email, situation string, diagnostic domain.KarmaDiagnostic) (domain.StoredResult, error) {
	key := domain.NormalizeEmail(email)
	if key == "" {
		return domain.StoredResult{}, ErrInvalidEmail
	}
	var result domain.StoredResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		_, ok, err := s.loadProfile(q, key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrProfileNotFound
		}
		var last []ReflectionModel
		if err := tx.Where("email = ?", key).Order("seq desc").Limit(1).Find(&last).Error; err != nil {
			return err
		}
		var prior []domain.StoredResult
		if len(last) == 1 {
			prior = []domain.StoredResult{{ID: last[0].ResultID}}
		}
		result = domain.NewStoredResult(prior, s.now(), situation, diagnostic)
		row, err := reflectionToModel(key, result)
		if err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Model(&ProfileModel{}).Where("email = ?", key).
			Updates(map[string]any{"last_reflection_at": result.CreatedAt, "updated_at": s.now().UTC()}).Error
	})
	if err != nil {
		return domain.StoredResult{}, err
	}
	return result, nil
}

// ListEmails implements Lister.
func (s *GormStore) ListEmails(ctx context.Context) ([]string, error) {
	var emails []string
	if err := s.db.WithContext(ctx).Model(&ProfileModel{}).Order("email asc").Pluck("email", &emails).Error; err != nil {
		return nil, err
	}
	return emails, nil
}

func profileToModel(p domain.UserProfile, key, credential string) ProfileModel {
	now := time.Now().UTC()
	return ProfileModel{
		Email:            key,
		DisplayEmail:     strings.TrimSpace(p.Email),
		Name:             strings.TrimSpace(p.Name),
		Language:         string(p.Language),
		AuthMethod:       string(p.AuthMethod),
		Credential:       credential,
		LastReflectionAt: p.LastReflectionAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func profileFromModel(m ProfileModel, history []domain.StoredResult) domain.UserProfile {
	var last *time.Time
	if m.LastReflectionAt != nil {
		t := m.LastReflectionAt.UTC()
		last = &t
	}
	email := m.DisplayEmail
	if email == "" {
		email = m.Email
	}
	return domain.UserProfile{
		Name:             m.Name,
		Email:            email,
		Language:         domain.LanguageCode(m.Language),
		AuthMethod:       domain.AuthMethod(m.AuthMethod),
		LastReflectionAt: last,
		History:          history,
	}
}

func reflectionToModel(email string, r domain.StoredResult) (ReflectionModel, error) {
	diag, err := json.Marshal(r.Diagnostic)
	if err != nil {
		return ReflectionModel{}, fmt.Errorf("encode diagnostic: %w", err)
	}
	return ReflectionModel{
		Email:      email,
		ResultID:   r.ID,
		Situation:  r.Situation,
		Diagnostic: diag,
		CreatedAt:  r.CreatedAt.UTC(),
	}, nil
}

func reflectionFromModel(m ReflectionModel) (domain.StoredResult, error) {
	var diag domain.KarmaDiagnostic
	if err := json.Unmarshal(m.Diagnostic, &diag); err != nil {
		return domain.StoredResult{}, fmt.Errorf("decode diagnostic: %w", err)
	}
	return domain.StoredResult{
		ID:         m.ResultID,
		CreatedAt:  m.CreatedAt.UTC(),
		Situation:  m.Situation,
		Diagnostic: diag,
	}, nil
}
