package storage

import (
	"context"
	"errors"
	"strings"

	"pixel-asset-store/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore maps the namespace onto two tables: key_value_store for values
// and key_value_set_members for sets.
type PostgresStore struct {
	DB *gorm.DB
}

// OpenPostgresStore connects with the given DSN and migrates both tables.
func OpenPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, unavailable("connect", err)
	}
	return NewPostgresStore(db)
}

// NewPostgresStore migrates the tables on an existing connection.
func NewPostgresStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&models.KVEntry{}, &models.KVSetMember{}); err != nil {
		return nil, unavailable("migrate", err)
	}
	return &PostgresStore{DB: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var entry models.KVEntry
	err := s.DB.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get", err)
	}
	return entry.Value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	if err := upsertValue(s.DB.WithContext(ctx), key, value); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (s *PostgresStore) AddToSet(ctx context.Context, key, member string) error {
	if err := insertMember(s.DB.WithContext(ctx), key, member); err != nil {
		return unavailable("add to set", err)
	}
	return nil
}

func (s *PostgresStore) ListSet(ctx context.Context, key string) ([]string, error) {
	members := []string{}
	err := s.DB.WithContext(ctx).
		Model(&models.KVSetMember{}).
		Where("set_key = ?", key).
		Pluck("member", &members).Error
	if err != nil {
		return nil, unavailable("list set", err)
	}
	return members, nil
}

// Apply runs every op inside one transaction.
func (s *PostgresStore) Apply(ctx context.Context, ops ...Op) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			var err error
			switch op.Kind {
			case OpSet:
				err = upsertValue(tx, op.Key, op.Value)
			case OpAddToSet:
				err = insertMember(tx, op.Key, op.Value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return unavailable("transaction", err)
	}
	return nil
}

func (s *PostgresStore) ScanKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.DB.WithContext(ctx).
		Model(&models.KVEntry{}).
		Where("key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Order("key").
		Pluck("key", &keys).Error
	if err != nil {
		return nil, unavailable("scan", err)
	}
	return keys, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return unavailable("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func upsertValue(db *gorm.DB, key, value string) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.KVEntry{Key: key, Value: value}).Error
}

func insertMember(db *gorm.DB, key, member string) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.KVSetMember{SetKey: key, Member: member}).Error
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
