package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultDocumentName = "site"

// DocumentRecord stores one named document as a JSON column.
type DocumentRecord struct {
	Name      string         `gorm:"type:text;primaryKey" json:"name"`
	Body      datatypes.JSON `gorm:"not null" json:"body"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (DocumentRecord) TableName() string {
	return "site_documents"
}

// PostgresBackend keeps the document in a single row, replaced with an upsert.
type PostgresBackend struct {
	db   *gorm.DB
	name string
}

func NewPostgresBackend(db *gorm.DB, name string) (*PostgresBackend, error) {
	if name == "" {
		name = DefaultDocumentName
	}
	if err := db.AutoMigrate(&DocumentRecord{}); err != nil {
		return nil, fmt.Errorf("migrate site_documents: %w", err)
	}
	return &PostgresBackend{db: db, name: name}, nil
}

func (b *PostgresBackend) Name() string {
	return "postgres"
}

func (b *PostgresBackend) Read(ctx context.Context) ([]byte, error) {
	var record DocumentRecord
	err := b.db.WithContext(ctx).Where("name = ?", b.name).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	return []byte(record.Body), nil
}

func (b *PostgresBackend) Write(ctx context.Context, data []byte) error {
	record := DocumentRecord{
		Name:      b.name,
		Body:      datatypes.JSON(data),
		UpdatedAt: time.Now().UTC(),
	}
	return b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&record).Error
}
