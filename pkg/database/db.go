package database

import (
	"fmt"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/config"
	"github.com/arnavshah/dispatch-api-go/pkg/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LedgerEvent represents the ledger_events table. Rows are only ever
// inserted.
type LedgerEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Kind      string    `gorm:"index;not null" json:"kind"`
	EntityID  string    `gorm:"index;not null" json:"entity_id"`
	RequestID string    `gorm:"index" json:"request_id,omitempty"`
	SubjectID string    `gorm:"index" json:"subject_id,omitempty"`
	Quantity  int       `json:"quantity"`
	Actor     string    `json:"actor,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `gorm:"index" json:"at"`
}

// DispatchActivity represents the dispatch_activity table: per-day
// counters for each event kind
type DispatchActivity struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Date   string `gorm:"uniqueIndex:idx_date_kind;not null" json:"date"`
	Kind   string `gorm:"uniqueIndex:idx_date_kind;not null" json:"kind"`
	Events int    `gorm:"default:0" json:"events"`
	Units  int    `gorm:"default:0" json:"units"`
}

// TableName keeps the table singular like the other journal tables
func (DispatchActivity) TableName() string { return "dispatch_activity" }

// InitDB opens the configured database and migrates the schema. PostgreSQL
// is used when a URL is configured, otherwise SQLite.
func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if cfg.URL != "" {
		gormCfg.PrepareStmt = false
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.URL,
			PreferSimpleProtocol: true,
		}), gormCfg)
	} else {
		path := cfg.Path
		if path == "" {
			path = "dispatch.db"
		}
		db, err = gorm.Open(sqlite.Open(path), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the service uses
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Resource{},
		&models.Volunteer{},
		&models.ResourceRequest{},
		&models.VolunteerRequest{},
		&models.ResourceAllocation{},
		&models.VolunteerAssignment{},
		&LedgerEvent{},
		&DispatchActivity{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
