package database

import (
	"fmt"
	"log"
	"time"

	"qarelease/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func Connect(config Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Настройка пула соединений
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connected successfully")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Release{},
		&models.ChecklistItem{},
		&models.ReleaseCounter{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migration completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	// Выборки воркера повторных уведомлений
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_qa_releases_unnotified ON qa_releases(status, warehouse_notified)").Error; err != nil {
		return err
	}

	// Списки сортируются по дате подачи
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_qa_releases_submitted_at ON qa_releases(submitted_at DESC)").Error; err != nil {
		return err
	}

	return nil
}
