package db

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"attendance-backend/internal/models"
)

func Open(dsn string) (*gorm.DB, error) {
	// TranslateError turns the driver's duplicate-key errors into
	// gorm.ErrDuplicatedKey, which the ledger relies on for the
	// one-record-per-day guarantee.
	database, err := gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := database.AutoMigrate(
		&models.User{},
		&models.DeviceSession{},
		&models.Subject{},
		&models.Session{},
		&models.Attendance{},
	); err != nil {
		return nil, err
	}

	return database, nil
}
