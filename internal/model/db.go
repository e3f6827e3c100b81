package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&AuditEvent{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&AccessRequest{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&ApprovalPolicy{}, &RetentionPolicy{}, &Setting{}); err != nil {
		return err
	}

	return nil
}
