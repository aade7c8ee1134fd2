package model

import "gorm.io/gorm"

// allModels lists every model to be auto-migrated, parents before children.
var allModels = []interface{}{
	&User{},
	&UserDetail{},
	&Relationship{},
	&Bean{},
	&BeanTaste{},
	&TastedRecord{},
	&BeanTasteReview{},
	&Post{},
	&Photo{},
	&Comment{},
	&Like{},
	&Note{},
	&Report{},
	&Notification{},
	&PushDevice{},
	&NotificationSetting{},
	&Event{},
	&AuditLog{},
}

// AutoMigrate creates or updates all tables in the given database.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(allModels...)
}
