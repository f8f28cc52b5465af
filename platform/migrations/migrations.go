// Package migrations tracks the database schema. Each migration is applied
// at most once and recorded in the migrations table.
package migrations

import (
	"annotation_platform/platform/schema"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func allMigrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "0001_initial_schema",
			Migrate: func(txn *gorm.DB) error {
				return txn.AutoMigrate(
					&schema.User{}, &schema.Project{}, &schema.ProjectRole{},
					&schema.Task{}, &schema.TaskAccess{}, &schema.DataAccess{},
					&schema.Notification{},
				)
			},
			Rollback: func(txn *gorm.DB) error {
				return txn.Migrator().DropTable(
					&schema.Notification{}, &schema.DataAccess{}, &schema.TaskAccess{},
					&schema.Task{}, &schema.ProjectRole{}, &schema.Project{},
					&schema.User{},
				)
			},
		},
	}
}

func Migrate(db *gorm.DB) error {
	return gormigrate.New(db, gormigrate.DefaultOptions, allMigrations()).Migrate()
}
