package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/mentormesh/mentormesh/internal/connection"
	"github.com/mentormesh/mentormesh/internal/messaging"
	"github.com/mentormesh/mentormesh/internal/models"
	"github.com/mentormesh/mentormesh/internal/session"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}

// Migrate creates or updates all tables owned by this service. The unique
// pair-key indexes on connections and conversations are part of the schema,
// not just an application check.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&connection.Connection{},
		&messaging.Conversation{},
		&messaging.Participant{},
		&messaging.Message{},
		&messaging.Attachment{},
		&session.Session{},
		&session.Feedback{},
	)
}
