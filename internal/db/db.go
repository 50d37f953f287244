package db

import (
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/liushuo92/support-bot/internal/chat"
)

// Connect opens the configured database and migrates the chat schema.
// DSNs containing "@tcp(" are treated as MySQL; anything else is an
// embedded sqlite file path.
func Connect(dsn string) *gorm.DB {
	var dial gorm.Dialector
	if strings.Contains(dsn, "@tcp(") {
		dial = mysql.Open(dsn)
	} else {
		dial = gormsqlite.Open(dsn)
	}

	gdb, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}

	if err := gdb.AutoMigrate(&chat.Session{}, &chat.Message{}); err != nil {
		logrus.Fatalf("migrate database: %v", err)
	}

	return gdb
}
