// database/bootstrap.go
package database

import (
	"fmt"
	"log"
	"sync/atomic"

	sqlite "github.com/glebarez/sqlite" // CGO-free driver
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"socialcast/entities"
)

func OpenSQLite(path string) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}

	// Concurrent webhook handlers share one file; WAL keeps readers off the
	// writer's lock and busy_timeout absorbs short claim contention.
	if err := db.Exec(`PRAGMA journal_mode=WAL`).Error; err != nil {
		log.Fatalf("set WAL: %v", err)
	}
	if err := db.Exec(`PRAGMA busy_timeout=5000`).Error; err != nil {
		log.Fatalf("set busy_timeout: %v", err)
	}

	if err := db.AutoMigrate(
		&entities.FeedSource{},
		&entities.Article{},
		&entities.Workflow{},
		&entities.BudgetPeriod{},
		&entities.SpendEntry{},
		&entities.SlotClaim{},
		&entities.Experiment{},
		&entities.ExperimentResult{},
	); err != nil {
		log.Fatalf("automigrate: %v", err)
	}

	return db
}

var memSeq atomic.Int64

// OpenMemory opens a throwaway in-memory database, for tests. Each call gets
// its own named shared-cache DB so every pooled connection sees the same
// tables while tests stay isolated from each other.
func OpenMemory() *gorm.DB {
	n := memSeq.Add(1)
	return OpenSQLite(fmt.Sprintf("file:mem%d?mode=memory&cache=shared", n))
}
