package main

import (
	"fmt"
	"log"
	"os"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Maintenance tool: delete report_issues rows whose parent report is gone.
// Older builds removed reports without their issue rows; this backfills
// the cleanup once so retention numbers stay honest.
func main() {
	dbPath := "./fleetlens.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	fmt.Println("🔧 FleetLens Orphaned Issue Cleanup")
	fmt.Println("===================================")
	fmt.Printf("Database: %s\n\n", dbPath)

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	var orphans int64
	if err := db.Table("report_issues").
		Where("report_id NOT IN (SELECT id FROM reports)").
		Count(&orphans).Error; err != nil {
		log.Fatalf("Failed to count orphaned issues: %v", err)
	}

	if orphans == 0 {
		fmt.Println("✅ No orphaned issue rows found")
		return
	}

	fmt.Printf("Found %d orphaned issue rows, deleting...\n", orphans)
	res := db.Exec("DELETE FROM report_issues WHERE report_id NOT IN (SELECT id FROM reports)")
	if res.Error != nil {
		log.Fatalf("Failed to delete orphaned issues: %v", res.Error)
	}

	fmt.Printf("✅ Deleted %d rows\n", res.RowsAffected)
	fmt.Println("Done. Consider running VACUUM to reclaim space.")
}
