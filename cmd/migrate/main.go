package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"drivermonitor/internal/model"
	"drivermonitor/internal/repository/sqlite"
	"drivermonitor/internal/service/behavior"
	"drivermonitor/internal/service/storage"
)

// migrate indexes snapshot files that exist on disk but not in the alert database,
// e.g. after the database file was removed.
func main() {
	snapshotsDir := flag.String("snapshots", "snapshots", "Directory containing snapshots")
	dbPath := flag.String("db", "data/alerts.db", "Database path")
	flag.Parse()

	fmt.Printf("Indexing snapshots from %s into database %s\n", *snapshotsDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	snapshotRepo := sqlite.NewSnapshotRepository(db)
	alertRepo := sqlite.NewAlertRepository(db)

	files, err := os.ReadDir(*snapshotsDir)
	if err != nil {
		log.Fatalf("Failed to read snapshots directory: %v", err)
	}

	indexed, skipped := 0, 0
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}

		if existing, err := snapshotRepo.GetByFilename(file.Name()); err == nil && existing != nil {
			continue
		}

		timestamp, requestID, result, err := storage.ParseSnapshotFilename(file.Name())
		if err != nil {
			log.Printf("Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		info, err := file.Info()
		if err != nil {
			log.Printf("Failed to get info for %s: %v", file.Name(), err)
			skipped++
			continue
		}

		snapshotID, err := snapshotRepo.Insert(&model.Snapshot{
			RequestID:  requestID,
			Filename:   file.Name(),
			Timestamp:  timestamp,
			FilePath:   filepath.Join(*snapshotsDir, file.Name()),
			FileSize:   info.Size(),
			Drowsiness: result.Drowsiness,
			Drinking:   result.Drinking,
			Phone:      result.Phone,
			Smoking:    result.Smoking,
		})
		if err != nil {
			log.Fatalf("Failed to insert snapshot %s: %v", file.Name(), err)
		}

		var alerts []model.Alert
		for name, level := range behavior.Flagged(result) {
			alerts = append(alerts, model.Alert{
				SnapshotID: snapshotID,
				RequestID:  requestID,
				Behavior:   name,
				Level:      level,
				Timestamp:  timestamp,
			})
		}
		if err := alertRepo.InsertBatch(alerts); err != nil {
			log.Fatalf("Failed to insert alerts for %s: %v", file.Name(), err)
		}
		indexed++
	}

	fmt.Printf("Indexed %d snapshots\n", indexed)
	if skipped > 0 {
		fmt.Printf("Skipped %d files (invalid format or errors)\n", skipped)
	}

	stats, err := alertRepo.GetStats()
	if err != nil {
		return
	}
	size, _ := snapshotRepo.GetDirectorySize()

	fmt.Printf("\nDatabase statistics:\n")
	fmt.Printf("   Total alerts: %d\n", stats.TotalAlerts)
	fmt.Printf("   Total snapshot size: %d bytes\n", size)
	fmt.Printf("   Per behavior:\n")
	for name, count := range stats.PerBehavior {
		fmt.Printf("      - %s: %d\n", name, count)
	}
}
