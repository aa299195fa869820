// Command orphan_sweep cross-checks the object store directory against the
// reports table and prints every discrepancy the two-phase coordinators can
// leave behind: objects with no metadata record, and records whose object is
// missing. It only reports; cleanup stays a manual decision.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type reportRow struct {
	ReportID  string `db:"report_id"`
	PatientID string `db:"patient_id"`
	ObjectKey string `db:"object_key"`
}

func main() {
	var (
		dsn     string
		dir     string
		timeout time.Duration
	)

	flag.StringVar(&dsn, "dsn", "host=localhost port=5432 user=postgres password=postgres dbname=report_vault sslmode=disable", "PostgreSQL DSN for the record store")
	flag.StringVar(&dir, "dir", "./reports", "Object store directory")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Scan timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect to record store: %v", err)
	}
	defer db.Close() //nolint:errcheck

	var rows []reportRow
	if err := db.SelectContext(ctx, &rows, `SELECT report_id, patient_id, object_key FROM reports`); err != nil {
		log.Fatalf("failed to scan reports: %v", err)
	}

	keyed := make(map[string]reportRow, len(rows))
	for _, row := range rows {
		keyed[row.ObjectKey] = row
	}

	objects, err := listObjects(dir)
	if err != nil {
		log.Fatalf("failed to list object store: %v", err)
	}

	var orphanObjects, danglingRecords int

	for _, key := range objects {
		if _, ok := keyed[key]; !ok {
			orphanObjects++
			fmt.Printf("ORPHAN OBJECT    %s (no metadata record)\n", key)
		}
	}

	onDisk := make(map[string]struct{}, len(objects))
	for _, key := range objects {
		onDisk[key] = struct{}{}
	}
	for _, row := range rows {
		if _, ok := onDisk[row.ObjectKey]; !ok {
			danglingRecords++
			fmt.Printf("DANGLING RECORD  patient=%s report=%s key=%s (object missing)\n",
				row.PatientID, row.ReportID, row.ObjectKey)
		}
	}

	fmt.Printf("\nchecked %d records, %d objects: %d orphan objects, %d dangling records\n",
		len(rows), len(objects), orphanObjects, danglingRecords)

	if orphanObjects > 0 || danglingRecords > 0 {
		os.Exit(1)
	}
}

func listObjects(dir string) ([]string, error) {
	var keys []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	return keys, err
}
