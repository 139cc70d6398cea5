// Package database persists the simulator's sequence of events (simulated
// updates and operator commands) to daily SQLite files.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Event represents a single loggable state change in the simulator.
type Event struct {
	Timestamp     time.Time
	Variable      string
	NodeID        string
	PreviousValue string
	NewValue      string
	Mode          string
	EventType     string
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL,
    variable TEXT NOT NULL,
    node_id TEXT,
    previous_value TEXT,
    new_value TEXT,
    mode TEXT,
    event_type TEXT NOT NULL
);`

// Writer is a long-running goroutine that listens for events and writes them
// to a daily SQLite database under dir. On shutdown it drains whatever is left
// in the channel buffer before returning.
func Writer(ctx context.Context, wg *sync.WaitGroup, dir string, eventChan <-chan Event, logger *log.Logger) {
	defer wg.Done()
	logger.Println("Database Writer Goroutine Started.")
	dbConnections := make(map[string]*sql.DB)
	defer func() {
		for _, db := range dbConnections {
			db.Close()
		}
		logger.Println("Database Writer Goroutine Shutting Down.")
	}()

	writeEvent := func(event Event) {
		dateStr := event.Timestamp.Format("2006-01-02")
		db, ok := dbConnections[dateStr]
		if !ok {
			var err error
			fileName := filepath.Join(dir, fmt.Sprintf("events_%s.db", dateStr))
			db, err = sql.Open("sqlite", fileName)
			if err != nil {
				logger.Printf("FATAL: Could not open/create database %s: %v", fileName, err)
				return
			}
			if _, err = db.Exec(createTableSQL); err != nil {
				logger.Printf("FATAL: Could not create table in %s: %v", fileName, err)
				db.Close()
				return
			}
			dbConnections[dateStr] = db
			logger.Printf("Successfully opened and verified database: %s", fileName)
		}

		_, err := db.Exec(
			"INSERT INTO events(timestamp, variable, node_id, previous_value, new_value, mode, event_type) VALUES(?, ?, ?, ?, ?, ?, ?)",
			event.Timestamp.Format("2006-01-02 15:04:05.000"),
			event.Variable, event.NodeID, event.PreviousValue, event.NewValue, event.Mode, event.EventType,
		)
		if err != nil {
			logger.Printf("ERROR: Failed to insert event into database: %v", err)
		}
	}

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			writeEvent(event)
		case <-ctx.Done():
			logger.Println("Shutdown signal received. Writing remaining events to database...")
			for len(eventChan) > 0 {
				writeEvent(<-eventChan)
			}
			return
		}
	}
}
