package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type recordRow struct {
	PlayerID        string `json:"player_id"`
	HexID           string `json:"hex_id"`
	Value           int    `json:"presence_value"`
	TierID          int    `json:"tier_id"`
	DecayState      string `json:"decay_state"`
	LastVisitedAt   int64  `json:"last_visited_at"`
	LastIncrementAt int64  `json:"last_increment_at"`
}

type summaryRow struct {
	TierID     int    `json:"tier_id"`
	DecayState string `json:"decay_state"`
	Records    int    `json:"records"`
	Players    int    `json:"players"`
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "presence sqlite path (default: <data>/presence.sqlite)")
	player := fs.String("player", "", "player id (records)")
	inactivity := fs.Duration("inactivity", 24*time.Hour, "inactivity threshold (stale)")
	floor := fs.Int("floor", 5, "decay floor value (stale)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "summary"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "presence.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch q {
	case "records":
		if strings.TrimSpace(*player) == "" {
			fmt.Fprintln(os.Stderr, "missing -player")
			os.Exit(2)
		}
		rows, err := queryRecords(ctx, db, *player, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "stale":
		rows, err := queryStale(ctx, db, time.Now().Add(-*inactivity), *floor, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "summary":
		rows, err := querySummary(ctx, db)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		os.Exit(2)
	}
}

const recordCols = `player_id,hex_id,presence_value,tier_id,decay_state,last_visited_at,last_increment_at`

// queryRecords lists one player's records, highest value first.
func queryRecords(ctx context.Context, db *sql.DB, playerID string, limit int) ([]recordRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT `+recordCols+` FROM presence
		WHERE player_id=? ORDER BY presence_value DESC, hex_id ASC LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, err
	}
	return scanRecordRows(rows)
}

// queryStale mirrors the decay candidate selection without mutating anything.
func queryStale(ctx context.Context, db *sql.DB, cutoff time.Time, floor, limit int) ([]recordRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT `+recordCols+` FROM presence
		WHERE decay_state != 'capped' AND last_visited_at <= ? AND presence_value > ?
		ORDER BY last_visited_at ASC, player_id ASC, hex_id ASC LIMIT ?`,
		cutoff.UnixMilli(), floor, limit)
	if err != nil {
		return nil, err
	}
	return scanRecordRows(rows)
}

func querySummary(ctx context.Context, db *sql.DB) ([]summaryRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT tier_id,decay_state,COUNT(*),COUNT(DISTINCT player_id)
		FROM presence GROUP BY tier_id,decay_state ORDER BY tier_id,decay_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []summaryRow
	for rows.Next() {
		var r summaryRow
		if err := rows.Scan(&r.TierID, &r.DecayState, &r.Records, &r.Players); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecordRows(rows *sql.Rows) ([]recordRow, error) {
	defer rows.Close()
	var out []recordRow
	for rows.Next() {
		var r recordRow
		if err := rows.Scan(&r.PlayerID, &r.HexID, &r.Value, &r.TierID, &r.DecayState, &r.LastVisitedAt, &r.LastIncrementAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
