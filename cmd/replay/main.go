package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	persistlog "hexstride.io/internal/persistence/log"
	"hexstride.io/internal/presence/model"
)

func main() {
	var (
		dir     = flag.String("dir", "./data/replay", "directory containing replay-*.jsonl.zst")
		player  = flag.String("player", "", "player id filter (optional)")
		hex     = flag.String("hex", "", "hex id filter (optional)")
		typ     = flag.String("type", "", "event type filter: create|increment|decay|cap|anomaly|tier-transition (optional)")
		sinceMs = flag.Int64("since_ms", 0, "only events at or after this unix ms (optional)")
		limit   = flag.Int("limit", 0, "stop after this many events (optional)")
		check   = flag.Bool("check", false, "only verify per-key ordering and print a summary")
	)
	flag.Parse()

	files, err := persistlog.ListReplayFiles(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list replay files:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no replay files found in", *dir)
		os.Exit(1)
	}

	f := filter{PlayerID: *player, HexID: *hex, Type: model.ReplayType(*typ), Limit: *limit}
	if *sinceMs > 0 {
		f.Since = time.UnixMilli(*sinceMs)
	}

	enc := json.NewEncoder(os.Stdout)
	sum, err := scan(files, f, func(e model.ReplayEvent) {
		if !*check {
			_ = enc.Encode(e)
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	if *check {
		fmt.Printf("replay files=%d events=%d keys=%d out_of_order=%d\n", len(files), sum.Events, sum.Keys, len(sum.Violations))
		for _, v := range sum.Violations {
			fmt.Println("  ", v)
		}
		if len(sum.Violations) > 0 {
			os.Exit(1)
		}
	}
}
