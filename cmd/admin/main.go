package main

import (
	"encoding/json"
	"fmt"
	"os"
)

const usage = `usage:
  admin db [records|stale|summary] [flags]   query the presence sqlite store
  admin rooms [-url]                          room stats from a running server
  admin timeline -player -hex [-since_ms]     in-memory replay timeline from a running server`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	switch os.Args[1] {
	case "db":
		dbCmd(os.Args[2:])
	case "rooms":
		roomsCmd(os.Args[2:])
	case "timeline":
		timelineCmd(os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
