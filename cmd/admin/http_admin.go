package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func roomsCmd(args []string) {
	fs := flag.NewFlagSet("rooms", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	getAndPrint(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/rooms")
}

func timelineCmd(args []string) {
	fs := flag.NewFlagSet("timeline", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	player := fs.String("player", "", "player id")
	hex := fs.String("hex", "", "hex id (q=<int>,r=<int>)")
	sinceMs := fs.Int64("since_ms", 0, "only events at or after this unix ms")
	_ = fs.Parse(args)

	if strings.TrimSpace(*player) == "" || strings.TrimSpace(*hex) == "" {
		fmt.Fprintln(os.Stderr, "missing -player or -hex")
		os.Exit(2)
	}
	q := url.Values{}
	q.Set("player", *player)
	q.Set("hex", *hex)
	if *sinceMs > 0 {
		q.Set("since_ms", fmt.Sprint(*sinceMs))
	}
	getAndPrint(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/timeline?" + q.Encode())
}

func getAndPrint(u string) {
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
