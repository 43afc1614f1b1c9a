package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"hexstride.io/internal/protocol"
)

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		token     = flag.String("token", "bot", "HELLO auth token (the player id under dev claims)")
		roomPref  = flag.String("room", "", "room preference (optional)")
		moveEvery = flag.Duration("move_every", 15*time.Second, "how long to dwell before stepping")
		stayProb  = flag.Float64("stay", 0.3, "probability of staying put on each step")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Auth:            &protocol.HelloAuth{Token: *token},
		RoomPreference:  *roomPref,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	msgs := make(chan []byte, 16)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("read: %v", err)
				return
			}
			msgs <- msg
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	ticker := time.NewTicker(*moveEvery)
	defer ticker.Stop()

	var w *walker
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if w == nil {
				continue
			}
			if next, moved := w.step(); moved {
				_ = conn.WriteJSON(protocol.MoveMsg{Type: protocol.TypeMove, HexID: next, TS: time.Now().UnixMilli()})
			}
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeWelcome:
				var wm protocol.WelcomeMsg
				if err := json.Unmarshal(msg, &wm); err != nil {
					continue
				}
				logger.Printf("WELCOME player=%s room=%s spawn=%s radius=%d interval_ms=%d",
					wm.PlayerID, wm.RoomID, wm.SpawnHex, wm.WorldParams.Radius, wm.WorldParams.IntervalMs)
				w, err = newWalker(wm.SpawnHex, wm.WorldParams.Radius, *stayProb, rand.New(rand.NewSource(time.Now().UnixNano())))
				if err != nil {
					logger.Fatalf("spawn: %v", err)
				}
				_ = conn.WriteJSON(protocol.MoveMsg{Type: protocol.TypeMove, HexID: wm.SpawnHex, TS: time.Now().UnixMilli()})
			case protocol.TypeUpdate:
				var u protocol.UpdateMsg
				if err := json.Unmarshal(msg, &u); err == nil {
					logger.Printf("update hex=%s %+d -> %d reason=%s tier=%d", u.HexID, u.Delta, u.NewValue, u.Reason, u.TierAfter)
				}
			case protocol.TypeUpdateBundled:
				var u protocol.UpdateBundledMsg
				if err := json.Unmarshal(msg, &u); err == nil {
					logger.Printf("bundled updates=%d", len(u.Entries))
				}
			case protocol.TypeError:
				var e protocol.PresenceErrorMsg
				if err := json.Unmarshal(msg, &e); err == nil {
					logger.Printf("error code=%s msg=%s", e.Code, e.Message)
					if w != nil {
						w.reject()
					}
				}
			}
		}
	}
}
