package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeWelcome     = 2
	MsgTypeJoinRoom    = 101
	MsgTypeVoteToStart = 102
	MsgTypeSubmitStory = 103
	MsgTypeSelectCard  = 104
	MsgTypePlayerReady = 105
	MsgTypeRoomUpdate  = 301
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:3001", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			body := message[4:]
			switch msgID {
			case MsgTypeWelcome:
				log.Printf("Welcome: %s", body)
			case MsgTypeRoomUpdate:
				log.Printf("Room update: %s", body)
			default:
				log.Printf("Message %d: %s", msgID, body)
			}
		}
	}()

	var roomID string

	// Command loop: join <room> <name> | start | story <name> | <desc> |
	// card <value> | ready | quit
	scanner := bufio.NewScanner(os.Stdin)
	go func() {
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "join":
				if len(fields) < 3 {
					log.Println("usage: join <room> <name>")
					continue
				}
				roomID = fields[1]
				send(c, MsgTypeJoinRoom, map[string]string{
					"room_id": roomID, "player_name": fields[2],
				})
			case "start":
				send(c, MsgTypeVoteToStart, map[string]string{"room_id": roomID})
			case "story":
				rest := strings.SplitN(strings.Join(fields[1:], " "), "|", 2)
				story := map[string]string{"room_id": roomID, "name": strings.TrimSpace(rest[0])}
				if len(rest) > 1 {
					story["description"] = strings.TrimSpace(rest[1])
				}
				send(c, MsgTypeSubmitStory, story)
			case "card":
				if len(fields) < 2 {
					log.Println("usage: card <value>")
					continue
				}
				send(c, MsgTypeSelectCard, map[string]string{
					"room_id": roomID, "vote": fields[1],
				})
			case "ready":
				send(c, MsgTypePlayerReady, map[string]string{"room_id": roomID})
			case "quit":
				c.Close()
				return
			default:
				log.Println("commands: join, start, story, card, ready, quit")
			}
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		log.Println("Interrupted")
	}
}
