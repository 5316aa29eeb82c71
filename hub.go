package main

import (
	"encoding/json"
	"log"
)

// Message defines the structure of data exchanged via WebSocket.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	User    string          `json:"user,omitempty"`
}

// Hub maintains the set of active clients and broadcasts table change
// payloads to them. One fixed durable key means one room: every client
// observes the same table.
type Hub struct {
	clients map[*Client]bool

	// Inbound messages from the clients.
	inbound chan *Message

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Outbound payloads from the table store.
	updates chan TableRecord

	table *TableStore
}

func newHub(table *TableStore) *Hub {
	return &Hub{
		inbound:    make(chan *Message),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		updates:    make(chan TableRecord, 16),
		clients:    make(map[*Client]bool),
		table:      table,
	}
}

// BroadcastTable implements TableBroadcaster for the store: every grid
// replacement, edit, commit or clear lands here and is fanned out as a
// TABLE_UPDATED message.
func (h *Hub) BroadcastTable(rec TableRecord) {
	select {
	case h.updates <- rec:
	default:
		log.Printf("hub: update channel full, dropping broadcast")
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Printf("Client registered: %s", client.userID)

			// Send current state to the new client.
			payload, err := json.Marshal(h.table.Record())
			if err == nil {
				client.send <- msgToBytes(&Message{Type: "INIT", Payload: payload, User: "system"})
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("Client unregistered: %s", client.userID)
			}

		case rec := <-h.updates:
			payload, err := json.Marshal(rec)
			if err != nil {
				log.Printf("Error marshalling table payload: %v", err)
				continue
			}
			h.fanOut(msgToBytes(&Message{Type: "TABLE_UPDATED", Payload: payload}))

		case message := <-h.inbound:
			h.handleCommand(message)
		}
	}
}

// handleCommand applies an inbound edit command through the edit engine.
// The store broadcasts the updated grid itself, so commands need no
// explicit rebroadcast here; anything unrecognized is relayed as-is.
func (h *Hub) handleCommand(message *Message) {
	switch message.Type {
	case "UPDATE_CELL":
		var update struct {
			Row   int   `json:"row"`
			Col   int   `json:"col"`
			Value Value `json:"value"`
		}
		if err := json.Unmarshal(message.Payload, &update); err != nil {
			log.Printf("Error unmarshalling update payload: %v", err)
			return
		}
		h.table.UpdateCell(update.Row, update.Col, update.Value)

	case "ADD_ROW":
		var ins struct {
			AfterIndex *int `json:"afterIndex"`
		}
		if err := json.Unmarshal(message.Payload, &ins); err != nil {
			log.Printf("Error unmarshalling add row payload: %v", err)
			return
		}
		after := -1
		if ins.AfterIndex != nil {
			after = *ins.AfterIndex
		}
		h.table.AddRow(after)

	case "DELETE_ROW":
		var del struct {
			Row int `json:"row"`
		}
		if err := json.Unmarshal(message.Payload, &del); err != nil {
			log.Printf("Error unmarshalling delete row payload: %v", err)
			return
		}
		h.table.DeleteRow(del.Row)

	default:
		h.fanOut(msgToBytes(message))
	}
}

func (h *Hub) fanOut(data []byte) {
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func msgToBytes(msg *Message) []byte {
	b, _ := json.Marshal(msg)
	return b
}
