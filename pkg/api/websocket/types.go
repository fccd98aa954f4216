package websocket

import (
	"encoding/json"
)

// Channel groups clients that receive the same messages
type Channel string

const (
	// ChannelGeneral receives token updates
	ChannelGeneral Channel = "general"

	// ChannelAdmin receives operator notifications
	ChannelAdmin Channel = "admin"
)

// Message types
const (
	TypeTokenUpdate = "tokenupdate"
	TypeError       = "error"
	TypePing        = "ping"
	TypePong        = "pong"
)

// Envelope is the JSON frame pushed to clients
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Message is an inbound client frame
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrorMessage is the data of an error envelope
type ErrorMessage struct {
	Error string `json:"error"`
}

// PipelineError is sent to admins when an event could not be processed
type PipelineError struct {
	Contract string `json:"contract,omitempty"`
	Stage    string `json:"stage"`
	Error    string `json:"error"`
}
