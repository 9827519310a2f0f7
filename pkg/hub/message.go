// Package hub fans dashboard messages out to websocket clients. One
// goroutine owns the client set; each client has its own writer, so a slow
// browser never stalls the others or the vision loop.
package hub

import "github.com/gofiber/websocket/v2"

// Message is one broadcast payload: JSON text, or a binary JPEG display
// frame.
type Message struct {
	Binary bool
	Data   []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}

// NewBinaryMessage wraps binary data.
func NewBinaryMessage(data []byte) Message {
	return Message{Binary: true, Data: data}
}

func (m Message) frameType() int {
	if m.Binary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
