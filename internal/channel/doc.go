// Package channel implements the websocket channels connecting a capture
// session to the streaming backend: an outbound audio channel carrying
// encoded chunks and an inbound transcript channel carrying transcript
// fragments with automatic reconnection.
package channel
