// Package vps is the client side of the VPS voice assistant protocol.
//
// An Engine keeps one websocket connection to the backend and multiplexes
// conversational turns over it. Each turn is a Session: the caller sends
// text or voice through it and receives recognition transcripts, dialog
// replies and synthesized voice through optional observers. Replies are
// correlated to sessions by message id.
//
// Every registry change and every outbound message decision happens on the
// engine's single worker goroutine. Observer callbacks run on the session's
// Dispatcher.
package vps
