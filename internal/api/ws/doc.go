// Package ws streams runs over WebSocket.
//
// A client sends {"type":"run","ref":"r1","lesson_id":1,"source":"..."} and
// receives one "log" event per captured line as it happens, an "alert"
// event once the alert delay has passed, and a final "result" event with
// the full outcome. "playground" frames work the same without a lesson.
package ws
