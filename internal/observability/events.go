package observability

// EventEnvelope is the wire shape of connection-lifecycle events published to
// the topic exchange. Consumers route on EventType and switch on EventName.
type EventEnvelope struct {
	EventType string `json:"event_type"`
	EventName string `json:"event_name"`
	Payload   any    `json:"payload"`
}

// BuildHeaders carries the request and trace ids into AMQP message headers so
// consumers can correlate events with the originating request.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := make(map[string]string, 2)
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
