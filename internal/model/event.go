package model

// EventKind identifies which command produced an event.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventJudged   EventKind = "judged"
	EventClawback EventKind = "clawback"
)

// Event is the notification appended after a successful command.
//
// Payload carries exactly the fields consumers are promised:
//
//	created:  {creator, judge, deadline}
//	judged:   {habit, creator, judge, result}
//	clawback: {habit, creator}
//
// Habit, RequestID and At are envelope metadata recorded alongside.
type Event struct {
	Seq       uint64        `json:"seq"`
	Kind      EventKind     `json:"kind"`
	Habit     CommitmentRef `json:"habit"`
	RequestID string        `json:"request_id"`
	At        uint64        `json:"at"`
	Payload   Object        `json:"payload"`
}

// CreatedPayload builds the payload of a created event.
func CreatedPayload(c Commitment) Object {
	return Object{
		"creator":  String(c.Creator),
		"judge":    String(c.Judge),
		"deadline": Uint(c.Deadline),
	}
}

// JudgedPayload builds the payload of a judged event.
func JudgedPayload(c Commitment, result bool) Object {
	return Object{
		"habit":   String(c.Ref),
		"creator": String(c.Creator),
		"judge":   String(c.Judge),
		"result":  Bool(result),
	}
}

// ClawbackPayload builds the payload of a clawback event.
func ClawbackPayload(c Commitment) Object {
	return Object{
		"habit":   String(c.Ref),
		"creator": String(c.Creator),
	}
}
