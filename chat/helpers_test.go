package chat_test

// shared fakes for the chat service tests

type recordedEvent struct {
	Room   string
	UserID string
	Action string
	Data   interface{}
}

// recordingBroadcaster captures events so tests can assert on fan-out without
// a live hub
type recordingBroadcaster struct {
	events []recordedEvent
}

func (r *recordingBroadcaster) ToRoom(room, action string, data interface{}) {
	r.events = append(r.events, recordedEvent{Room: room, Action: action, Data: data})
}

func (r *recordingBroadcaster) ToUser(userID, action string, data interface{}) {
	r.events = append(r.events, recordedEvent{UserID: userID, Action: action, Data: data})
}

func (r *recordingBroadcaster) actions() []string {
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Action
	}
	return out
}
