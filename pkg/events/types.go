// Package events defines channel lifecycle events and their publishers.
package events

// Lifecycle states.
const (
	StateAttached = "attached"
	StateDetached = "detached"
)

// LifecycleEvent is emitted when the bridge binds to or unbinds from its channel.
type LifecycleEvent struct {
	Channel   string `json:"channel"`
	Subject   string `json:"subject"`
	State     string `json:"state"`
	Telephony bool   `json:"telephony"`
	Wifi      bool   `json:"wifi"`
	Timestamp string `json:"timestamp"`
}
