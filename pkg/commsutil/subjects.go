package commsutil

import (
	"fmt"
	"strings"
)

// ChannelName is the fixed name of the signal-strength method channel.
const ChannelName = "signal_strength"

// AppName is the capability namespace the channel subject is built under.
const AppName = "device"

// Default COMMS subjects. SubjectSignalStrength equals
// BuildCapabilitySubject(AppName, ChannelName, 1).
const (
	SubjectSignalStrength = "cap.device.signal_strength.v1"
	manifestSuffix        = "manifest"
	lifecycleSuffix       = "lifecycle"
)

// BuildCapabilitySubject builds a COMMS subject for a capability.
func BuildCapabilitySubject(app, name string, major int) string {
	safe := strings.ReplaceAll(name, ".", "_")
	return fmt.Sprintf("cap.%s.%s.v%d", app, safe, major)
}

// BuildManifestSubject returns the side subject the channel manifest is served on.
func BuildManifestSubject(channelSubject string) string {
	return channelSubject + "." + manifestSuffix
}

// BuildLifecycleSubject returns the subject attach and detach events are published on.
func BuildLifecycleSubject(channelSubject string) string {
	return channelSubject + "." + lifecycleSuffix
}
