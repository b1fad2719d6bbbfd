package audio

import (
	"strings"

	"cuecard/internal/domain"
)

const monitorSuffix = ".monitor"

// describeSource classifies a PulseAudio source by its id. Monitors of output
// sinks carry the ".monitor" suffix.
func describeSource(id, label string) domain.AudioDevice {
	kind := domain.DeviceKindInput
	if strings.HasSuffix(id, monitorSuffix) {
		kind = domain.DeviceKindMonitor
	}
	label = strings.TrimSpace(label)
	if label == id {
		label = ""
	}
	return domain.AudioDevice{ID: id, Label: label, Kind: kind}
}
