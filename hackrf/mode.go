package hackrf

// Mode is the transceiver mode. The numeric values are the wire values of the
// set-transceiver-mode request.
type Mode uint8

const (
	ModeOff      Mode = 0
	ModeReceive  Mode = 1
	ModeTransmit Mode = 2
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeReceive:
		return "receive"
	case ModeTransmit:
		return "transmit"
	default:
		return "invalid"
	}
}

// MarshalText renders the mode by name in JSON and logs.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText accepts the names produced by MarshalText.
func (m *Mode) UnmarshalText(b []byte) error {
	for _, c := range []Mode{ModeOff, ModeReceive, ModeTransmit} {
		if string(b) == c.String() {
			*m = c
			return nil
		}
	}
	return &ValidationError{Field: "transceiver mode", Value: -1, Reason: "unknown name " + string(b)}
}

func (m Mode) valid() bool { return m <= ModeTransmit }

// The session state packs a session generation above the mode byte so a worker
// can watch a single atomic value: any transition, including a restart into
// the same mode, changes it.
const modeMask = 0xff

func stateMode(s uint64) Mode { return Mode(s & modeMask) }

func withMode(s uint64, m Mode) uint64 { return s&^modeMask | uint64(m) }

func nextSession(s uint64, m Mode) uint64 { return (s>>8+1)<<8 | uint64(m) }

// Mode returns the in-memory transceiver mode.
func (d *Device) Mode() Mode { return stateMode(d.state.Load()) }

// SetMode records m as the current mode and then sends the mode change to the
// hardware. The in-memory mode changes first, so a failed call leaves the
// hardware state unknown; recover by calling Stop. A running streaming worker
// whose mode no longer matches exits on its next iteration.
func (d *Device) SetMode(m Mode) error {
	d.modeMu.Lock()
	defer d.modeMu.Unlock()
	return d.setModeLocked(d.state.Load(), m)
}

func (d *Device) setModeLocked(cur uint64, m Mode) error {
	if !m.valid() {
		return invalid("transceiver mode", int64(m), "must be off, receive or transmit")
	}
	next := withMode(cur, m)
	d.state.Store(next)
	if d.quit != nil && next != d.quitWant {
		close(d.quit)
		d.quit = nil
	}
	return d.ctl.expect(Request{
		Direction: HostToDevice,
		Command:   reqSetTransceiverMode,
		Value:     uint16(m),
	}, 0)
}
