package hackrf

import "fmt"

// Gain limits in dB.
const (
	MaxRxVGAGain = 62
	MaxTxVGAGain = 47
	MaxRxLNAGain = 40
)

// Explicit tuning limits in Hz.
const (
	MinIFFrequency = 2_150_000_000
	MaxIFFrequency = 2_750_000_000
	MinLOFrequency = 84_375_000
	MaxLOFrequency = 5_400_000_000
)

// basebandBandwidths lists the MAX2837 filter settings in ascending order.
var basebandBandwidths = [...]int{
	1_750_000, 2_500_000, 3_500_000, 5_000_000, 5_500_000, 6_000_000,
	7_000_000, 8_000_000, 9_000_000, 10_000_000, 12_000_000, 14_000_000,
	15_000_000, 20_000_000, 24_000_000, 28_000_000,
}

// ComputeBasebandFilterBandwidth returns the widest supported filter that does
// not exceed sampleRate, or the narrowest filter when sampleRate is below all
// of them.
func ComputeBasebandFilterBandwidth(sampleRate int) int {
	bw := basebandBandwidths[0]
	for _, candidate := range basebandBandwidths {
		if sampleRate < candidate {
			break
		}
		bw = candidate
	}
	return bw
}

// SetSampleRate programs the sample rate as rate/divider Hz.
func (d *Device) SetSampleRate(rate, divider int32) error {
	if rate <= 0 {
		return invalid("sample rate", int64(rate), "must be positive")
	}
	if divider <= 0 {
		return invalid("sample rate divider", int64(divider), "must be positive")
	}
	payload := AppendInt32(AppendInt32(make([]byte, 0, 8), rate), divider)
	return d.ctl.expect(Request{
		Direction: HostToDevice,
		Command:   reqSampleRateSet,
		Data:      payload,
	}, len(payload))
}

// SetSampleRateAuto sets rate with divider 1 and the matching baseband filter.
func (d *Device) SetSampleRateAuto(rate int32) error {
	if err := d.SetSampleRate(rate, 1); err != nil {
		return err
	}
	return d.SetBasebandFilterBandwidth(uint32(ComputeBasebandFilterBandwidth(int(rate))))
}

// SetBasebandFilterBandwidth programs the baseband filter. The bandwidth is
// carried in the request value (low 16 bits) and index (high 16 bits).
func (d *Device) SetBasebandFilterBandwidth(bandwidth uint32) error {
	return d.ctl.expect(Request{
		Direction: HostToDevice,
		Command:   reqBasebandFilterBandwidthSet,
		Value:     uint16(bandwidth & 0xffff),
		Index:     uint16(bandwidth >> 16),
	}, 0)
}

// SetRxVGAGain sets the receive baseband gain. Odd values are rounded down
// to the 2 dB step.
func (d *Device) SetRxVGAGain(gain int) error {
	if gain < 0 || gain > MaxRxVGAGain {
		return invalid("rx vga gain", int64(gain), "must be within [0,%d]", MaxRxVGAGain)
	}
	return d.setGain(reqSetVGAGain, gain-gain%2)
}

// SetTxVGAGain sets the transmit gain in 1 dB steps.
func (d *Device) SetTxVGAGain(gain int) error {
	if gain < 0 || gain > MaxTxVGAGain {
		return invalid("tx vga gain", int64(gain), "must be within [0,%d]", MaxTxVGAGain)
	}
	return d.setGain(reqSetTxVGAGain, gain)
}

// SetRxLNAGain sets the receive RF gain. Values are rounded down to the 8 dB
// step before the range check, so 41..47 all select 40.
func (d *Device) SetRxLNAGain(gain int) error {
	if gain < 0 {
		return invalid("rx lna gain", int64(gain), "must be within [0,%d]", MaxRxLNAGain)
	}
	q := gain - gain%8
	if q > MaxRxLNAGain {
		return invalid("rx lna gain", int64(gain), "must be within [0,%d]", MaxRxLNAGain)
	}
	return d.setGain(reqSetLNAGain, q)
}

// setGain sends a gain request; the firmware echoes one byte, zero when it
// refused the value.
func (d *Device) setGain(command uint8, gain int) error {
	echo := make([]byte, 1)
	err := d.ctl.expect(Request{
		Direction: DeviceToHost,
		Command:   command,
		Index:     uint16(gain),
		Data:      echo,
	}, 1)
	if err != nil {
		return err
	}
	if echo[0] == 0 {
		return fmt.Errorf("gain %d (request %d): %w", gain, command, ErrRejected)
	}
	return nil
}

// SetFrequency tunes to freqHz, sent as whole megahertz plus residual hertz.
func (d *Device) SetFrequency(freqHz int64) error {
	if freqHz < 0 || freqHz/1_000_000 > 1<<31-1 {
		return invalid("frequency", freqHz, "out of range")
	}
	mhz := freqHz / 1_000_000
	hz := freqHz - mhz*1_000_000
	payload := AppendInt32(AppendInt32(make([]byte, 0, 8), int32(mhz)), int32(hz))
	return d.ctl.expect(Request{
		Direction: HostToDevice,
		Command:   reqSetFreq,
		Data:      payload,
	}, len(payload))
}

// SetFrequencyExplicit tunes with an explicit IF, LO and RF filter path. The
// LO range is not checked for the bypass path, which does not use the LO.
func (d *Device) SetFrequencyExplicit(ifHz, loHz int64, path RFPath) error {
	payload, err := explicitFrequencyPayload(ifHz, loHz, path)
	if err != nil {
		return err
	}
	return d.ctl.expect(Request{
		Direction: HostToDevice,
		Command:   reqSetFreqExplicit,
		Data:      payload,
	}, len(payload))
}

func explicitFrequencyPayload(ifHz, loHz int64, path RFPath) ([]byte, error) {
	if ifHz < MinIFFrequency || ifHz > MaxIFFrequency {
		return nil, invalid("if frequency", ifHz, "must be within [%d,%d]", int64(MinIFFrequency), int64(MaxIFFrequency))
	}
	if path > PathHighPass {
		return nil, invalid("rf path", int64(path), "must be 0 (bypass), 1 (low-pass) or 2 (high-pass)")
	}
	if path != PathBypass && (loHz < MinLOFrequency || loHz > MaxLOFrequency) {
		return nil, invalid("lo frequency", loHz, "must be within [%d,%d]", int64(MinLOFrequency), int64(MaxLOFrequency))
	}
	payload := make([]byte, 0, 17)
	payload = AppendInt64(payload, ifHz)
	payload = AppendInt64(payload, loHz)
	return append(payload, byte(path)), nil
}

// SetAmp switches the RF amplifier.
func (d *Device) SetAmp(enable bool) error {
	return d.ctl.expect(Request{
		Direction: HostToDevice,
		Command:   reqAmpEnable,
		Value:     boolValue(enable),
	}, 0)
}

// SetAntennaPower switches the antenna port bias supply. Jellybean and
// Jawbreaker boards cannot do this and get ErrUnsupported without a request
// being sent.
func (d *Device) SetAntennaPower(enable bool) error {
	board, err := d.BoardID()
	if err != nil {
		return err
	}
	if !board.supportsAntennaPower() {
		return fmt.Errorf("antenna power on %s: %w", board, ErrUnsupported)
	}
	return d.ctl.expect(Request{
		Direction: HostToDevice,
		Command:   reqAntennaEnable,
		Value:     boolValue(enable),
	}, 0)
}

func boolValue(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

// BoardID reads the board identity byte.
func (d *Device) BoardID() (Board, error) {
	buf := make([]byte, 1)
	if err := d.ctl.expect(Request{Direction: DeviceToHost, Command: reqBoardIDRead, Data: buf}, 1); err != nil {
		return 0, err
	}
	return Board(buf[0]), nil
}

// BoardName returns the human-readable board name.
func (d *Device) BoardName() (string, error) {
	b, err := d.BoardID()
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// VersionString reads the firmware version.
func (d *Device) VersionString() (string, error) {
	buf := make([]byte, 255)
	n, err := d.ctl.atLeast(Request{Direction: DeviceToHost, Command: reqVersionStringRead, Data: buf}, 1)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// PartIDSerial is the MCU part ID and the board serial number.
type PartIDSerial struct {
	PartID   [2]uint32
	SerialNo [4]uint32
}

// Serial formats the serial number the way hackrf_info prints it.
func (p PartIDSerial) Serial() string {
	return fmt.Sprintf("%08x%08x%08x%08x", p.SerialNo[0], p.SerialNo[1], p.SerialNo[2], p.SerialNo[3])
}

// PartIDSerialNo reads the part ID and serial number.
func (d *Device) PartIDSerialNo() (PartIDSerial, error) {
	var out PartIDSerial
	buf := make([]byte, 24)
	if err := d.ctl.expect(Request{Direction: DeviceToHost, Command: reqBoardPartIDSerialNoRead, Data: buf}, len(buf)); err != nil {
		return out, err
	}
	for i := range out.PartID {
		out.PartID[i] = uint32(DecodeInt32(buf, 4*i))
	}
	for i := range out.SerialNo {
		out.SerialNo[i] = uint32(DecodeInt32(buf, 8+4*i))
	}
	return out, nil
}
