package hackrf

import (
	"errors"
	"testing"
)

func TestGainQuantisationAndLimits(t *testing.T) {
	tests := []struct {
		name    string
		set     func(d *Device, g int) error
		command uint8
		gain    int
		index   uint16
		invalid bool
	}{
		{"rx vga max", (*Device).SetRxVGAGain, reqSetVGAGain, 62, 62, false},
		{"rx vga odd rounds down", (*Device).SetRxVGAGain, reqSetVGAGain, 31, 30, false},
		{"rx vga above max", (*Device).SetRxVGAGain, reqSetVGAGain, 63, 0, true},
		{"rx vga negative", (*Device).SetRxVGAGain, reqSetVGAGain, -2, 0, true},
		{"tx vga max", (*Device).SetTxVGAGain, reqSetTxVGAGain, 47, 47, false},
		{"tx vga odd kept", (*Device).SetTxVGAGain, reqSetTxVGAGain, 13, 13, false},
		{"tx vga above max", (*Device).SetTxVGAGain, reqSetTxVGAGain, 48, 0, true},
		{"lna 45 selects 40", (*Device).SetRxLNAGain, reqSetLNAGain, 45, 40, false},
		{"lna 41 selects 40", (*Device).SetRxLNAGain, reqSetLNAGain, 41, 40, false},
		{"lna 39 selects 32", (*Device).SetRxLNAGain, reqSetLNAGain, 39, 32, false},
		{"lna 48 above max", (*Device).SetRxLNAGain, reqSetLNAGain, 48, 0, true},
		{"lna negative", (*Device).SetRxLNAGain, reqSetLNAGain, -1, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newFakeHandle()
			d := newTestDevice(t, h)
			err := tc.set(d, tc.gain)
			reqs := h.recorded()
			if tc.invalid {
				if !errors.Is(err, ErrInvalidParam) {
					t.Fatalf("expected ErrInvalidParam, got %v", err)
				}
				if len(reqs) != 0 {
					t.Fatalf("rejected gain reached the device: %+v", reqs)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(reqs) != 1 {
				t.Fatalf("expected one request, got %d", len(reqs))
			}
			r := reqs[0]
			if r.Direction != DeviceToHost || r.Command != tc.command || r.Value != 0 || r.Index != tc.index {
				t.Fatalf("unexpected request %+v", r)
			}
		})
	}
}

func TestGainRejectedByDevice(t *testing.T) {
	h := newFakeHandle()
	h.control = func(req Request) (int, error) {
		req.Data[0] = 0
		return 1, nil
	}
	d := newTestDevice(t, h)
	if err := d.SetRxVGAGain(20); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestGainEchoMissing(t *testing.T) {
	h := newFakeHandle()
	h.control = func(Request) (int, error) { return 0, nil }
	d := newTestDevice(t, h)
	var te *TransferError
	if err := d.SetTxVGAGain(10); !errors.As(err, &te) || te.Got != 0 || te.Want != 1 {
		t.Fatalf("expected short transfer error, got %v", err)
	}
}

func TestSetSampleRatePayload(t *testing.T) {
	h := newFakeHandle()
	d := newTestDevice(t, h)
	if err := d.SetSampleRate(20_000_000, 2); err != nil {
		t.Fatalf("SetSampleRate: %v", err)
	}
	r := h.lastRequest(t)
	if r.Command != reqSampleRateSet || r.Direction != HostToDevice || len(r.Data) != 8 {
		t.Fatalf("unexpected request %+v", r)
	}
	if DecodeInt32(r.Data, 0) != 20_000_000 || DecodeInt32(r.Data, 4) != 2 {
		t.Fatalf("payload % x", r.Data)
	}
	if err := d.SetSampleRate(10_000_000, 0); !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("zero divider accepted: %v", err)
	}
}

func TestSetSampleRateShortWrite(t *testing.T) {
	h := newFakeHandle()
	h.control = func(Request) (int, error) { return 4, nil }
	d := newTestDevice(t, h)
	var te *TransferError
	if err := d.SetSampleRate(8_000_000, 1); !errors.As(err, &te) {
		t.Fatalf("expected TransferError, got %v", err)
	}
}

func TestSetSampleRateAutoPicksFilter(t *testing.T) {
	h := newFakeHandle()
	d := newTestDevice(t, h)
	if err := d.SetSampleRateAuto(10_000_000); err != nil {
		t.Fatalf("SetSampleRateAuto: %v", err)
	}
	reqs := h.recorded()
	if len(reqs) != 2 || reqs[1].Command != reqBasebandFilterBandwidthSet {
		t.Fatalf("unexpected requests %+v", reqs)
	}
	bw := uint32(reqs[1].Index)<<16 | uint32(reqs[1].Value)
	if bw != 10_000_000 {
		t.Fatalf("bandwidth = %d", bw)
	}
}

func TestBasebandFilterSplitsValueAndIndex(t *testing.T) {
	h := newFakeHandle()
	d := newTestDevice(t, h)
	if err := d.SetBasebandFilterBandwidth(1_750_000); err != nil {
		t.Fatalf("SetBasebandFilterBandwidth: %v", err)
	}
	r := h.lastRequest(t)
	if r.Value != 0xb3b0 || r.Index != 0x001a || len(r.Data) != 0 {
		t.Fatalf("unexpected request %+v", r)
	}
}

func TestComputeBasebandFilterBandwidth(t *testing.T) {
	tests := map[int]int{
		0:          1_750_000,
		1_000_000:  1_750_000,
		1_750_000:  1_750_000,
		9_500_000:  9_000_000,
		20_000_000: 20_000_000,
		50_000_000: 28_000_000,
	}
	for in, want := range tests {
		if got := ComputeBasebandFilterBandwidth(in); got != want {
			t.Fatalf("ComputeBasebandFilterBandwidth(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestSetFrequencySplitsMegahertz(t *testing.T) {
	h := newFakeHandle()
	d := newTestDevice(t, h)
	if err := d.SetFrequency(2_450_123_456); err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}
	r := h.lastRequest(t)
	if r.Command != reqSetFreq || DecodeInt32(r.Data, 0) != 2450 || DecodeInt32(r.Data, 4) != 123_456 {
		t.Fatalf("unexpected request %+v", r)
	}
	if err := d.SetFrequency(-1); !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("negative frequency accepted: %v", err)
	}
}

func TestSetFrequencyExplicit(t *testing.T) {
	h := newFakeHandle()
	d := newTestDevice(t, h)

	if err := d.SetFrequencyExplicit(2_000_000_000, 1_000_000_000, PathLowPass); !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("IF below range accepted: %v", err)
	}
	if err := d.SetFrequencyExplicit(2_500_000_000, 1_000_000_000, RFPath(5)); !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("bad path accepted: %v", err)
	}
	if err := d.SetFrequencyExplicit(2_500_000_000, 10_000_000, PathHighPass); !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("LO below range accepted: %v", err)
	}
	if n := len(h.recorded()); n != 0 {
		t.Fatalf("invalid tuning reached the device: %d requests", n)
	}

	if err := d.SetFrequencyExplicit(2_500_000_000, 100_000_000, PathBypass); err != nil {
		t.Fatalf("SetFrequencyExplicit: %v", err)
	}
	r := h.lastRequest(t)
	if r.Command != reqSetFreqExplicit || len(r.Data) != 17 {
		t.Fatalf("unexpected request %+v", r)
	}
	if DecodeInt64(r.Data, 0) != 2_500_000_000 || DecodeInt64(r.Data, 8) != 100_000_000 || r.Data[16] != byte(PathBypass) {
		t.Fatalf("payload % x", r.Data)
	}
}

func TestSetAmp(t *testing.T) {
	h := newFakeHandle()
	d := newTestDevice(t, h)
	if err := d.SetAmp(true); err != nil {
		t.Fatalf("SetAmp: %v", err)
	}
	if r := h.lastRequest(t); r.Command != reqAmpEnable || r.Value != 1 {
		t.Fatalf("unexpected request %+v", r)
	}
}

func TestAntennaPowerRefusedOnOldBoards(t *testing.T) {
	for _, board := range []Board{BoardJellybean, BoardJawbreaker} {
		h := newFakeHandle()
		h.board = board
		d := newTestDevice(t, h)
		if err := d.SetAntennaPower(true); !errors.Is(err, ErrUnsupported) {
			t.Fatalf("%s: expected ErrUnsupported, got %v", board, err)
		}
		for _, r := range h.recorded() {
			if r.Command == reqAntennaEnable {
				t.Fatalf("%s: antenna request sent", board)
			}
		}
	}

	h := newFakeHandle()
	d := newTestDevice(t, h)
	if err := d.SetAntennaPower(true); err != nil {
		t.Fatalf("HackRF One: %v", err)
	}
	if r := h.lastRequest(t); r.Command != reqAntennaEnable || r.Value != 1 {
		t.Fatalf("unexpected request %+v", r)
	}
}

func TestBoardQueries(t *testing.T) {
	h := newFakeHandle()
	h.board = BoardRad1o
	d := newTestDevice(t, h)

	name, err := d.BoardName()
	if err != nil || name != "rad1o" {
		t.Fatalf("BoardName = %q, %v", name, err)
	}
	v, err := d.VersionString()
	if err != nil || v != "2024.02.1" {
		t.Fatalf("VersionString = %q, %v", v, err)
	}
	ps, err := d.PartIDSerialNo()
	if err != nil {
		t.Fatalf("PartIDSerialNo: %v", err)
	}
	if ps.PartID[0] != 0x03020100 || ps.SerialNo[3] != 0x17161514 {
		t.Fatalf("unexpected part/serial %+v", ps)
	}
	if got := ps.Serial(); got != "0b0a09080f0e0d0c1312111017161514" {
		t.Fatalf("Serial = %s", got)
	}
	if Board(9).String() != "Invalid Board ID" {
		t.Fatal("unknown board name")
	}
}

func TestShortQueryResponses(t *testing.T) {
	h := newFakeHandle()
	h.control = func(req Request) (int, error) {
		if req.Command == reqBoardPartIDSerialNoRead {
			return 20, nil
		}
		return 0, nil
	}
	d := newTestDevice(t, h)
	var te *TransferError
	if _, err := d.BoardID(); !errors.As(err, &te) {
		t.Fatalf("BoardID: expected TransferError, got %v", err)
	}
	if _, err := d.VersionString(); !errors.As(err, &te) {
		t.Fatalf("VersionString: expected TransferError, got %v", err)
	}
	if _, err := d.PartIDSerialNo(); !errors.As(err, &te) || te.Got != 20 || te.Want != 24 {
		t.Fatalf("PartIDSerialNo: expected short TransferError, got %v", err)
	}
}

func TestControlClaimReleasePaired(t *testing.T) {
	h := newFakeHandle()
	h.control = func(Request) (int, error) { return 0, errors.New("pipe") }
	d := newTestDevice(t, h)
	_ = d.SetAmp(false)
	_ = d.SetAmp(true)
	_, _ = d.BoardID()
	if h.claims != 3 || h.releases != 3 {
		t.Fatalf("claims %d releases %d", h.claims, h.releases)
	}

	h = newFakeHandle()
	h.claimErr = errors.New("busy")
	d = newTestDevice(t, h)
	var te *TransferError
	if err := d.SetAmp(true); !errors.As(err, &te) || te.Op != "claim interface" {
		t.Fatalf("expected claim TransferError, got %v", err)
	}
	if len(h.recorded()) != 0 || h.releases != 0 {
		t.Fatal("control ran without a claimed interface")
	}
}
