package hackrf

// Direction selects the data stage direction of a vendor control request.
type Direction uint8

const (
	// HostToDevice is a vendor request with an OUT (or empty) data stage.
	HostToDevice Direction = 0x40
	// DeviceToHost is a vendor request with an IN data stage.
	DeviceToHost Direction = 0xC0
)

func (d Direction) String() string {
	switch d {
	case HostToDevice:
		return "out"
	case DeviceToHost:
		return "in"
	default:
		return "unknown"
	}
}

// Vendor request codes understood by the HackRF firmware.
const (
	reqSetTransceiverMode         uint8 = 1
	reqSampleRateSet              uint8 = 6
	reqBasebandFilterBandwidthSet uint8 = 7
	reqBoardIDRead                uint8 = 14
	reqVersionStringRead          uint8 = 15
	reqSetFreq                    uint8 = 16
	reqAmpEnable                  uint8 = 17
	reqBoardPartIDSerialNoRead    uint8 = 18
	reqSetLNAGain                 uint8 = 19
	reqSetVGAGain                 uint8 = 20
	reqSetTxVGAGain               uint8 = 21
	reqAntennaEnable              uint8 = 23
	reqSetFreqExplicit            uint8 = 24
)

// USB identity of supported boards.
const (
	VendorID          = 0x1d50
	ProductHackRFOne  = 0x6089
	ProductJawbreaker = 0x604b
	ProductRad1o      = 0xcc15
)

// Stream endpoint numbers on interface 0.
const (
	StreamInEndpoint  = 1 // address 0x81
	StreamOutEndpoint = 2 // address 0x02
	StreamInterface   = 0
)

// Engine defaults.
const (
	DefaultBlockSize       = 16 * 1024
	DefaultInFlight        = 4
	DefaultQueueBytes      = 16 << 20
	DefaultTransmitTimeout = 1000 // milliseconds
)

// Request is one vendor control request. Data is the payload written for
// HostToDevice requests and the receive buffer for DeviceToHost requests.
type Request struct {
	Direction Direction
	Command   uint8
	Value     uint16
	Index     uint16
	Data      []byte
}

// Board identifies the HackRF hardware revision reported by the firmware.
type Board uint8

const (
	BoardJellybean  Board = 0
	BoardJawbreaker Board = 1
	BoardHackRFOne  Board = 2
	BoardRad1o      Board = 3
)

func (b Board) String() string {
	switch b {
	case BoardJellybean:
		return "Jellybean"
	case BoardJawbreaker:
		return "Jawbreaker"
	case BoardHackRFOne:
		return "HackRF One"
	case BoardRad1o:
		return "rad1o"
	default:
		return "Invalid Board ID"
	}
}

// supportsAntennaPower reports whether the antenna port bias can be switched.
func (b Board) supportsAntennaPower() bool {
	return b != BoardJellybean && b != BoardJawbreaker
}

// RFPath selects the RF filter path for explicit tuning.
type RFPath uint8

const (
	PathBypass   RFPath = 0
	PathLowPass  RFPath = 1
	PathHighPass RFPath = 2
)

func (p RFPath) String() string {
	switch p {
	case PathBypass:
		return "bypass"
	case PathLowPass:
		return "low-pass"
	case PathHighPass:
		return "high-pass"
	default:
		return "invalid"
	}
}
