package keyset

import "encoding/xml"

// xmlKeyManager mirrors the subset of the RedRat KeyManager schema this
// decoder cares about. Unrecognised elements are left for encoding/xml
// to ignore.
type xmlKeyManager struct {
	XMLName xml.Name      `xml:"AVDeviceDB"`
	Devices []xmlAVDevice `xml:"AVDevices>AVDevice"`
}

type xmlAVDevice struct {
	Name    string        `xml:"Name"`
	Signals []xmlIRPacket `xml:"Signals>IRPacket"`
}

// xmlIRPacket represents one named signal. Type distinguishes
// ProntoModulatedSignal (the only kind this decoder understands) from
// other RedRat signal encodings such as DoubleSignal.
type xmlIRPacket struct {
	Type           string     `xml:"type,attr"`
	Name           string     `xml:"Name"`
	ModulationFreq string     `xml:"ModulationFreq"`
	NoRepeats      string     `xml:"NoRepeats"`
	IntraSigPause  string     `xml:"IntraSigPause"`
	Lengths        xmlLengths `xml:"Lengths"`
	SigData        string     `xml:"SigData"`
}

type xmlLengths struct {
	Values []float64 `xml:"double"`
}

const prontoModulatedSignal = "ProntoModulatedSignal"
