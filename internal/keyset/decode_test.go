package keyset

import (
	"encoding/base64"
	"fmt"
	"testing"
)

func buildDoc(sigDataB64 string, lengths []float64, freq, intraPause string, noRepeats string, pktType string) []byte {
	lengthsXML := ""
	for _, l := range lengths {
		lengthsXML += fmt.Sprintf("<double>%v</double>", l)
	}
	return []byte(fmt.Sprintf(`<AVDeviceDB>
  <AVDevices>
    <AVDevice>
      <Name>TestTV</Name>
      <Signals>
        <IRPacket type="%s">
          <Name>Power</Name>
          <ModulationFreq>%s</ModulationFreq>
          <NoRepeats>%s</NoRepeats>
          <IntraSigPause>%s</IntraSigPause>
          <Lengths>%s</Lengths>
          <SigData>%s</SigData>
        </IRPacket>
      </Signals>
    </AVDevice>
  </AVDevices>
</AVDeviceDB>`, pktType, freq, noRepeats, intraPause, lengthsXML, sigDataB64))
}

func TestDecode_S1(t *testing.T) {
	raw := []byte{0, 0, 0, 1, 0, 127, 0, 1, 0, 0, 0, 127}
	sigData := base64.StdEncoding.EncodeToString(raw)
	doc := buildDoc(sigData, []float64{0.25, 1.0}, "40000", "5.0", "1", prontoModulatedSignal)

	cat, diags, err := Decode(doc)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}

	wave, err := cat.Lookup("TestTV", "Power")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	wantBase := []int{10, 40}
	wantRepeat := []int{40, 10}
	if !intsEqual(wave.BaseCycles, wantBase) {
		t.Errorf("BaseCycles = %v, want %v", wave.BaseCycles, wantBase)
	}
	if !intsEqual(wave.RepeatCycles, wantRepeat) {
		t.Errorf("RepeatCycles = %v, want %v", wave.RepeatCycles, wantRepeat)
	}
	if wave.IntraSigPauseCycles != 200 {
		t.Errorf("IntraSigPauseCycles = %d, want 200", wave.IntraSigPauseCycles)
	}
}

func TestDecode_SkipsUnsupportedType(t *testing.T) {
	raw := []byte{0, 0, 0, 1, 0, 127}
	sigData := base64.StdEncoding.EncodeToString(raw)
	doc := buildDoc(sigData, []float64{0.25, 1.0}, "38000", "10", "1", "DoubleSignal")

	cat, diags, err := Decode(doc)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want exactly one skip diagnostic", diags)
	}
	if _, err := cat.Lookup("TestTV", "Power"); err == nil {
		t.Error("expected unsupported packet to be absent from catalogue")
	}
}

func TestDecode_IntraSigPauseFloor(t *testing.T) {
	raw := []byte{0, 0, 0, 1, 0, 127}
	sigData := base64.StdEncoding.EncodeToString(raw)
	// IntraSigPause of 0.01ms at 40kHz quantizes to 0 cycles before the floor.
	doc := buildDoc(sigData, []float64{0.25, 1.0}, "40000", "0.01", "1", prontoModulatedSignal)

	cat, _, err := Decode(doc)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	wave, err := cat.Lookup("TestTV", "Power")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if wave.IntraSigPauseCycles != minIntraSigPauseCycles {
		t.Errorf("IntraSigPauseCycles = %d, want floor %d", wave.IntraSigPauseCycles, minIntraSigPauseCycles)
	}
}

func TestDecode_IndexOutOfRange(t *testing.T) {
	raw := []byte{0, 5, 0, 127} // index 5, only 2 lengths defined
	sigData := base64.StdEncoding.EncodeToString(raw)
	doc := buildDoc(sigData, []float64{0.25, 1.0}, "40000", "5.0", "1", prontoModulatedSignal)

	if _, _, err := Decode(doc); err == nil {
		t.Error("expected BadKeyset error for out-of-range index")
	}
}

func TestDecode_DuplicateKeyOverwritesWithDiagnostic(t *testing.T) {
	raw := []byte{0, 0, 0, 1, 0, 127}
	sigData := base64.StdEncoding.EncodeToString(raw)
	doc := []byte(fmt.Sprintf(`<AVDeviceDB>
  <AVDevices>
    <AVDevice>
      <Name>TestTV</Name>
      <Signals>
        <IRPacket type="ProntoModulatedSignal">
          <Name>Power</Name>
          <ModulationFreq>40000</ModulationFreq>
          <NoRepeats>1</NoRepeats>
          <IntraSigPause>5.0</IntraSigPause>
          <Lengths><double>0.25</double><double>1.0</double></Lengths>
          <SigData>%s</SigData>
        </IRPacket>
        <IRPacket type="ProntoModulatedSignal">
          <Name>Power</Name>
          <ModulationFreq>38000</ModulationFreq>
          <NoRepeats>2</NoRepeats>
          <IntraSigPause>5.0</IntraSigPause>
          <Lengths><double>0.25</double><double>1.0</double></Lengths>
          <SigData>%s</SigData>
        </IRPacket>
      </Signals>
    </AVDevice>
  </AVDevices>
</AVDeviceDB>`, sigData, sigData))

	cat, diags, err := Decode(doc)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want exactly one duplicate-key diagnostic", diags)
	}
	wave, err := cat.Lookup("TestTV", "Power")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if wave.RepeatCountDefault != 2 {
		t.Errorf("RepeatCountDefault = %d, want 2 (later entry should win)", wave.RepeatCountDefault)
	}
}

func TestQuantize_Fidelity(t *testing.T) {
	// Invariant 1: cumulative drift stays under one cycle across the
	// whole sequence, not just per element.
	msValues := []float64{0.3, 0.3, 0.3, 0.3, 0.3}
	freq := 40000.0
	cycles := quantize(msValues, freq)

	var wantTotalMs, gotTotalMs float64
	for _, ms := range msValues {
		wantTotalMs += ms
	}
	for _, c := range cycles {
		gotTotalMs += float64(c) / freq * 1000
	}

	drift := gotTotalMs - wantTotalMs
	if drift < 0 {
		drift = -drift
	}
	maxDrift := 1 / freq * 1000
	if drift >= maxDrift {
		t.Errorf("cumulative drift %v ms exceeds one cycle (%v ms)", drift, maxDrift)
	}
}

func TestQuantize_NeverEmitsZero(t *testing.T) {
	// A value that would round to 0 cycles must be clamped to 1.
	cycles := quantize([]float64{0.001}, 1000)
	if len(cycles) != 1 || cycles[0] != 1 {
		t.Errorf("quantize(0.001ms) = %v, want [1]", cycles)
	}
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
