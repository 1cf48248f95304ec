// Package keyset decodes RedRat KeyManager XML keyset databases into a
// canonical catalogue of IR waveforms expressed in modulation cycles,
// ready for dispatch to Global Caché devices.
//
// # Format
//
// A KeyManager document lists AVDevices, each carrying a Signals block
// of IRPacket entries. Only ProntoModulatedSignal packets are decoded;
// other packet types are skipped with a diagnostic. Each packet's
// SigData is a base64-encoded index stream into a shared Lengths table,
// split into base and repeat segments by a 0x7F sentinel.
//
// # Thread Safety
//
// A KeysetCatalogue is immutable after Decode returns. Concurrent reads
// require no synchronization.
package keyset
