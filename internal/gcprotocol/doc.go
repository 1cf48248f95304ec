// Package gcprotocol implements the Global Caché Unified TCP wire
// protocol used by the iTach IP2IR device family: ASCII,
// carriage-return terminated commands and responses.
//
// # Commands
//
// sendir transmits an IR waveform; stopir cancels an in-progress
// repeat; getdevices/get_IRL/getversion are informational queries.
// Responses are parsed into typed Frame values the caller correlates
// by request id.
package gcprotocol
