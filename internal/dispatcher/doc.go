// Package dispatcher implements the Dispatcher façade: the single
// entry point that turns a (slot, device_name, key_name, repeats|hold)
// request into a resolved Registry lookup, a Keyset Catalogue
// waveform, a repeat-count computation, and one or more sendir
// commands on the bound Device Connection. It also fans out
// best-effort telemetry Events to registered Observers.
package dispatcher
