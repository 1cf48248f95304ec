// Package registry constructs and owns every Device Connection in the
// fleet from a device-list configuration, and maps the Dispatcher's
// flat slot addressing onto them.
package registry
