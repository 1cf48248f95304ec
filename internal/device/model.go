package device

import "strings"

// Model identifies the Global Caché hardware family behind a connection.
// Real firmware caps the sendir <repeat> field differently per model;
// the Dispatcher uses MaxRepeats to decide when press_and_hold must fall
// back to a continuous burst instead of one oversized command.
type Model int

const (
	ModelUnknown Model = iota
	ModelITach
	ModelGC100
	ModelFlex
	ModelGlobalConnect
)

func (m Model) String() string {
	switch m {
	case ModelITach:
		return "iTach"
	case ModelGC100:
		return "GC-100"
	case ModelFlex:
		return "Flex"
	case ModelGlobalConnect:
		return "GlobalConnect"
	default:
		return "Unknown"
	}
}

// MaxRepeats returns the model's firmware-observed cap on the sendir
// <repeat> field. ModelUnknown defaults to the iTach cap since it is the
// fleet's predominant hardware.
func (m Model) MaxRepeats() int {
	switch m {
	case ModelGC100:
		return 31
	case ModelFlex, ModelGlobalConnect:
		return 20
	default:
		return 50
	}
}

// detectModel inspects a getversion,0 response line for a recognizable
// model token. Returns ModelUnknown if nothing matches.
func detectModel(versionLine string) Model {
	switch {
	case strings.Contains(versionLine, "iTach"):
		return ModelITach
	case strings.Contains(versionLine, "GC-100"):
		return ModelGC100
	case strings.Contains(versionLine, "Flex"):
		return ModelFlex
	case strings.Contains(versionLine, "Global Connect"):
		return ModelGlobalConnect
	default:
		return ModelUnknown
	}
}
