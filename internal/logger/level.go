package logger

import "strings"

// DiffToInfo offsets Level so that LevelInfo lands on logr's conventional
// "info" severity 0 once a LogSink is driven from a Level.
const DiffToInfo = 1

// Level enumerates the driver's log severities, in increasing verbosity.
type Level int

const (
	// LevelOff suppresses logging entirely.
	LevelOff Level = iota

	// LevelInfo logs high-level driver lifecycle events: topology opened or
	// closed, server selection started or succeeded.
	LevelInfo

	// LevelDebug logs individual commands, replies, and SDAM state
	// transitions.
	LevelDebug
)

var levelLiteralMap = map[string]Level{
	"off":   LevelOff,
	"error": LevelInfo,
	"warn":  LevelInfo,
	"info":  LevelInfo,
	"debug": LevelDebug,
	"trace": LevelDebug,
}

// ParseLevel maps an environment-variable literal to a Level, defaulting to
// LevelOff for anything unrecognized.
func ParseLevel(str string) Level {
	for literal, level := range levelLiteralMap {
		if strings.EqualFold(literal, str) {
			return level
		}
	}
	return LevelOff
}

// Component names a subsystem whose verbosity can be configured
// independently of the others.
type Component string

const (
	ComponentCommand         Component = "command"
	ComponentTopology        Component = "topology"
	ComponentServerSelection Component = "serverSelection"
	ComponentConnection      Component = "connection"
)

var allComponents = []Component{
	ComponentCommand,
	ComponentTopology,
	ComponentServerSelection,
	ComponentConnection,
}

func envVarForComponent(c Component) string {
	switch c {
	case ComponentCommand:
		return "MONGODB_LOG_COMMAND"
	case ComponentTopology:
		return "MONGODB_LOG_TOPOLOGY"
	case ComponentServerSelection:
		return "MONGODB_LOG_SERVER_SELECTION"
	case ComponentConnection:
		return "MONGODB_LOG_CONNECTION"
	default:
		return ""
	}
}
