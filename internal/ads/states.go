package ads

import (
	"fmt"
	"strings"
)

// State represents the ADS state of a device (PLC runtime, system service).
type State uint16

const (
	StateInvalid    State = 0
	StateIdle       State = 1
	StateReset      State = 2
	StateInit       State = 3
	StateStart      State = 4
	StateRun        State = 5
	StateStop       State = 6
	StateSaveConfig State = 7
	StateLoadConfig State = 8
	StatePowerFail  State = 9
	StatePowerGood  State = 10
	StateError      State = 11
	StateShutdown   State = 12
	StateSuspend    State = 13
	StateResume     State = 14
	StateConfig     State = 15
	StateReconfig   State = 16
	StateStopping   State = 17
)

var stateNames = map[State]string{
	StateInvalid:    "Invalid",
	StateIdle:       "Idle",
	StateReset:      "Reset",
	StateInit:       "Init",
	StateStart:      "Start",
	StateRun:        "Run",
	StateStop:       "Stop",
	StateSaveConfig: "SaveConfig",
	StateLoadConfig: "LoadConfig",
	StatePowerFail:  "PowerFailure",
	StatePowerGood:  "PowerGood",
	StateError:      "Error",
	StateShutdown:   "Shutdown",
	StateSuspend:    "Suspend",
	StateResume:     "Resume",
	StateConfig:     "Config",
	StateReconfig:   "Reconfig",
	StateStopping:   "Stopping",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", uint16(s))
}

// ParseState resolves a state name case-insensitively.
func ParseState(name string) (State, error) {
	for state, n := range stateNames {
		if strings.EqualFold(n, name) {
			return state, nil
		}
	}
	return StateInvalid, fmt.Errorf("ads: unknown ADS state %q", name)
}
