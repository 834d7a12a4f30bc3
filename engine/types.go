package engine

// InvalidSeat marks "no seat" in turn pointers and event fields.
const InvalidSeat = -1

// Status 会话状态机
type Status byte

const (
	StatusLobby Status = iota
	StatusRoleAssignment
	StatusInProgress
	StatusFinished
	StatusAborted
)

var StatusDictionary = map[Status]string{
	StatusLobby:          "lobby",
	StatusRoleAssignment: "role_assignment",
	StatusInProgress:     "in_progress",
	StatusFinished:       "finished",
	StatusAborted:        "aborted",
}

func (s Status) String() string { return StatusDictionary[s] }

// Ended reports whether the session reached a terminal status.
func (s Status) Ended() bool { return s == StatusFinished || s == StatusAborted }

// Role 身份：0-NONE 1-LORD 2-LOYALIST 3-REBEL 4-RENEGADE
type Role byte

const (
	RoleNone Role = iota
	RoleLord
	RoleLoyalist
	RoleRebel
	RoleRenegade
)

var RoleDictionary = map[Role]string{
	RoleNone:     "none",
	RoleLord:     "lord",
	RoleLoyalist: "loyalist",
	RoleRebel:    "rebel",
	RoleRenegade: "renegade",
}

func (r Role) String() string { return RoleDictionary[r] }

// RoleFromName maps a role name back to its enum value.
func RoleFromName(name string) (Role, bool) {
	for r, n := range RoleDictionary {
		if n == name {
			return r, true
		}
	}
	return RoleNone, false
}

// Phase 回合阶段
type Phase byte

const (
	PhaseNone Phase = iota
	PhaseDraw
	PhasePlay
	PhaseEnd
)

var PhaseDictionary = map[Phase]string{
	PhaseNone: "none",
	PhaseDraw: "draw",
	PhasePlay: "play",
	PhaseEnd:  "end",
}

func (p Phase) String() string { return PhaseDictionary[p] }
