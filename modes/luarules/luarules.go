// Package luarules registers game modes described by Lua scripts. A script
// returns a Mode descriptor tuning the standard rule set:
//
//	return Mode.new("marathon", {
//	    base_hp = 6,
//	    lord_hp_bonus = 2,
//	    draw_per_turn = 3,
//	    double_renegade = true,
//	})
//
// Omitted fields keep their standard values. Scripts cannot inject code into
// the engine; they only pick numbers, so replay determinism is unaffected.
package luarules

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"

	"kingdoms-lite/engine"
	"kingdoms-lite/modes"
	"kingdoms-lite/modes/standard"
)

const modeTypeName = "mode"

// ModeSpec is what a rule script evaluates to.
type ModeSpec struct {
	Name           string
	Params         standard.Params
	DoubleRenegade bool
}

// LoadFile evaluates one script and returns its mode descriptor.
func LoadFile(path string) (*ModeSpec, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	registerModeType(state)
	registerModeConstructor(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}

	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("rule script must return Mode")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	spec, ok := ud.(*ModeSpec)
	if !ok || spec == nil {
		return nil, fmt.Errorf("rule script returned invalid Mode")
	}
	if strings.TrimSpace(spec.Name) == "" {
		spec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return spec, nil
}

// LoadDir evaluates every *.lua file in dir and registers the resulting
// modes. A script that fails to parse is skipped with a log line rather than
// taking the server down.
func LoadDir(reg *modes.Registry, dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.lua"))
	if err != nil {
		return err
	}
	for _, path := range paths {
		spec, err := LoadFile(path)
		if err != nil {
			log.Printf("[LuaRules] Skipping %s: %v", path, err)
			continue
		}
		if err := Register(reg, spec); err != nil {
			log.Printf("[LuaRules] Skipping %s: %v", path, err)
			continue
		}
		log.Printf("[LuaRules] Registered mode %q from %s", spec.Name, filepath.Base(path))
	}
	return nil
}

// Register wires a loaded descriptor into the registry.
func Register(reg *modes.Registry, spec *ModeSpec) error {
	// Validate the parameters once up front so a bad script fails at
	// registration, not at session start.
	if _, err := standard.NewTuned(spec.Name, spec.Params); err != nil {
		return err
	}
	table := engine.DefaultDistribution()
	if spec.DoubleRenegade {
		table = engine.DoubleRenegadeDistribution()
	}
	name, params := spec.Name, spec.Params
	return reg.Register(name, modes.Entry{
		New: func() engine.Rules {
			r, _ := standard.NewTuned(name, params)
			return r
		},
		Table: table,
	})
}

func registerModeType(state *lua.State) {
	lua.NewMetaTable(state, modeTypeName)
	state.NewTable()
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerModeConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, modeConstructor, 0)
	state.SetGlobal("Mode")
}

var modeConstructor = []lua.RegistryFunction{
	{Name: "new", Function: modeNew},
}

func modeNew(state *lua.State) int {
	name := lua.CheckString(state, 1)
	spec := &ModeSpec{Name: name, Params: standard.DefaultParams()}

	if !state.IsNoneOrNil(2) {
		lua.CheckType(state, 2, lua.TypeTable)
		applyOverrides(state, 2, spec)
	}

	state.PushUserData(spec)
	lua.SetMetaTableNamed(state, modeTypeName)
	return 1
}

func applyOverrides(state *lua.State, index int, spec *ModeSpec) {
	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			setOverride(state, spec, key)
		}
		state.Pop(1)
	}
}

func setOverride(state *lua.State, spec *ModeSpec, key string) {
	switch key {
	case "double_renegade":
		spec.DoubleRenegade = state.ToBoolean(-1)
		return
	}

	value, ok := state.ToNumber(-1)
	if !ok {
		lua.Errorf(state, "mode field %q must be a number", key)
		return
	}
	n := int(value)
	switch key {
	case "base_hp":
		spec.Params.BaseHP = n
	case "lord_hp_bonus":
		spec.Params.LordHPBonus = n
	case "opening_hand":
		spec.Params.OpeningHand = n
	case "draw_per_turn":
		spec.Params.DrawPerTurn = n
	case "recover_discard":
		spec.Params.RecoverDiscard = n
	case "strike_damage":
		spec.Params.StrikeDamage = n
	default:
		lua.Errorf(state, "unknown mode field %q", key)
	}
}
