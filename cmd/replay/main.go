// Command replay inspects and verifies sealed session tapes.
//
//	replay -file tape.json            summary + verification
//	replay -file tape.json -events    also dump the event stream
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pterm/pterm"

	"kingdoms-lite/engine"
	"kingdoms-lite/modes"
	"kingdoms-lite/modes/luarules"
	"kingdoms-lite/modes/standard"
	"kingdoms-lite/replay"
)

func main() {
	var (
		file    = flag.String("file", "", "tape file to inspect")
		luaDir  = flag.String("lua", "", "directory of scripted modes the tape may use")
		events  = flag.Bool("events", false, "dump the event stream")
		noCheck = flag.Bool("no-verify", false, "skip digest verification")
	)
	flag.Parse()

	if *file == "" {
		pterm.Error.Println("usage: replay -file <tape.json>")
		os.Exit(2)
	}

	f, err := os.Open(*file)
	if err != nil {
		pterm.Error.Printfln("open tape: %v", err)
		os.Exit(1)
	}
	tape, err := replay.Decode(f)
	f.Close()
	if err != nil {
		pterm.Error.Printfln("decode tape: %v", err)
		os.Exit(1)
	}

	printHeader(tape)

	if *events {
		printEvents(tape)
	}

	if *noCheck {
		return
	}

	registry := modes.NewRegistry()
	if err := standard.RegisterAll(registry); err != nil {
		pterm.Error.Printfln("register modes: %v", err)
		os.Exit(1)
	}
	if *luaDir != "" {
		if err := luarules.LoadDir(registry, *luaDir); err != nil {
			pterm.Error.Printfln("load scripted modes: %v", err)
			os.Exit(1)
		}
	}

	_, table, err := registry.Resolve(tape.Mode)
	if err != nil {
		pterm.Error.Printfln("resolve mode: %v", err)
		os.Exit(1)
	}

	spinner, _ := pterm.DefaultSpinner.Start("Replaying event stream...")
	if err := replay.Verify(tape, table); err != nil {
		spinner.Fail()
		pterm.Error.Printfln("verification failed: %v", err)
		os.Exit(1)
	}
	spinner.Success("Replay matches the sealed digest")
}

func printHeader(tape *replay.Tape) {
	data := pterm.TableData{
		{"Session", tape.SessionID},
		{"Mode", tape.Mode},
		{"Seats", fmt.Sprintf("%d", tape.SeatCount)},
		{"Seed", fmt.Sprintf("%d", tape.Seed)},
		{"Events", fmt.Sprintf("%d", len(tape.Events))},
		{"Sealed", sealedLabel(tape)},
	}
	for i, player := range tape.Players {
		data = append(data, []string{fmt.Sprintf("Seat %d", i), player})
	}
	pterm.DefaultTable.WithData(data).Render()
}

func sealedLabel(tape *replay.Tape) string {
	if tape.FinalDigest == "" {
		return "no"
	}
	return fmt.Sprintf("yes (%s...)", tape.FinalDigest[:12])
}

func printEvents(tape *replay.Tape) {
	for _, ev := range tape.Events {
		line := fmt.Sprintf("#%04d %-18s seat=%d", ev.Seq, ev.Type, ev.Seat)
		if ev.Target != engine.InvalidSeat {
			line += fmt.Sprintf(" target=%d", ev.Target)
		}
		if ev.Reason != "" {
			line += " " + ev.Reason
		}
		pterm.Println(line)
	}
}
