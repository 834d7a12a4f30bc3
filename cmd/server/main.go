package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kingdoms-lite/engine"
	"kingdoms-lite/internal/config"
	"kingdoms-lite/internal/gateway"
	"kingdoms-lite/internal/lobby"
	"kingdoms-lite/internal/store"
	"kingdoms-lite/modes"
	"kingdoms-lite/modes/luarules"
	"kingdoms-lite/modes/standard"
	"kingdoms-lite/replay"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("[Server] Failed to parse config: %v", err)
	}

	st, storeMode, err := store.NewFromEnv()
	if err != nil {
		log.Fatalf("[Server] Failed to init replay store: %v", err)
	}
	defer st.Close()

	registry := modes.NewRegistry()
	if err := registerModes(registry, cfg); err != nil {
		log.Fatalf("[Server] Failed to register modes: %v", err)
	}

	gw := gateway.New()
	lby, err := lobby.New(lobby.Config{
		DefaultMode:  cfg.DefaultMode,
		DefaultSeats: cfg.DefaultSeats,
		RejoinWindow: cfg.RejoinWindow,
		TurnTimeout:  cfg.TurnTimeout,
		MinConnected: cfg.MinConnected,
	}, registry, st, gw.CasterFor)
	if err != nil {
		log.Fatalf("[Server] Failed to init lobby: %v", err)
	}
	gw.AttachLobby(lby)
	defer lby.Close()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", gw.HandleWebSocket)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/modes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, registry.Modes())
	})
	r.Get("/rooms", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, lby.Rooms())
	})
	r.Get("/replays", func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		infos, err := lby.ListTapes(r.Context(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, infos)
	})
	r.Get("/replays/{id}", func(w http.ResponseWriter, r *http.Request) {
		tape, err := lby.FetchTape(r.Context(), chi.URLParam(r, "id"))
		if err == store.ErrTapeNotFound {
			http.Error(w, "tape not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := replay.Encode(w, tape); err != nil {
			log.Printf("[Server] Encode tape %s: %v", tape.SessionID, err)
		}
	})

	log.Printf("[Server] Replay store mode: %s", storeMode)
	log.Printf("[Server] Modes: %v", registry.Modes())
	log.Printf("[Server] Starting WebSocket server on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		log.Fatalf("[Server] Failed to start: %v", err)
	}
}

// registerModes wires the built-in modes, an optional distribution override,
// and any scripted modes.
func registerModes(registry *modes.Registry, cfg config.Config) error {
	if cfg.DistributionPath != "" {
		f, err := os.Open(cfg.DistributionPath)
		if err != nil {
			return err
		}
		table, err := engine.LoadDistributionTable(f)
		f.Close()
		if err != nil {
			return err
		}
		if err := registry.Register("standard", modes.Entry{
			New:   func() engine.Rules { return standard.New() },
			Table: table,
		}); err != nil {
			return err
		}
		if err := registry.Register("double_renegade", modes.Entry{
			New:   func() engine.Rules { return standard.NewVariant("double_renegade") },
			Table: engine.DoubleRenegadeDistribution(),
		}); err != nil {
			return err
		}
		log.Printf("[Server] Role distribution override from %s", cfg.DistributionPath)
	} else if err := standard.RegisterAll(registry); err != nil {
		return err
	}

	if cfg.LuaModesDir != "" {
		return luarules.LoadDir(registry, cfg.LuaModesDir)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Server] Write JSON: %v", err)
	}
}
