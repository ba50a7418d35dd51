package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codecell/compiler"
	"codecell/config"
	"codecell/engine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for cell execution",
	Long: `Start an HTTP server that runs cells in isolated contexts.

Endpoints:
  POST /execute   Run a cell, respond with the full event list
  GET  /ws        Websocket: send {"code":"..."}, receive streamed events
  GET  /health    Health check`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default $PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind (default $HOST or 0.0.0.0)")
	rootCmd.AddCommand(serveCmd)
}

type executeRequest struct {
	Code string `json:"code"`
}

type diagnosticJSON struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type eventJSON struct {
	Kind        string           `json:"kind"`
	Diagnostics []diagnosticJSON `json:"diagnostics,omitempty"`
	Data        any              `json:"data,omitempty"`
	Message     string           `json:"message,omitempty"`
}

func toEventJSON(ev engine.Event) eventJSON {
	out := eventJSON{Kind: ev.Kind.String(), Data: ev.Data, Message: ev.Message}
	for _, d := range ev.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, diagnosticJSON{
			Severity: d.Severity.String(),
			Message:  d.Message,
		})
	}
	return out
}

var upgrader = websocket.Upgrader{
	// The reference host serves first-party pages only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func runServe(cmd *cobra.Command, args []string) {
	eng, log := newEngine(cmd)
	defer log.Sync()

	cfg := config.LoadOrDefault()
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}

	// Warm the compiler so the first request does not pay for it.
	if _, err := compiler.Default(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/execute", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req executeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Code == "" {
			http.Error(w, "code required", http.StatusBadRequest)
			return
		}

		var events []eventJSON
		for ev := range eng.Invoke(r.Context(), req.Code) {
			events = append(events, toEventJSON(ev))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"events": events})
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		for {
			var req executeRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Code == "" {
				continue
			}
			// One run at a time per connection; the next request is read
			// only after the terminal event went out.
			for ev := range eng.Invoke(context.Background(), req.Code) {
				if err := conn.WriteJSON(toEventJSON(ev)); err != nil {
					return
				}
			}
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	log.Info("listening", zap.String("addr", addr))
	fmt.Fprintf(os.Stderr, "codecell server listening on %s\n", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
