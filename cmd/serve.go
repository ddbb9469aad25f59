package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rainier-analytics/call-pipeline/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only query server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := openPipeline(ctx, true)
		if err != nil {
			return err
		}
		defer p.Close()

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		mux.HandleFunc("GET /dates/{date}", func(w http.ResponseWriter, r *http.Request) {
			date := r.PathValue("date")
			if _, err := model.ParseDate(date); err != nil {
				http.Error(w, `{"error":"invalid date"}`, http.StatusBadRequest)
				return
			}
			details, err := p.Store.DayDetails(r.Context(), date)
			if err != nil {
				serverError(w, err)
				return
			}
			if details == nil {
				http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, details)
		})

		mux.HandleFunc("GET /dates/{date}/weather", func(w http.ResponseWriter, r *http.Request) {
			weather, err := p.Store.Weather(r.Context(), r.PathValue("date"))
			if err != nil {
				serverError(w, err)
				return
			}
			if len(weather) == 0 {
				http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, weather)
		})

		mux.HandleFunc("GET /dates/{date}/covid", func(w http.ResponseWriter, r *http.Request) {
			covid, err := p.Store.CovidDay(r.Context(), r.PathValue("date"))
			if err != nil {
				serverError(w, err)
				return
			}
			if covid == nil {
				http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, covid)
		})

		mux.HandleFunc("GET /dates/{date}/season", func(w http.ResponseWriter, r *http.Request) {
			details, err := p.Store.DayDetails(r.Context(), r.PathValue("date"))
			if err != nil {
				serverError(w, err)
				return
			}
			if details == nil {
				http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"date":   details.Date,
				"season": details.SeasonName,
			})
		})

		mux.HandleFunc("GET /dates/{date}/stats", func(w http.ResponseWriter, r *http.Request) {
			date := r.PathValue("date")
			if _, err := model.ParseDate(date); err != nil {
				http.Error(w, `{"error":"invalid date"}`, http.StatusBadRequest)
				return
			}
			count, err := p.Store.CountDaily(r.Context(), date)
			if err != nil {
				serverError(w, err)
				return
			}
			byType, err := p.Store.TypeHistogram(r.Context(), date)
			if err != nil {
				serverError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"date":    date,
				"calls":   count,
				"by_type": byType,
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func serverError(w http.ResponseWriter, err error) {
	zap.L().Error("query failed", zap.Error(err))
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
