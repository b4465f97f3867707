package server

import (
	"net/http"
	"path/filepath"
)

func (s *Server) NewRouter() http.Handler {
	mux := http.NewServeMux()

	// API
	mux.HandleFunc("/start", s.StartRun)
	mux.HandleFunc("/stop", s.StopRun)
	mux.HandleFunc("/run", s.GetRun)
	mux.HandleFunc("/stream", s.Stream)
	mux.HandleFunc("/export", s.ExportCSV)
	mux.HandleFunc("/plot.svg", s.PlotSVG)
	mux.HandleFunc("/history", s.History)

	// static
	static := s.cfg.Server.StaticDir
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(static, "index.html"))
	})

	return mux
}
