package main

import (
	"flag"
	"log"
	"net/http"

	"falsepos/internal/config"
	"falsepos/internal/server"
	"falsepos/internal/store"
)

func main() {
	log.SetPrefix("[falsepos] ")
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatal(err)
		}
	}

	var st *store.Store
	if cfg.Server.DBPath != "" {
		var err error
		if st, err = store.NewStore(cfg.Server.DBPath); err != nil {
			log.Fatal(err)
		}
		defer st.Close()
	}

	router := server.New(cfg, st, log.Default()).NewRouter()
	log.Printf("Server listening on http://localhost%s", cfg.Server.Addr)
	log.Println("Static files served from:", cfg.Server.StaticDir)
	log.Fatal(http.ListenAndServe(cfg.Server.Addr, router))
}
