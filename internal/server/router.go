package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/memoryvault/memory-vault/internal/importer"
	"github.com/memoryvault/memory-vault/internal/metrics"
	"github.com/memoryvault/memory-vault/internal/server/recovery"
)

// RouterConfig carries the pieces NewRouter wires together.
type RouterConfig struct {
	Service        *Service
	Health         *StoreHealthChecker
	MaxUploadBytes int64
	Log            zerolog.Logger
}

// NewRouter creates the HTTP router with every backend route registered.
func NewRouter(rc RouterConfig) *mux.Router {
	if rc.MaxUploadBytes <= 0 {
		rc.MaxUploadBytes = importer.DefaultMaxBytes
	}
	root := mux.NewRouter()
	root.Use(recovery.Middleware(rc.Log))
	root.Use(metrics.Middleware(routeName))

	health := NewHealthHandler(rc.Health)
	root.HandleFunc("/health", health.CheckHealth).Methods("GET")
	root.Handle("/metrics", promhttp.Handler()).Methods("GET")

	chats := NewChatHandler(rc.Service, rc.MaxUploadBytes)
	root.HandleFunc("/chat", chats.ListChats).Methods("GET")
	root.HandleFunc("/chat", chats.CreateChat).Methods("POST")
	root.HandleFunc("/chat/upload", chats.UploadChat).Methods("POST")
	root.HandleFunc("/chat/{id}", chats.GetChat).Methods("GET")
	root.HandleFunc("/chat/{id}", chats.DeleteChat).Methods("DELETE")
	root.HandleFunc("/chat/{id}/messages", chats.GetMessages).Methods("GET")
	root.HandleFunc("/chat/{id}/messages/date/{date}", chats.GetMessagesByDate).Methods("GET")
	root.HandleFunc("/chat/{id}/search", chats.SearchMessages).Methods("GET")
	root.HandleFunc("/chat/{id}/dates", chats.GetDates).Methods("GET")
	root.HandleFunc("/chat/{id}/statistics", chats.GetStatistics).Methods("GET")
	root.HandleFunc("/chat/{id}/keywords", chats.GetKeywords).Methods("GET")
	root.HandleFunc("/chat/{id}/sentiment", chats.AnalyzeSentiment).Methods("POST")
	root.HandleFunc("/chat/{id}/sentiment", chats.GetSentiment).Methods("GET")
	root.HandleFunc("/chat/{id}/export", chats.ExportChat).Methods("GET")
	return root
}

// routeName labels metrics with the route template, not the raw path.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
