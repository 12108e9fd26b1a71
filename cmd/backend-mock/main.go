// backend-mock serves an in-memory stand-in for the order-management REST
// backend so the client and CLI can be exercised without the real server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	port := getEnv("MOCK_PORT", "8080")
	store := newMockStore()

	router := mux.NewRouter()
	router.HandleFunc("/oauth2/token", tokenHandler(logger, store)).Methods("POST")

	authed := router.PathPrefix("/").Subrouter()
	authed.Use(authMiddleware(logger, store))
	authed.HandleFunc("/facility/find", findOrders(store)).Methods("GET")
	authed.HandleFunc("/facility/{id}", getOrder(store)).Methods("GET")
	authed.HandleFunc("/facility", createOrder(logger, store)).Methods("POST")
	authed.HandleFunc("/facility", patchOrder(logger, store)).Methods("PATCH")
	authed.HandleFunc("/dashboard/facility-statistic/{reportId}", facilityStatistics(store)).Methods("POST")
	authed.HandleFunc("/org-unit/search", searchOrgUnits(store)).Methods("GET")
	authed.HandleFunc("/option/find", findOptions(store)).Methods("GET")
	authed.HandleFunc("/user/find", findUsers(store)).Methods("GET")
	authed.HandleFunc("/user/change-password", changePassword(logger, store)).Methods("PUT")
	authed.HandleFunc("/user/{id}", getUser(store)).Methods("GET")
	authed.HandleFunc("/user", patchUser(store)).Methods("PATCH")
	authed.HandleFunc("/file/upload", uploadFile(logger, store)).Methods("POST")

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      loggingMiddleware(logger)(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", port).Info("Starting backend mock")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down backend mock...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Backend mock stopped")
}

func authMiddleware(logger *logrus.Logger, store *mockStore) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := usernameFrom(r, store); !ok {
				logger.WithField("path", r.URL.Path).Debug("Rejected unauthenticated request")
				respondWithError(w, http.StatusUnauthorized, "missing or invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func usernameFrom(r *http.Request, store *mockStore) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return store.usernameForToken(strings.TrimPrefix(header, "Bearer "))
}

func loggingMiddleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).String(),
			}).Debug("Request handled")
		})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
