package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// SecretHeader carries the secret_token registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Handler accepts Telegram updates and hands them to the dispatcher.
type Handler struct {
	Secret string
	// Allowed restricts callers; empty disables the check.
	Allowed AllowList
	// TrustedProxies may report the caller through X-Forwarded-For.
	TrustedProxies AllowList

	updates chan telego.Update
	done    chan struct{}
	once    sync.Once
}

func NewHandler(secret string, allowed AllowList, buffer int) *Handler {
	return &Handler{
		Secret:  secret,
		Allowed: allowed,
		updates: make(chan telego.Update, buffer),
		done:    make(chan struct{}),
	}
}

// Updates is the stream consumed by the bot dispatcher.
func (h *Handler) Updates() <-chan telego.Update {
	return h.updates
}

// Close makes waiting and future deliveries fail with 503 once the
// dispatcher is no longer reading. The update channel itself stays open.
func (h *Handler) Close() {
	h.once.Do(func() { close(h.done) })
}

func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(h.Allowed) > 0 {
		if ip := clientIP(r, h.TrustedProxies); !h.Allowed.Contains(ip) {
			log.Warnf("Rejected webhook call from %s", ip)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	if h.Secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(h.Secret)) != 1 {
		log.Warn("Rejected webhook call with a bad secret token")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var update telego.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Warnf("Failed to decode update: %v", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	select {
	case h.updates <- update:
		w.WriteHeader(http.StatusOK)
	case <-h.done:
		http.Error(w, "Shutting down", http.StatusServiceUnavailable)
	case <-r.Context().Done():
		// Telegram retries undelivered updates.
		http.Error(w, "Busy", http.StatusServiceUnavailable)
	}
}

func NewServer(addr, path string, h *Handler) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc(path, h.HandleWebhook)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Webhook server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("webhook server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down webhook server: %w", err)
	}
	return nil
}
