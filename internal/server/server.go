package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"kartpilot/internal/browser"
	"kartpilot/internal/config"
	"kartpilot/internal/process"
)

const apiVersion = "1.0"

// Checkout is the slice of the orchestrator the HTTP surface drives.
type Checkout interface {
	Launch(ctx context.Context, id, productURL, sessionName string, useExisting bool)
	SubmitLoginOTP(id, otp string) error
	SelectAddress(id string, index int) error
	SubmitPayment(id string, details *process.PaymentDetails) error
	SubmitBankOTP(id, otp string) error
	Terminate(id string) error
}

// Server exposes the checkout automation over HTTP.
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	reg      *process.Registry
	checkout Checkout
	sessions *browser.SessionStore
	router   chi.Router
}

func New(cfg *config.Config, log *zap.Logger, reg *process.Registry, co Checkout, sessions *browser.SessionStore) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log,
		reg:      reg,
		checkout: co,
		sessions: sessions,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/", s.handleRoot)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Post("/process", s.handleStartProcess)
	r.Get("/processes", s.handleListProcesses)
	r.Get("/process/{id}", s.handleGetProcess)
	r.Delete("/process/{id}", s.handleTerminate)
	r.Post("/process/{id}/login-otp", s.handleLoginOTP)
	r.Post("/process/{id}/select-address", s.handleSelectAddress)
	r.Post("/process/{id}/payment", s.handlePayment)
	r.Post("/process/{id}/bank-otp", s.handleBankOTP)

	r.Get("/sessions", s.handleListSessions)

	fileServer := http.StripPrefix("/debug-images/", http.FileServer(http.Dir(s.cfg.DebugImagesDir)))
	r.Get("/debug-images/*", fileServer.ServeHTTP)

	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, "Checkout automation API is running", map[string]any{
		"api":     "kartpilot",
		"version": apiVersion,
	})
}

type startProcessRequest struct {
	ProductURL         string `json:"product_url"`
	SessionName        string `json:"session_name"`
	UseExistingSession bool   `json:"use_existing_session"`
}

func (s *Server) handleStartProcess(w http.ResponseWriter, r *http.Request) {
	var req startProcessRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req.ProductURL = strings.TrimSpace(req.ProductURL)
	if req.ProductURL == "" {
		respondError(w, http.StatusBadRequest, "product_url is required")
		return
	}

	id := uuid.NewString()
	ObserveStart()
	go s.checkout.Launch(context.Background(), id, req.ProductURL, req.SessionName, req.UseExistingSession)

	s.log.Info("process started",
		zap.String("process_id", id),
		zap.String("product_url", req.ProductURL),
		zap.Bool("use_existing_session", req.UseExistingSession))

	respondSuccess(w, "Checkout process started", map[string]any{"process_id": id})
}

func (s *Server) handleGetProcess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := s.reg.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Process not found")
		return
	}
	respondSuccess(w, "Process status", view)
}

func (s *Server) handleListProcesses(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, "All processes", s.reg.List())
}

func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.checkout.Terminate(id); err != nil {
		s.respondSetterError(w, err)
		return
	}
	respondSuccess(w, "Process terminated", map[string]any{"process_id": id})
}

type otpRequest struct {
	OTP string `json:"otp"`
}

func (s *Server) handleLoginOTP(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req otpRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.OTP == "" {
		respondError(w, http.StatusBadRequest, "otp is required")
		return
	}
	if err := s.checkout.SubmitLoginOTP(id, req.OTP); err != nil {
		s.respondSetterError(w, err)
		return
	}
	respondSuccess(w, "OTP submitted", nil)
}

type selectAddressRequest struct {
	AddressIndex *int `json:"address_index"`
}

func (s *Server) handleSelectAddress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req selectAddressRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.AddressIndex == nil || *req.AddressIndex < 0 {
		respondError(w, http.StatusBadRequest, "address_index must be a non-negative integer")
		return
	}
	if err := s.checkout.SelectAddress(id, *req.AddressIndex); err != nil {
		s.respondSetterError(w, err)
		return
	}
	respondSuccess(w, "Address selected", nil)
}

type paymentRequest struct {
	CardNumber     string `json:"card_number"`
	CVV            string `json:"cvv"`
	ExpiryMonth    string `json:"expiry_month"`
	ExpiryYear     string `json:"expiry_year"`
	ExpiryCombined string `json:"expiry_combined"`
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req paymentRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.CardNumber == "" || req.CVV == "" {
		respondError(w, http.StatusBadRequest, "card_number and cvv are required")
		return
	}
	details := &process.PaymentDetails{
		CardNumber:     req.CardNumber,
		CVV:            req.CVV,
		ExpiryMonth:    req.ExpiryMonth,
		ExpiryYear:     req.ExpiryYear,
		ExpiryCombined: req.ExpiryCombined,
	}
	if err := s.checkout.SubmitPayment(id, details); err != nil {
		s.respondSetterError(w, err)
		return
	}
	respondSuccess(w, "Payment details submitted", nil)
}

func (s *Server) handleBankOTP(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req otpRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.OTP == "" {
		respondError(w, http.StatusBadRequest, "otp is required")
		return
	}
	if err := s.checkout.SubmitBankOTP(id, req.OTP); err != nil {
		s.respondSetterError(w, err)
		return
	}
	respondSuccess(w, "Bank OTP submitted", nil)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	names, err := s.sessions.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list sessions: "+err.Error())
		return
	}
	respondSuccess(w, "Saved sessions", map[string]any{"sessions": names})
}

// respondSetterError maps registry sentinel errors onto HTTP statuses.
func (s *Server) respondSetterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, process.ErrNotFound):
		respondError(w, http.StatusNotFound, "Process not found")
	case errors.Is(err, process.ErrWrongStage):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, process.ErrTerminal):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
