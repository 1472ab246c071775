package api

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"imepay-gateway/internal/domain"
	"imepay-gateway/internal/domain/model"
	"imepay-gateway/internal/infra/logging"
	"imepay-gateway/internal/usecase"
)

// Options carries the optional parts of the HTTP layer.
type Options struct {
	// CallbackPath and CancelPath must match the path portion of
	// imepay.callback_url and imepay.cancel_url.
	CallbackPath string
	CancelPath   string
	AdminKey     string

	Limiter    RateLimiter // nil disables checkout throttling
	RateLimit  int
	RateWindow time.Duration

	RequestTimeout time.Duration
}

// Server exposes PaymentUseCase over HTTP: checkout creation, payment lookup,
// admin recheck and the provider callback and cancel pages.
type Server struct {
	payUC      usecase.PaymentUseCase
	log        *zerolog.Logger
	validate   *validator.Validate
	cbPath     string
	cancelPath string
	adminKey   string
	limiter    RateLimiter
	rateLimit  int
	rateWindow time.Duration
	timeout    time.Duration
}

func NewServer(payUC usecase.PaymentUseCase, opts Options, logger *zerolog.Logger) *Server {
	if opts.CallbackPath == "" {
		opts.CallbackPath = "/payment/callback"
	}
	if opts.CancelPath == "" {
		opts.CancelPath = "/payment/cancel"
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		payUC:      payUC,
		log:        logger,
		validate:   newValidator(),
		cbPath:     opts.CallbackPath,
		cancelPath: opts.CancelPath,
		adminKey:   opts.AdminKey,
		limiter:    opts.Limiter,
		rateLimit:  opts.RateLimit,
		rateWindow: opts.RateWindow,
		timeout:    opts.RequestTimeout,
	}
}

// Router builds the chi router with every route and middleware attached.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestContext)
	r.Use(RequestLog(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Timeout(s.timeout))

		r.Get(s.cbPath, s.handleCallback)
		r.Post(s.cbPath, s.handleCallback)
		r.Get(s.cancelPath, s.handleCancel)

		r.Route("/api/v1/payments", func(r chi.Router) {
			r.With(s.checkoutLimit).Post("/", s.handleCheckout)
			r.Get("/{refID}", s.handleGet)
			r.With(s.adminAuth).Post("/{refID}/recheck", s.handleRecheck)
		})
	})
	return r
}

type checkoutRequest struct {
	Amount json.Number `json:"amount" validate:"required,npr_amount"`
	RefID  string      `json:"ref_id" validate:"omitempty,max=64,ref_id"`
}

type checkoutResponse struct {
	RefID       string `json:"ref_id"`
	TokenID     string `json:"token_id"`
	Amount      string `json:"amount"`
	CheckoutURL string `json:"checkout_url"`
}

type paymentResponse struct {
	RefID               string     `json:"ref_id"`
	TokenID             string     `json:"token_id"`
	Amount              string     `json:"amount"`
	Status              string     `json:"status"`
	TransactionID       string     `json:"transaction_id,omitempty"`
	Msisdn              string     `json:"msisdn,omitempty"`
	ResponseCode        string     `json:"response_code,omitempty"`
	ResponseDescription string     `json:"response_description,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	PaidAt              *time.Time `json:"paid_at,omitempty"`
}

type recheckResponse struct {
	Payment  paymentResponse       `json:"payment"`
	Provider model.GatewayResponse `json:"provider"`
}

// toPaymentResponse renders p. Payer details (wallet msisdn and provider
// transaction id) are only included for admin callers.
func toPaymentResponse(p *model.Payment, withPayer bool) paymentResponse {
	out := paymentResponse{
		RefID:               p.RefID,
		TokenID:             p.TokenID,
		Amount:              p.Amount.String(),
		Status:              string(p.Status),
		ResponseCode:        p.ResponseCode,
		ResponseDescription: p.ResponseDescription,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
		PaidAt:              p.PaidAt,
	}
	if withPayer {
		out.TransactionID = p.TransactionID
		out.Msisdn = p.Msisdn
	}
	return out
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount is invalid")
		return
	}

	p, checkoutURL, err := s.payUC.Checkout(r.Context(), amount, req.RefID)
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}

	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, checkoutURL, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{
		RefID:       p.RefID,
		TokenID:     p.TokenID,
		Amount:      p.Amount.String(),
		CheckoutURL: checkoutURL,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.payUC.Get(r.Context(), chi.URLParam(r, "refID"))
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p, false))
}

func (s *Server) handleRecheck(w http.ResponseWriter, r *http.Request) {
	p, resp, err := s.payUC.Recheck(r.Context(), chi.URLParam(r, "refID"))
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recheckResponse{Payment: toPaymentResponse(p, true), Provider: resp})
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	p, err := s.payUC.HandleCallback(r.Context(), r)
	if err != nil {
		code, msg := statusFor(err)
		if code >= http.StatusInternalServerError {
			logging.With(r.Context(), s.log).Error().Err(err).Msg("callback handling failed")
		}
		renderPage(w, code, pageData{Title: "Payment Result", Msg: msg})
		return
	}

	data := pageData{RefID: p.RefID, TransactionID: p.TransactionID, Amount: p.Amount.String()}
	switch p.Status {
	case model.PaymentStatusSucceeded:
		data.OK = true
		data.Title = "Payment Successful"
		data.Msg = "Your payment has been confirmed."
	case model.PaymentStatusCancelled:
		data.Title = "Payment Cancelled"
		data.Msg = "The payment was cancelled."
	default:
		data.Title = "Payment Failed"
		data.Msg = "The payment could not be completed."
		if p.ResponseDescription != "" {
			data.Msg += " " + p.ResponseDescription
		}
	}
	renderPage(w, http.StatusOK, data)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, pageData{
		Title: "Payment Cancelled",
		Msg:   "You left the IMEPay checkout before paying. No money was taken.",
		RefID: r.URL.Query().Get("RefId"),
	})
}

// statusFor maps use case errors to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	var (
		ce *domain.CallbackDecodeError
		ge *domain.GatewayError
		te *domain.TransportError
	)
	switch {
	case errors.As(err, &ce):
		return http.StatusBadRequest, "malformed callback"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid argument"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "payment not found"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "payment already exists"
	case errors.Is(err, domain.ErrLocked):
		return http.StatusConflict, "payment is being processed, retry shortly"
	case errors.As(err, &ge):
		return http.StatusBadGateway, "payment provider rejected the request"
	case errors.As(err, &te):
		return http.StatusBadGateway, "payment provider unreachable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) writeUseCaseError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, code, msg)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

type pageData struct {
	OK            bool
	Title         string
	Msg           string
	RefID         string
	TransactionID string
	Amount        string
}

var page = template.Must(template.New("cb").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .fail{color:#b00020}
.small{font-size:12px;color:#666}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{if .OK}}ok{{else}}fail{{end}}">{{.Title}}</h2>
  <p>{{.Msg}}</p>
  {{if .RefID}}<div class="small">Reference: {{.RefID}}</div>{{end}}
  {{if .TransactionID}}<div class="small">Transaction: {{.TransactionID}}</div>{{end}}
  {{if .Amount}}<div class="small">Amount: NPR {{.Amount}}</div>{{end}}
</div>
</body>
</html>`))

func renderPage(w http.ResponseWriter, code int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = page.Execute(w, data)
}
