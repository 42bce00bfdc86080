package httpx

import (
	"context"
	"net/http"
	"time"
)

// Page is one console section in the navigation.
type Page struct {
	Path  string
	Label string
}

// ConsolePages lists the sections of the console. All of them require a signed-in operator.
var ConsolePages = []Page{
	{Path: "/", Label: "Home"},
	{Path: "/customer-lookup", Label: "Customer Lookup"},
	{Path: "/create-customer", Label: "New Customer"},
	{Path: "/services", Label: "Services"},
	{Path: "/payment-history", Label: "Payments"},
	{Path: "/interactions", Label: "Interactions"},
	{Path: "/payment", Label: "Process Payment"},
	{Path: "/payment-extension", Label: "Payment Extension"},
	{Path: "/payment-arrangement", Label: "Payment Arrangement"},
	{Path: "/billing", Label: "Billing"},
	{Path: "/billing-items", Label: "Billing Items"},
	{Path: "/credit-history", Label: "Credit Check History"},
	{Path: "/notifications", Label: "Notification History"},
	{Path: "/contracts", Label: "Contract Attachments"},
	{Path: "/predict", Label: "Churn Risk"},
	{Path: "/db-status", Label: "DB Status"},
}

// Pinger checks that the access store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PageHandlers serves the console sections.
type PageHandlers struct {
	Render     *Renderer
	PredictURL string
	// Store backs /db-status; nil reports the store as not configured.
	Store Pinger
}

func (h *PageHandlers) data(r *http.Request, title string) PageData {
	return PageData{
		Title:    title,
		Current:  r.URL.Path,
		Identity: IdentityFromContext(r.Context()),
		Nav:      ConsolePages,
	}
}

// Section renders the shell of a console section.
func (h *PageHandlers) Section(p Page) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Render.Render(w, r, http.StatusOK, viewPage, h.data(r, p.Label))
	})
}

// Predict sends the operator to the external churn prediction service.
func (h *PageHandlers) Predict(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.PredictURL, http.StatusFound)
}

// dbStatus is the outcome of the access store check.
type dbStatus struct {
	Configured bool   `json:"configured"`
	QueryOK    bool   `json:"query_ok"`
	Message    string `json:"message,omitempty"`
}

// DBStatus reports whether the access store is configured and answers a minimal read.
func (h *PageHandlers) DBStatus(w http.ResponseWriter, r *http.Request) {
	status := dbStatus{Configured: h.Store != nil}
	if h.Store == nil {
		status.Message = "Access store is not configured."
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.Store.Ping(ctx); err != nil {
			status.Message = err.Error()
		} else {
			status.QueryOK = true
		}
	}

	if !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusOK, status)
		return
	}
	data := h.data(r, "DB Status")
	data.DB = status
	h.Render.Render(w, r, http.StatusOK, viewDBStatus, data)
}

// NotFound renders the 404 page for signed-in operators.
func (h *PageHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	if !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "Not found"})
		return
	}
	h.Render.Render(w, r, http.StatusNotFound, viewNotFound, h.data(r, "Not found"))
}
