package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/niksmo/darkstore/internal/core/domain"
	"github.com/niksmo/darkstore/internal/core/port"
	"github.com/niksmo/darkstore/internal/core/service"
)

// POST v1/products JSON [Product] (202 Accepted, 400 Bad request)
// GET v1/products (200 OK)
// GET v1/products/{id} (200 OK, 404 Not found)

type ProductsHandler struct {
	catalog port.CatalogService
}

func RegisterProducts(mux *http.ServeMux, catalog port.CatalogService) {
	h := ProductsHandler{catalog}
	mux.HandleFunc("POST /v1/products", h.PostProducts)
	mux.HandleFunc("GET /v1/products", h.ListProducts)
	mux.HandleFunc("GET /v1/products/{id}", h.GetProduct)
}

func (h ProductsHandler) PostProducts(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.PostProducts"
	log := slog.With("op", op)

	var ps []Product
	if err := json.NewDecoder(r.Body).Decode(&ps); err != nil {
		http.Error(w, "invalid JSON data", http.StatusBadRequest)
		log.Warn("failed to parse JSON", "err", err)
		return
	}

	dps := make([]domain.Product, len(ps))
	for i, p := range ps {
		dps[i] = productToDomain(p)
	}

	err := h.catalog.SaveProducts(r.Context(), dps)
	if err != nil {
		if errors.Is(err, service.ErrInvalidProduct) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			log.Warn("rejected products", "err", err)
			return
		}
		http.Error(
			w, "failed to accept products", http.StatusServiceUnavailable,
		)
		log.Error("failed to save products", "err", err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	if _, err = w.Write([]byte("Accepted")); err != nil {
		log.Error("failed to write response body", "err", err)
		return
	}

	log.Info("accepted", "nProducts", len(ps))
}

func (h ProductsHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.ListProducts"
	log := slog.With("op", op)

	ps, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
		log.Error("failed to list products", "err", err)
		return
	}

	vs := make([]Product, len(ps))
	for i, p := range ps {
		vs[i] = productFromDomain(p)
	}
	writeJSON(w, http.StatusOK, vs, log)
}

func (h ProductsHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.GetProduct"
	log := slog.With("op", op)

	p, err := h.catalog.ReadProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			http.Error(w, "product not found", http.StatusNotFound)
			return
		}
		http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
		log.Error("failed to read product", "err", err)
		return
	}
	writeJSON(w, http.StatusOK, productFromDomain(p), log)
}

// GET v1/cart (200 OK)
// POST v1/cart/items JSON {"product_id" string, "quantity" int} (200 OK, 400 Bad request, 404 Not found)
// PATCH v1/cart/items/{id} JSON {"quantity" int} (200 OK, 400 Bad request)
// DELETE v1/cart/items/{id} (200 OK)
// DELETE v1/cart (200 OK)
// POST v1/cart/checkout (200 OK, 409 Conflict), the cart is kept

type CartHandler struct {
	cart    port.CartService
	catalog port.ProductReader
}

// RegisterCart serves the single process-wide cart. Every client sees
// and mutates the same cart; there are no per-user carts.
func RegisterCart(
	mux *http.ServeMux, cart port.CartService, catalog port.ProductReader,
) {
	h := CartHandler{cart, catalog}
	mux.HandleFunc("GET /v1/cart", h.GetCart)
	mux.HandleFunc("DELETE /v1/cart", h.ClearCart)
	mux.HandleFunc("POST /v1/cart/items", h.AddItem)
	mux.HandleFunc("PATCH /v1/cart/items/{id}", h.UpdateItem)
	mux.HandleFunc("DELETE /v1/cart/items/{id}", h.RemoveItem)
	mux.HandleFunc("POST /v1/cart/checkout", h.Checkout)
}

func (h CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.GetCart"
	h.writeCart(w, h.cart.Snapshot(), slog.With("op", op))
}

func (h CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.AddItem"
	log := slog.With("op", op)

	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON data", http.StatusBadRequest)
		log.Warn("failed to parse JSON", "err", err)
		return
	}
	if req.ProductID == "" {
		http.Error(w, "product_id is required", http.StatusBadRequest)
		return
	}

	p, err := h.catalog.ReadProduct(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			http.Error(w, "product not found", http.StatusNotFound)
			return
		}
		http.Error(w, "catalog unavailable", http.StatusServiceUnavailable)
		log.Error("failed to read product", "err", err)
		return
	}

	snap := h.cart.AddToCart(r.Context(), p, req.Quantity)
	h.writeCart(w, snap, log)
}

func (h CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.UpdateItem"
	log := slog.With("op", op)

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON data", http.StatusBadRequest)
		log.Warn("failed to parse JSON", "err", err)
		return
	}
	if req.Quantity == nil {
		http.Error(w, "quantity is required", http.StatusBadRequest)
		return
	}

	snap := h.cart.UpdateQuantity(r.Context(), r.PathValue("id"), *req.Quantity)
	h.writeCart(w, snap, log)
}

func (h CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.RemoveItem"
	snap := h.cart.RemoveFromCart(r.Context(), r.PathValue("id"))
	h.writeCart(w, snap, slog.With("op", op))
}

func (h CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.ClearCart"
	snap := h.cart.ClearCart(r.Context())
	h.writeCart(w, snap, slog.With("op", op))
}

func (h CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.Checkout"
	log := slog.With("op", op)

	summary, err := h.cart.Checkout(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrEmptyCart) {
			http.Error(w, "cart is empty", http.StatusConflict)
			return
		}
		http.Error(w, "checkout failed", http.StatusInternalServerError)
		log.Error("failed to check out", "err", err)
		return
	}
	writeJSON(w, http.StatusOK, summaryFromDomain(summary), log)
}

// writeCart answers with the snapshot the mutation produced.
func (h CartHandler) writeCart(
	w http.ResponseWriter, snap domain.Snapshot, log *slog.Logger,
) {
	summary := domain.SummaryOf(domain.NewCart(snap.Items))
	writeJSON(w, http.StatusOK, cartFromDomain(snap, summary), log)
}

func writeJSON(w http.ResponseWriter, status int, v any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to write response body", "err", err)
	}
}
