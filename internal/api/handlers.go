package api

import (
	"fmt"
	"net/http"

	storefront "github.com/luxecommerce/storefront"
	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/cart"
	"github.com/luxecommerce/storefront/pkg/catalog"
	"github.com/luxecommerce/storefront/pkg/currency"
	"github.com/luxecommerce/storefront/pkg/notifications"
	"github.com/luxecommerce/storefront/pkg/orders"
	"github.com/luxecommerce/storefront/pkg/realtime"
)

const relatedLimit = 4

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.handler())

	mux.HandleFunc("GET /products", s.withSession(s.listProducts))
	mux.HandleFunc("GET /products/{id}", s.withSession(s.getProduct))
	mux.HandleFunc("GET /categories", s.withSession(s.listCategories))

	mux.HandleFunc("GET /cart", s.withSession(s.getCart))
	mux.HandleFunc("POST /cart/items", s.withSession(s.addCartItem))
	mux.HandleFunc("PATCH /cart/items/{id}", s.withSession(s.updateCartItem))
	mux.HandleFunc("DELETE /cart/items/{id}", s.withSession(s.removeCartItem))
	mux.HandleFunc("DELETE /cart", s.withSession(s.clearCart))

	mux.HandleFunc("POST /auth/register", s.withSession(s.register))
	mux.HandleFunc("POST /auth/login", s.withSession(s.login))
	mux.HandleFunc("POST /auth/logout", s.withSession(s.logout))
	mux.HandleFunc("GET /auth/me", s.withSession(s.currentUser))

	mux.HandleFunc("POST /checkout", s.withSession(s.checkout))
	mux.HandleFunc("GET /orders", s.withSession(s.myOrders))

	mux.HandleFunc("GET /admin/orders", s.adminOnly(s.adminOrders))
	mux.HandleFunc("PATCH /admin/orders/{id}", s.adminOnly(s.updateOrderStatus))
	mux.HandleFunc("GET /admin/stats", s.adminOnly(s.adminStats))

	mux.HandleFunc("GET /notifications", s.withSession(s.listNotifications))
	mux.HandleFunc("POST /notifications/{id}/read", s.withSession(s.markNotificationRead))
	mux.HandleFunc("DELETE /notifications/{id}", s.withSession(s.clearNotification))
	mux.HandleFunc("DELETE /notifications", s.withSession(s.clearNotifications))

	mux.HandleFunc("GET /inventory", s.withSession(s.inventory))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": storefront.Version,
	})
}

func orEmpty[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

// Catalog

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	q := r.URL.Query()
	results := sess.Catalog().Search(catalog.Query{
		Text:     q.Get("q"),
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
	})
	writeJSON(w, http.StatusOK, orEmpty(results))
	return nil
}

type productDetail struct {
	catalog.Product
	Related []catalog.Product `json:"related"`
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	p, err := lookupProduct(sess.Catalog(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, productDetail{
		Product: p,
		Related: orEmpty(sess.Catalog().Related(p, relatedLimit)),
	})
	return nil
}

func lookupProduct(cat *catalog.Catalog, id string) (catalog.Product, error) {
	p, ok := cat.ByID(id)
	if !ok {
		return catalog.Product{}, fmt.Errorf("product %q: %w", id, core.ErrNotFound)
	}
	return p, nil
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	writeJSON(w, http.StatusOK, orEmpty(sess.Catalog().Categories()))
	return nil
}

// Cart

type cartView struct {
	Lines      []cart.Line     `json:"lines"`
	TotalItems int             `json:"totalItems"`
	TotalPrice currency.Amount `json:"totalPrice"`
}

func viewCart(c *cart.Store) cartView {
	return cartView{
		Lines:      orEmpty(c.Lines()),
		TotalItems: c.TotalItems(),
		TotalPrice: c.TotalPrice(),
	}
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	writeJSON(w, http.StatusOK, viewCart(sess.Cart()))
	return nil
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	var req addItemRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}
	if _, err := lookupProduct(sess.Catalog(), req.ProductID); err != nil {
		return err
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if qty < 1 {
		return fmt.Errorf("quantity %d below 1: %w", qty, core.ErrInvalidInput)
	}
	if err := sess.Cart().AddQuantity(r.Context(), req.ProductID, qty); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, viewCart(sess.Cart()))
	return nil
}

func findItem(c *cart.Store, id string) error {
	for _, it := range c.Items() {
		if it.ID == id {
			return nil
		}
	}
	return fmt.Errorf("cart item %q: %w", id, core.ErrNotFound)
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	id := r.PathValue("id")
	if err := findItem(sess.Cart(), id); err != nil {
		return err
	}
	var req quantityRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}
	if err := sess.Cart().SetQuantity(r.Context(), id, req.Quantity); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, viewCart(sess.Cart()))
	return nil
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	id := r.PathValue("id")
	if err := findItem(sess.Cart(), id); err != nil {
		return err
	}
	if err := sess.Cart().Remove(r.Context(), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, viewCart(sess.Cart()))
	return nil
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	if err := sess.Cart().Clear(r.Context()); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Auth

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	var req credentials
	if err := decode(w, r, &req); err != nil {
		return err
	}
	user, err := sess.Auth().Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, user)
	return nil
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	var req credentials
	if err := decode(w, r, &req); err != nil {
		return err
	}
	user, err := sess.Auth().Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, user)
	return nil
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	if err := sess.Auth().Logout(r.Context()); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	user, ok := sess.Auth().CurrentUser()
	if !ok {
		return errUnauthorized
	}
	writeJSON(w, http.StatusOK, user)
	return nil
}

// Orders

type checkoutRequest struct {
	Shipping orders.ShippingInfo `json:"shipping"`
	Payment  orders.PaymentInfo  `json:"payment"`
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	var req checkoutRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}
	order, err := sess.PlaceOrder(r.Context(), req.Shipping, req.Payment)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, order)
	return nil
}

func (s *Server) myOrders(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	list, err := sess.MyOrders(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, orEmpty(list))
	return nil
}

func (s *Server) adminOrders(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	q := r.URL.Query()
	filter := orders.Filter{Query: q.Get("q"), Status: q.Get("status")}
	if filter.Status != "" && filter.Status != orders.StatusAll {
		st, err := orders.ParseStatus(filter.Status)
		if err != nil {
			return err
		}
		filter.Status = string(st)
	}
	list, err := sess.Orders().Filter(r.Context(), filter)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, orEmpty(list))
	return nil
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	var req statusRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}
	st, err := orders.ParseStatus(req.Status)
	if err != nil {
		return err
	}
	order, err := sess.Orders().UpdateStatus(r.Context(), r.PathValue("id"), st)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, order)
	return nil
}

func (s *Server) adminStats(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	stats, err := sess.Stats(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, stats)
	return nil
}

// Notifications

type notificationList struct {
	Notifications []notifications.Notification `json:"notifications"`
	UnreadCount   int                          `json:"unreadCount"`
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	feed := sess.Notifications()
	writeJSON(w, http.StatusOK, notificationList{
		Notifications: orEmpty(feed.List()),
		UnreadCount:   feed.UnreadCount(),
	})
	return nil
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	if err := sess.Notifications().MarkAsRead(r.Context(), r.PathValue("id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) clearNotification(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	if err := sess.Notifications().Clear(r.Context(), r.PathValue("id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) clearNotifications(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	if err := sess.Notifications().ClearAll(r.Context()); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Inventory

type stockEntry struct {
	ProductID      string              `json:"productId"`
	Delta          int                 `json:"delta"`
	EstimatedStock int                 `json:"estimatedStock"`
	Level          realtime.StockLevel `json:"level"`
}

func (s *Server) inventory(w http.ResponseWriter, r *http.Request, sess *storefront.Session) error {
	inv := sess.Inventory()
	products := sess.Catalog().All()
	out := make([]stockEntry, 0, len(products))
	for _, p := range products {
		out = append(out, stockEntry{
			ProductID:      p.ID,
			Delta:          inv.Delta(p.ID),
			EstimatedStock: inv.EstimatedStock(p.ID),
			Level:          inv.StockLevel(p.ID),
		})
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}
