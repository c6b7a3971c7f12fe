package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/bookstore_lambda/internal/envelope"
	"github.com/R3E-Network/bookstore_lambda/internal/httputil"
)

// Shop is a physical store stocking some books.
type Shop struct {
	Address string   `json:"address"`
	BookIDs []string `json:"bookIds,omitempty"`
}

// DefaultShops is the static catalogue served by ShopRouter.
var DefaultShops = []Shop{
	{Address: "Gran via 5, Madrid", BookIDs: []string{"12", "23"}},
	{Address: "Calle 8 #23-45, Bogotá"},
	{Address: "Avenida Paulista 1000, São Paulo", BookIDs: []string{"12", "23"}},
	{Address: "Oxford Street 200, London", BookIDs: []string{"12", "23"}},
}

// ShopRouter serves the shop catalogue. It has no storage dependency.
type ShopRouter struct {
	shops []Shop
}

// NewShopRouter serves shops, or DefaultShops when nil.
func NewShopRouter(shops []Shop) *ShopRouter {
	if shops == nil {
		shops = DefaultShops
	}
	return &ShopRouter{shops: shops}
}

func (s *ShopRouter) BasePath() string { return "/shops" }

func (s *ShopRouter) Register(r *mux.Router, env *envelope.Envelope) {
	r.Handle("", env.Handle(func(w http.ResponseWriter, _ *http.Request) error {
		httputil.WriteJSON(w, http.StatusOK, s.shops)
		return nil
	})).Methods(http.MethodGet)
}
