// Package api serves the read-only query surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ammPool/internal/model"
)

const errTimeout = "request timed out"

// Pools answers pool queries.
type Pools interface {
	PoolState(ctx context.Context, assetA, assetB common.Address) (model.PoolState, error)
	Position(ctx context.Context, assetA, assetB, provider common.Address) (*big.Int, error)
	Quote(ctx context.Context, assetIn, assetOut common.Address, amountIn *big.Int) (*big.Int, error)
}

// Roles answers capability-table queries.
type Roles interface {
	HasRole(ctx context.Context, role model.Role, principal common.Address) (bool, error)
	RoleMembers(ctx context.Context, role model.Role) ([]common.Address, error)
}

// Events lists emitted events.
type Events interface {
	Since(seq uint64) []model.TypedEvent
}

// Server holds the handlers' dependencies.
type Server struct {
	pools    Pools
	roles    Roles
	events   Events
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

func NewServer(pools Pools, roles Roles, events Events, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{pools: pools, roles: roles, events: events, gatherer: gatherer, logger: logger}
}

// Routes builds the router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/pools/{assetA}/{assetB}", func(r chi.Router) {
		r.Get("/", s.getPool)
		r.Get("/positions/{provider}", s.getPosition)
	})
	r.Get("/quote", s.getQuote)
	r.Route("/roles", func(r chi.Router) {
		r.Get("/", s.listRoles)
		r.Get("/{role}/{principal}", s.hasRole)
	})
	r.Get("/events", s.listEvents)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	assetA, assetB, ok := pairParams(w, r)
	if !ok {
		return
	}
	state, err := s.pools.PoolState(r.Context(), assetA, assetB)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	encode(w, http.StatusOK, state)
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	assetA, assetB, ok := pairParams(w, r)
	if !ok {
		return
	}
	provider, ok := addressParam(w, chi.URLParam(r, "provider"), "provider")
	if !ok {
		return
	}
	shares, err := s.pools.Position(r.Context(), assetA, assetB, provider)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	key, _ := model.NewPairKey(assetA, assetB)
	encode(w, http.StatusOK, model.Position{Pair: key, Provider: provider, Shares: shares})
}

type quoteResponse struct {
	AssetIn   common.Address `json:"asset_in"`
	AssetOut  common.Address `json:"asset_out"`
	AmountIn  *big.Int       `json:"amount_in"`
	AmountOut *big.Int       `json:"amount_out"`
}

func (s *Server) getQuote(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	assetIn, ok := addressParam(w, query.Get("in"), "in")
	if !ok {
		return
	}
	assetOut, ok := addressParam(w, query.Get("out"), "out")
	if !ok {
		return
	}
	amountIn, valid := new(big.Int).SetString(query.Get("amount"), 10)
	if !valid {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}
	amountOut, err := s.pools.Quote(r.Context(), assetIn, assetOut, amountIn)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	encode(w, http.StatusOK, quoteResponse{AssetIn: assetIn, AssetOut: assetOut, AmountIn: amountIn, AmountOut: amountOut})
}

type roleResponse struct {
	Name    string           `json:"name"`
	ID      string           `json:"id"`
	Members []common.Address `json:"members,omitempty"`
}

func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	out := make([]roleResponse, 0, len(model.Roles()))
	for _, role := range model.Roles() {
		members, err := s.roles.RoleMembers(r.Context(), role)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out = append(out, roleResponse{Name: role.String(), ID: role.Hex(), Members: members})
	}
	encode(w, http.StatusOK, out)
}

func (s *Server) hasRole(w http.ResponseWriter, r *http.Request) {
	role, err := model.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	principal, ok := addressParam(w, chi.URLParam(r, "principal"), "principal")
	if !ok {
		return
	}
	member, err := s.roles.HasRole(r.Context(), role, principal)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	encode(w, http.StatusOK, map[string]interface{}{
		"role":      role.Hex(),
		"principal": principal,
		"member":    member,
	})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = parsed
	}
	encode(w, http.StatusOK, s.events.Since(since))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	select {
	case <-r.Context().Done():
		http.Error(w, errTimeout, http.StatusGatewayTimeout)
		return
	default:
	}

	status := http.StatusInternalServerError
	switch model.ErrorKind(err) {
	case "validation":
		status = http.StatusBadRequest
	case "insufficient_balance":
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("query failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(started)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func pairParams(w http.ResponseWriter, r *http.Request) (common.Address, common.Address, bool) {
	assetA, ok := addressParam(w, chi.URLParam(r, "assetA"), "assetA")
	if !ok {
		return common.Address{}, common.Address{}, false
	}
	assetB, ok := addressParam(w, chi.URLParam(r, "assetB"), "assetB")
	if !ok {
		return common.Address{}, common.Address{}, false
	}
	return assetA, assetB, true
}

func addressParam(w http.ResponseWriter, value, name string) (common.Address, bool) {
	if !common.IsHexAddress(value) {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return common.Address{}, false
	}
	return common.HexToAddress(value), true
}

func encode(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
