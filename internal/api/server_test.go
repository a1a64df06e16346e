package api

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"ammPool/internal/access"
	"ammPool/internal/amm"
	"ammPool/internal/asset"
	"ammPool/internal/events"
	"ammPool/internal/metrics"
	"ammPool/internal/model"
	"ammPool/internal/storage/memory"
)

var (
	custody = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	admin   = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	tokenA  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	log := events.NewLog(nil)
	ledger := asset.NewMemoryLedger()
	reg := prometheus.NewRegistry()

	control := access.New(store, log, nil)
	require.NoError(t, control.Initialize(ctx, admin))

	engine, err := amm.NewEngine(amm.Config{Custody: custody}, store, ledger, log, metrics.New(reg), nil)
	require.NoError(t, err)
	for _, token := range []common.Address{tokenA, tokenB} {
		require.NoError(t, ledger.Mint(token, admin, big.NewInt(1000)))
		require.NoError(t, ledger.Approve(ctx, token, admin, custody, big.NewInt(1000)))
	}
	_, err = engine.AddLiquidity(ctx, admin, tokenA, tokenB, big.NewInt(1000), big.NewInt(1000))
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(engine, control, log, reg, nil).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, status int, out interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, status, resp.StatusCode)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func TestPoolAndPositionRoutes(t *testing.T) {
	srv := newTestServer(t)

	var state model.PoolState
	getJSON(t, srv.URL+"/pools/"+tokenB.Hex()+"/"+tokenA.Hex(), http.StatusOK, &state)
	require.Equal(t, tokenB, state.AssetA)
	require.Equal(t, int64(1000), state.ReserveA.Int64())
	require.Equal(t, int64(1000), state.TotalShares.Int64())

	var position model.Position
	getJSON(t, srv.URL+"/pools/"+tokenA.Hex()+"/"+tokenB.Hex()+"/positions/"+admin.Hex(), http.StatusOK, &position)
	require.Equal(t, int64(1000), position.Shares.Int64())

	getJSON(t, srv.URL+"/pools/nope/"+tokenB.Hex(), http.StatusBadRequest, nil)
}

func TestQuoteRoute(t *testing.T) {
	srv := newTestServer(t)

	var quote quoteResponse
	getJSON(t, srv.URL+"/quote?in="+tokenA.Hex()+"&out="+tokenB.Hex()+"&amount=10", http.StatusOK, &quote)
	require.Equal(t, int64(10), quote.AmountOut.Int64())

	getJSON(t, srv.URL+"/quote?in="+tokenA.Hex()+"&out="+tokenA.Hex()+"&amount=10", http.StatusBadRequest, nil)
	getJSON(t, srv.URL+"/quote?in="+tokenA.Hex()+"&out="+tokenB.Hex()+"&amount=x", http.StatusBadRequest, nil)

	unknown := common.HexToAddress("0x0000000000000000000000000000000000000001")
	getJSON(t, srv.URL+"/quote?in="+tokenA.Hex()+"&out="+unknown.Hex()+"&amount=10", http.StatusUnprocessableEntity, nil)
}

func TestRoleRoutes(t *testing.T) {
	srv := newTestServer(t)

	var roles []roleResponse
	getJSON(t, srv.URL+"/roles", http.StatusOK, &roles)
	require.Len(t, roles, 2)
	require.Equal(t, "UPGRADER_ROLE", roles[1].Name)
	require.Equal(t, []common.Address{admin}, roles[1].Members)

	var member struct {
		Member bool `json:"member"`
	}
	getJSON(t, srv.URL+"/roles/upgrader/"+admin.Hex(), http.StatusOK, &member)
	require.True(t, member.Member)
	getJSON(t, srv.URL+"/roles/upgrader/"+custody.Hex(), http.StatusOK, &member)
	require.False(t, member.Member)
	getJSON(t, srv.URL+"/roles/bogus/"+admin.Hex(), http.StatusBadRequest, nil)
}

func TestEventsRoute(t *testing.T) {
	srv := newTestServer(t)

	var all []model.TypedEvent
	getJSON(t, srv.URL+"/events", http.StatusOK, &all)
	// two role grants, one deposit
	require.Len(t, all, 3)
	require.Equal(t, model.EventLiquidityAdded, all[2].EventName)

	var tail []model.TypedEvent
	getJSON(t, srv.URL+"/events?since=2", http.StatusOK, &tail)
	require.Len(t, tail, 1)
	getJSON(t, srv.URL+"/events?since=-1", http.StatusBadRequest, nil)
}

func TestMetricsRoute(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `amm_operations_total{op="add_liquidity",outcome="ok"} 1`)
}
