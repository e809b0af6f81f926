package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"DiveHouse/internal/custody"
	"DiveHouse/internal/engine"
	"DiveHouse/internal/ledger"
	"DiveHouse/internal/model"
	"DiveHouse/internal/roll"
	"DiveHouse/internal/store"
)

func newTestServer(t *testing.T, params model.GameParams) *httptest.Server {
	t.Helper()
	bank := custody.NewBank(map[string]uint64{
		"house":    1_000_000_000,
		"player-1": 10_000_000,
	})
	eng, err := engine.New(params,
		ledger.NewManager(model.LedgerState{}, ledger.Options{}),
		bank, store.NewMemoryStore(), roll.NewSeededSource([32]byte{3}), nil,
		engine.SystemClock{}, engine.Options{HouseAccount: "house", TimeoutTicks: 9000})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(NewServer(eng).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func alwaysSurvive() model.GameParams {
	p := model.DefaultParams()
	p.BaseSurvivalPPM = 1_000_000
	p.DecayPerDivePPM = 0
	p.MinSurvivalPPM = 1_000_000
	return p
}

func postJSON(t *testing.T, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp, out.Bytes()
}

func openSession(t *testing.T, srv *httptest.Server, bet uint64) model.Session {
	t.Helper()
	resp, body := postJSON(t, srv.URL+"/sessions", map[string]any{"player": "player-1", "bet": bet})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open: status %d, body %s", resp.StatusCode, body)
	}
	var sess model.Session
	if err := json.Unmarshal(body, &sess); err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestOpenGetAdvanceCashOut(t *testing.T) {
	srv := newTestServer(t, alwaysSurvive())
	sess := openSession(t, srv, 1_000_000)
	if sess.Status != model.StatusActive || sess.DiveIndex != 1 {
		t.Fatalf("unexpected session: %+v", sess)
	}

	resp, err := http.Get(srv.URL + "/sessions/" + sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d", resp.StatusCode)
	}

	resp, body := postJSON(t, srv.URL+"/sessions/"+sess.ID+"/advance", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("advance: status %d, body %s", resp.StatusCode, body)
	}
	var adv struct {
		Outcome string        `json:"outcome"`
		Session model.Session `json:"session"`
	}
	if err := json.Unmarshal(body, &adv); err != nil {
		t.Fatal(err)
	}
	if adv.Outcome != "survive" || adv.Session.DiveIndex != 2 || adv.Session.CurrentTreasure != 1_100_000 {
		t.Fatalf("unexpected advance: %+v", adv)
	}

	resp, body = postJSON(t, srv.URL+"/sessions/"+sess.ID+"/cashout", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cashout: status %d, body %s", resp.StatusCode, body)
	}
	var out model.Session
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Status != model.StatusCashedOut {
		t.Fatalf("status = %s, want CASHED_OUT", out.Status)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t, model.DefaultParams())

	resp, err := http.Get(srv.URL + "/sessions/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session: status %d, want 404", resp.StatusCode)
	}

	resp, _ = postJSON(t, srv.URL+"/sessions", map[string]any{"player": "player-1", "bet": 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("tiny bet: status %d, want 400", resp.StatusCode)
	}
	resp, _ = postJSON(t, srv.URL+"/sessions", map[string]any{"bet": 1_000_000})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing player: status %d, want 400", resp.StatusCode)
	}

	sess := openSession(t, srv, 1_000_000)

	// Treasure equals bet, so cashing out conflicts.
	resp, _ = postJSON(t, srv.URL+"/sessions/"+sess.ID+"/cashout", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("unprofitable cashout: status %d, want 409", resp.StatusCode)
	}

	// Not yet expired conflicts too.
	resp, _ = postJSON(t, srv.URL+"/sessions/"+sess.ID+"/reclaim", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("early reclaim: status %d, want 409", resp.StatusCode)
	}
}

func TestLockedHouseReturns503(t *testing.T) {
	srv := newTestServer(t, model.DefaultParams())

	resp, body := postJSON(t, srv.URL+"/admin/lock", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lock: status %d, body %s", resp.StatusCode, body)
	}
	var lock map[string]bool
	if err := json.Unmarshal(body, &lock); err != nil {
		t.Fatal(err)
	}
	if !lock["locked"] {
		t.Fatal("lock not engaged")
	}

	resp, _ = postJSON(t, srv.URL+"/sessions", map[string]any{"player": "player-1", "bet": 1_000_000})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("open while locked: status %d, want 503", resp.StatusCode)
	}
}

func TestHouseStatusAndAdmin(t *testing.T) {
	srv := newTestServer(t, model.DefaultParams())
	openSession(t, srv, 1_000_000)

	resp, err := http.Get(srv.URL + "/house")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var house struct {
		Balance       uint64 `json:"balance"`
		TotalReserved uint64 `json:"total_reserved"`
		Locked        bool   `json:"locked"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&house); err != nil {
		t.Fatal(err)
	}
	if house.Balance != 1_001_000_000 || house.TotalReserved != 100_000_000 || house.Locked {
		t.Fatalf("unexpected house: %+v", house)
	}

	// Update only the minimum bet.
	resp, body := postJSON(t, srv.URL+"/admin/config", map[string]any{"min_bet": 200_000})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("config: status %d, body %s", resp.StatusCode, body)
	}
	var params model.GameParams
	if err := json.Unmarshal(body, &params); err != nil {
		t.Fatal(err)
	}
	if params.MinBet != 200_000 || params.BaseSurvivalPPM != 990_000 {
		t.Fatalf("unexpected params: %+v", params)
	}

	resp, _ = postJSON(t, srv.URL+"/admin/config", map[string]any{"base_survival_ppm": 2_000_000})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid config: status %d, want 400", resp.StatusCode)
	}

	// Withdraw beyond the allowance is rejected.
	resp, _ = postJSON(t, srv.URL+"/admin/withdraw", map[string]any{"to": "treasury", "amount": 1_000_000_001})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("over-withdraw: status %d, want 422", resp.StatusCode)
	}
	resp, _ = postJSON(t, srv.URL+"/admin/withdraw", map[string]any{"to": "treasury", "amount": 100_000_000})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("withdraw: status %d", resp.StatusCode)
	}

	// Reservations outstanding, reset refuses.
	resp, _ = postJSON(t, srv.URL+"/admin/reset-reserved", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("reset with reservations: status %d, want 409", resp.StatusCode)
	}
}

func TestAdvance_UnknownSession404(t *testing.T) {
	srv := newTestServer(t, model.DefaultParams())
	resp, _ := postJSON(t, fmt.Sprintf("%s/sessions/%s/advance", srv.URL, "missing"), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
}
