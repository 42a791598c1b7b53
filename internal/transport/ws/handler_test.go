package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"assessd/internal/assessment"
	"assessd/internal/model"
	"assessd/internal/service"
)

// stubSessions serves s1 in progress and done completed. racing is in
// progress on the first load and completed afterwards.
type stubSessions struct {
	racingLoads atomic.Int32
}

func (s *stubSessions) Get(_ context.Context, subject, id string) (*service.SessionView, error) {
	if subject != "" && subject != "cand-1" {
		return nil, assessment.ErrSessionNotFound
	}
	view := &service.SessionView{
		Session:  model.Session{ID: id, SubjectRef: "cand-1", Instrument: model.InstrumentDISC, Status: model.SessionInProgress},
		Progress: model.Progress{Answered: 2, Required: 4, Percent: 50},
	}
	switch id {
	case "s1":
	case "racing":
		if s.racingLoads.Add(1) > 1 {
			view.Status = model.SessionCompleted
		}
	case "done":
		view.Status = model.SessionCompleted
		view.Result = &model.ScoreResult{SessionID: id, SubjectRef: "cand-1", Instrument: model.InstrumentDISC,
			DISC: &model.DISCResult{PrimaryTrait: model.TraitS, OverallScore: 100}}
		view.Progress = model.Progress{Answered: 4, Required: 4, Percent: 100, Complete: true}
	default:
		return nil, assessment.ErrSessionNotFound
	}
	return view, nil
}

func newWatchServer(t *testing.T) (*httptest.Server, *Hub, *service.AuthService) {
	t.Helper()
	hub := NewHub(nil)
	auth := service.NewAuthService("secret", "admin", "pw", time.Hour)
	h := NewHandler(hub, auth, &stubSessions{}, nil, nil)

	r := mux.NewRouter()
	r.HandleFunc("/v1/ws/sessions/{id}", h.WatchSession)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	return srv, hub, auth
}

func wsURL(srv *httptest.Server, id, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws/sessions/" + id + "?token=" + token
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWatchSessionReceivesSnapshotAndEvents(t *testing.T) {
	srv, hub, auth := newWatchServer(t)
	tok, err := auth.IssueCandidateToken("cand-1")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "s1", tok.Token), nil)
	require.NoError(t, err)
	defer conn.Close()

	snap := readMessage(t, conn)
	require.Equal(t, MsgProgress, snap.Type)
	var ev service.ProgressEvent
	require.NoError(t, json.Unmarshal(snap.Payload, &ev))
	require.Equal(t, 50, ev.Progress.Percent)

	hub.BroadcastToWatchers("s1", service.EventCompleted, service.CompletedEvent{SessionID: "s1"})
	hub.DisconnectSession("s1")

	done := readMessage(t, conn)
	require.Equal(t, MsgCompleted, done.Type)

	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestWatchSessionAuthorization(t *testing.T) {
	srv, _, auth := newWatchServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "s1", ""), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	other, err := auth.IssueCandidateToken("cand-2")
	require.NoError(t, err)
	_, resp, err = websocket.DefaultDialer.Dial(wsURL(srv, "s1", other.Token), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	login, err := auth.Login("admin", "pw")
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "s1", login.Token), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, MsgProgress, readMessage(t, conn).Type)
}

func TestWatchCompletedSessionDeliversResultAndCloses(t *testing.T) {
	srv, _, auth := newWatchServer(t)
	tok, err := auth.IssueCandidateToken("cand-1")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "done", tok.Token), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, MsgProgress, readMessage(t, conn).Type)

	done := readMessage(t, conn)
	require.Equal(t, MsgCompleted, done.Type)
	var ev service.CompletedEvent
	require.NoError(t, json.Unmarshal(done.Payload, &ev))
	require.Equal(t, model.TraitS, ev.Result.DISC.PrimaryTrait)

	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestWatchSessionCompletedWhileConnectingCloses(t *testing.T) {
	srv, _, auth := newWatchServer(t)
	tok, err := auth.IssueCandidateToken("cand-1")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "racing", tok.Token), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, MsgProgress, readMessage(t, conn).Type)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
