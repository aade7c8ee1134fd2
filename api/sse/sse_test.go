package sse_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brewbuds/server/api/sse"
	"github.com/brewbuds/server/cache"
	"github.com/brewbuds/server/config"
	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/push"
	"github.com/brewbuds/server/service/notify"
	"github.com/brewbuds/server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var sec = config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: time.Hour}

func TestServeSSE_RejectsBadTokens(t *testing.T) {
	c, ps := testutil.SetupTestCache(t)
	db := testutil.SetupTestDB(t)
	n := notify.New(db, ps, push.Nop{}, 4, zap.NewNop())
	t.Cleanup(n.Stop)
	r := gin.New()
	r.GET("/sse", sse.NewHandler(n, c, sec, zap.NewNop()).ServeSSE)

	for _, q := range []string{"", "?token=garbage"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sse"+q, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, q)
	}

	// Valid signature but no session.
	tok, err := mw.GenerateToken(1, sec.JWTSecret, time.Hour)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sse?token="+tok, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServeSSE_StreamsNotifications(t *testing.T) {
	c, ps := testutil.SetupTestCache(t)
	db := testutil.SetupTestDB(t)
	n := notify.New(db, ps, push.Nop{}, 4, zap.NewNop())
	t.Cleanup(n.Stop)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	tok, err := mw.GenerateToken(alice.ID, sec.JWTSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), cache.SessionKey(tok), "1", time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// One unread notification before connecting.
	require.NoError(t, n.Notify(ctx, notify.Notice{
		UserID: alice.ID, ActorID: bob.ID, Type: model.NotifyFollow,
		ObjectType: model.ObjectUser, ObjectID: bob.ID,
	}))

	r := gin.New()
	r.GET("/sse", sse.NewHandler(n, c, sec, zap.NewNop()).ServeSSE)
	srv := httptest.NewServer(r)
	defer srv.Close()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func(prefix string) string {
		for lines.Scan() {
			if strings.HasPrefix(lines.Text(), prefix) {
				return lines.Text()
			}
		}
		t.Fatalf("stream ended before %q", prefix)
		return ""
	}
	next("event: connected")
	assert.Contains(t, next("data: "), `"unread":1`)

	require.NoError(t, n.Notify(ctx, notify.Notice{
		UserID: alice.ID, ActorID: bob.ID, Type: model.NotifyFollow,
		ObjectType: model.ObjectUser, ObjectID: bob.ID,
	}))
	assert.Regexp(t, `^id: \d+$`, next("id: "))
	assert.Equal(t, "event: notification", next("event: notification"))
	data := next("data: ")
	assert.Contains(t, data, `"type":"follow"`)
}

func TestServeSSE_Keepalive(t *testing.T) {
	c, ps := testutil.SetupTestCache(t)
	db := testutil.SetupTestDB(t)
	n := notify.New(db, ps, push.Nop{}, 4, zap.NewNop())
	t.Cleanup(n.Stop)
	alice := testutil.CreateUser(t, db, "alice")
	tok, err := mw.GenerateToken(alice.ID, sec.JWTSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), cache.SessionKey(tok), "1", time.Hour))

	r := gin.New()
	r.GET("/sse", sse.NewHandler(n, c, sec, zap.NewNop()).WithKeepalive(20*time.Millisecond).ServeSSE)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse?token="+tok, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	for lines.Scan() {
		if lines.Text() == ": keepalive" {
			return
		}
	}
	t.Fatal("no keepalive received")
}
