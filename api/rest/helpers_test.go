package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brewbuds/server/api/rest"
	"github.com/brewbuds/server/audit"
	"github.com/brewbuds/server/config"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/push"
	"github.com/brewbuds/server/scheduler"
	"github.com/brewbuds/server/service/bean"
	"github.com/brewbuds/server/service/comment"
	"github.com/brewbuds/server/service/event"
	"github.com/brewbuds/server/service/feed"
	"github.com/brewbuds/server/service/like"
	"github.com/brewbuds/server/service/note"
	"github.com/brewbuds/server/service/notify"
	"github.com/brewbuds/server/service/photo"
	"github.com/brewbuds/server/service/post"
	"github.com/brewbuds/server/service/ranking"
	"github.com/brewbuds/server/service/recommend"
	"github.com/brewbuds/server/service/record"
	"github.com/brewbuds/server/service/relationship"
	"github.com/brewbuds/server/service/report"
	"github.com/brewbuds/server/service/user"
	"github.com/brewbuds/server/storage"
	"github.com/brewbuds/server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	r     *gin.Engine
	db    *gorm.DB
	audit *audit.Recorder
	store *storage.MemoryStore
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	log := zap.NewNop()
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: time.Hour}

	notifier := notify.New(db, ps, push.Nop{}, 16, log)
	t.Cleanup(notifier.Stop)
	sched := scheduler.New(log)
	t.Cleanup(sched.Stop)
	store := storage.NewMemory("http://cdn.test")

	rel := relationship.New(db, notifier, log)
	likes := like.New(db, rel, notifier, log)
	notes := note.New(db)
	comments := comment.New(db, rel, likes, notifier, log)
	photos := photo.New(db, store, 1, log)
	recorder := &audit.Recorder{}

	r := gin.New()
	rest.Mount(r, rest.Deps{
		DB:        db,
		Cache:     c,
		Security:  sec,
		Sched:     sched,
		Audit:     recorder,
		Logger:    log,
		Users:     user.New(db, c, rel, sec, log),
		Rel:       rel,
		Feed:      feed.New(db, c, rel, config.FeedConfig{ViewTTL: time.Hour}, log),
		Records:   record.New(db, rel, likes, notes, comments, photos, log),
		Posts:     post.New(db, rel, likes, notes, comments, photos, log),
		Comments:  comments,
		Likes:     likes,
		Notes:     notes,
		Beans:     bean.New(db, c, notes, log),
		Recommend: recommend.New(db, config.RecommendConfig{}, log),
		Ranking:   ranking.New(db, c, rel, config.RankingConfig{}, log),
		Notify:    notifier,
		Photos:    photos,
		Reports:   report.New(db),
		Events:    event.New(db),
	})
	return &server{r: r, db: db, audit: recorder, store: store}
}

func (s *server) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func postJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// register signs up and logs in, returning the user id and token.
func (s *server) register(t *testing.T, nickname string) (int64, string) {
	t.Helper()
	email := nickname + "@brewbuds.dev"
	w := postJSON(s.r, "/api/auth/signup", map[string]string{
		"email": email, "password": "password1", "nickname": nickname,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = postJSON(s.r, "/api/auth/login", map[string]string{"email": email, "password": "password1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.User.ID, resp.Token
}

func (s *server) makeStaff(t *testing.T, id int64) {
	t.Helper()
	require.NoError(t, s.db.Model(&model.User{}).Where("id = ?", id).Update("is_staff", true).Error)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
