package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/quora/internal/answer"
	"github.com/hitoshi/quora/internal/auth"
	"github.com/hitoshi/quora/internal/authz"
	"github.com/hitoshi/quora/internal/middleware"
	"github.com/hitoshi/quora/internal/model"
	"github.com/hitoshi/quora/internal/question"
	"github.com/hitoshi/quora/internal/repository/memstore"
	"github.com/hitoshi/quora/internal/user"
)

// stepClock はテスト中に進められる時計。
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type app struct {
	store   *memstore.Store
	clock   *stepClock
	handler http.Handler
}

// newApp はメモリストア上に実サービスを組み立てたルーターを返す。
func newApp(t *testing.T, policy StatusPolicy) *app {
	t.Helper()
	store := memstore.New()
	clk := &stepClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}

	az := authz.NewAuthorizer(store.Sessions(), store.Users(), store.Questions(), store.Answers(), clk)
	az.OnAuthenticated(func(ctx context.Context, p *authz.Principal) {
		middleware.SetUserID(ctx, p.UserID())
	})

	authSvc := auth.NewService(store, store.Users(), store.Sessions(), clk, auth.ServiceConfig{
		SessionMaxAge: 28800,
		BcryptCost:    bcrypt.MinCost,
	})
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     1000,
		GeneralBurst:    1000,
		SigninRate:      1000,
		SigninBurst:     1000,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)

	h := NewRouter(&RouterDeps{
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		HealthChecker:     pingFn(func(context.Context) error { return nil }),
		StatusPolicy:      policy,
		AuthService:       authSvc,
		QuestionService:   question.NewService(store, az, store.Questions(), store.Users(), clk, true),
		AnswerService:     answer.NewService(store, az, store.Answers(), clk),
		UserService:       user.NewService(store, az, store.Users(), store.Sessions()),
	})
	return &app{store: store, clock: clk, handler: h}
}

func (a *app) signup(t *testing.T, username string) string {
	t.Helper()
	w := doJSON(a.handler, http.MethodPost, "/user/signup", "",
		`{"user_name":"`+username+`","email_address":"`+username+`@example.com","password":"pw-`+username+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup %s: status = %d, body=%s", username, w.Code, w.Body.String())
	}
	return decodeBody[map[string]string](t, w)["id"]
}

func (a *app) signin(t *testing.T, username string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/user/signin", nil)
	req.SetBasicAuth(username, "pw-"+username)
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("signin %s: status = %d, body=%s", username, w.Code, w.Body.String())
	}
	token := w.Header().Get(middleware.AccessTokenHeader)
	if token == "" {
		t.Fatalf("signin %s: no access-token header", username)
	}
	return token
}

// promoteToAdmin は登録済みユーザーを管理者として作り直す。
func (a *app) promoteToAdmin(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	u, err := a.store.Users().FindByID(ctx, userID)
	if err != nil || u == nil {
		t.Fatalf("FindByID(%s) = %v, %v", userID, u, err)
	}
	if err := a.store.Users().DeleteByID(ctx, userID); err != nil {
		t.Fatalf("DeleteByID error: %v", err)
	}
	u.Role = model.RoleAdmin
	if err := a.store.Users().Create(ctx, u); err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Errorf("status = %d, want %d; body=%s", w.Code, status, w.Body.String())
	}
	if got := decodeBody[map[string]string](t, w)["code"]; got != code {
		t.Errorf("code = %q, want %q", got, code)
	}
}

func TestIntegration_QuestionLifecycle(t *testing.T) {
	a := newApp(t, DefaultStatusPolicy())
	a.signup(t, "alice")
	a.signup(t, "bob")
	alice := a.signin(t, "alice")
	bob := a.signin(t, "bob")

	w := doJSON(a.handler, http.MethodPost, "/question/create", alice, `{"content":"What is a goroutine?"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	qid := decodeBody[map[string]string](t, w)["id"]

	// 作成した質問が一覧に同じ内容で現れる
	w = doJSON(a.handler, http.MethodGet, "/question/all", bob, "")
	list := decodeBody[[]map[string]string](t, w)
	if len(list) != 1 || list[0]["id"] != qid || list[0]["content"] != "What is a goroutine?" {
		t.Errorf("list = %v", list)
	}

	// 所有者以外は編集できない
	w = doJSON(a.handler, http.MethodPut, "/question/edit/"+qid, bob, `{"content":"hijacked"}`)
	assertError(t, w, http.StatusForbidden, model.ErrCodeForbidden)

	w = doJSON(a.handler, http.MethodPut, "/question/edit/"+qid, alice, `{"content":"What is a channel?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("edit status = %d", w.Code)
	}

	// 回答してから質問を削除すると回答も消える
	w = doJSON(a.handler, http.MethodPost, "/question/"+qid+"/answer/create", bob, `{"answer":"A typed pipe"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("answer status = %d", w.Code)
	}
	aid := decodeBody[map[string]string](t, w)["id"]

	w = doJSON(a.handler, http.MethodGet, "/answer/all/"+qid, alice, "")
	answers := decodeBody[[]map[string]string](t, w)
	if len(answers) != 1 || answers[0]["question_content"] != "What is a channel?" || answers[0]["answer_content"] != "A typed pipe" {
		t.Errorf("answers = %v", answers)
	}

	w = doJSON(a.handler, http.MethodDelete, "/question/delete/"+qid, bob, "")
	assertError(t, w, http.StatusForbidden, model.ErrCodeForbidden)

	w = doJSON(a.handler, http.MethodDelete, "/question/delete/"+qid, alice, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if got, _ := a.store.Answers().FindByID(context.Background(), aid); got != nil {
		t.Error("answer should be removed with its question")
	}
}

func TestIntegration_SessionFailures(t *testing.T) {
	a := newApp(t, DefaultStatusPolicy())
	a.signup(t, "alice")
	token := a.signin(t, "alice")

	t.Run("no token", func(t *testing.T) {
		w := doJSON(a.handler, http.MethodGet, "/question/all", "", "")
		assertError(t, w, http.StatusUnauthorized, model.ErrCodeNotSignedIn)
	})

	t.Run("unknown token", func(t *testing.T) {
		w := doJSON(a.handler, http.MethodPost, "/question/create", "bogus", `{"content":"x"}`)
		assertError(t, w, http.StatusUnauthorized, model.ErrCodeNotSignedIn)
	})

	t.Run("raw token without Bearer prefix", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/question/all", nil)
		req.Header.Set("Authorization", token)
		w := httptest.NewRecorder()
		a.handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("signed out", func(t *testing.T) {
		other := a.signin(t, "alice")
		if w := doJSON(a.handler, http.MethodPost, "/user/signout", other, ""); w.Code != http.StatusOK {
			t.Fatalf("signout status = %d", w.Code)
		}
		w := doJSON(a.handler, http.MethodPost, "/question/create", other, `{"content":"x"}`)
		assertError(t, w, http.StatusUnauthorized, model.ErrCodeSignedOut)

		// 二重サインアウトは拒否される
		w = doJSON(a.handler, http.MethodPost, "/user/signout", other, "")
		assertError(t, w, http.StatusForbidden, model.ErrCodeSignOutRestricted)

		// 他のセッションは影響を受けない
		if w := doJSON(a.handler, http.MethodGet, "/question/all", token, ""); w.Code != http.StatusOK {
			t.Errorf("other session status = %d, want 200", w.Code)
		}
	})

	t.Run("expired", func(t *testing.T) {
		a.clock.Advance(8*time.Hour + time.Second)
		w := doJSON(a.handler, http.MethodGet, "/question/all", token, "")
		assertError(t, w, http.StatusUnauthorized, model.ErrCodeSignedOut)
	})
}

// TestIntegration_SessionCheckedBeforeBodyValidation は空・不正なボディでも
// セッション検証が先に行われ、本文の検証は認可を通過した後になることを検証する。
func TestIntegration_SessionCheckedBeforeBodyValidation(t *testing.T) {
	a := newApp(t, DefaultStatusPolicy())
	ownerID := a.signup(t, "alice")
	a.signup(t, "bob")
	owner := a.signin(t, "alice")
	other := a.signin(t, "bob")

	w := doJSON(a.handler, http.MethodPost, "/question/create", owner, `{"content":"original"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	qID := decodeBody[map[string]string](t, w)["id"]
	w = doJSON(a.handler, http.MethodPost, "/question/"+qID+"/answer/create", owner, `{"answer":"reply"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("answer create status = %d", w.Code)
	}
	aID := decodeBody[map[string]string](t, w)["id"]

	unauthenticated := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/question/create", `{"content":""}`},
		{http.MethodPost, "/question/create", `not json`},
		{http.MethodPut, "/question/edit/q-missing", `{"content":""}`},
		{http.MethodPost, "/question/q-missing/answer/create", `{}`},
		{http.MethodPut, "/answer/edit/" + aID, `{"content":" "}`},
	}
	for _, tc := range unauthenticated {
		t.Run("unknown token "+tc.method+" "+tc.path, func(t *testing.T) {
			w := doJSON(a.handler, tc.method, tc.path, "no-such-token", tc.body)
			assertError(t, w, http.StatusUnauthorized, model.ErrCodeNotSignedIn)
		})
	}

	t.Run("content resolution precedes validation", func(t *testing.T) {
		w := doJSON(a.handler, http.MethodPut, "/question/edit/q-missing", owner, `{"content":""}`)
		assertError(t, w, http.StatusNotFound, model.ErrCodeInvalidQuestion)
		w = doJSON(a.handler, http.MethodPost, "/question/q-missing/answer/create", owner, `{}`)
		assertError(t, w, http.StatusNotFound, model.ErrCodeInvalidQuestion)
	})

	t.Run("ownership precedes validation", func(t *testing.T) {
		w := doJSON(a.handler, http.MethodPut, "/question/edit/"+qID, other, `{"content":""}`)
		assertError(t, w, http.StatusForbidden, model.ErrCodeForbidden)
		w = doJSON(a.handler, http.MethodPut, "/answer/edit/"+aID, other, `not json`)
		assertError(t, w, http.StatusForbidden, model.ErrCodeForbidden)
	})

	t.Run("authorized empty body is rejected without mutation", func(t *testing.T) {
		w := doJSON(a.handler, http.MethodPut, "/question/edit/"+qID, owner, `{"content":"  "}`)
		assertError(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)
		w = doJSON(a.handler, http.MethodPost, "/question/create", owner, `not json`)
		assertError(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)

		q, _ := a.store.Questions().FindByID(context.Background(), qID)
		if q == nil || q.Content != "original" || q.UserID != ownerID {
			t.Errorf("question = %+v, want unchanged", q)
		}
	})
}

func TestIntegration_ForbiddenAuthFailurePolicy(t *testing.T) {
	a := newApp(t, StatusPolicy{AuthFailureStatus: http.StatusForbidden})

	w := doJSON(a.handler, http.MethodGet, "/question/all", "bogus", "")
	assertError(t, w, http.StatusForbidden, model.ErrCodeNotSignedIn)
}

func TestIntegration_AnswerToMissingQuestion(t *testing.T) {
	a := newApp(t, DefaultStatusPolicy())
	a.signup(t, "alice")
	token := a.signin(t, "alice")

	w := doJSON(a.handler, http.MethodPost, "/question/00000000-0000-0000-0000-000000000000/answer/create", token, `{"answer":"x"}`)
	assertError(t, w, http.StatusNotFound, model.ErrCodeInvalidQuestion)
}

func TestIntegration_AdminPowers(t *testing.T) {
	a := newApp(t, DefaultStatusPolicy())
	adminID := a.signup(t, "root")
	aliceID := a.signup(t, "alice")
	a.promoteToAdmin(t, adminID)
	admin := a.signin(t, "root")
	alice := a.signin(t, "alice")

	w := doJSON(a.handler, http.MethodPost, "/question/create", alice, `{"content":"mine"}`)
	qid := decodeBody[map[string]string](t, w)["id"]
	w = doJSON(a.handler, http.MethodPost, "/question/"+qid+"/answer/create", alice, `{"answer":"also mine"}`)
	aid := decodeBody[map[string]string](t, w)["id"]

	// 管理者でも他人の投稿は編集できない
	w = doJSON(a.handler, http.MethodPut, "/question/edit/"+qid, admin, `{"content":"admin"}`)
	assertError(t, w, http.StatusForbidden, model.ErrCodeForbidden)
	w = doJSON(a.handler, http.MethodPut, "/answer/edit/"+aid, admin, `{"content":"admin"}`)
	assertError(t, w, http.StatusForbidden, model.ErrCodeForbidden)

	// 管理者は他人の回答を削除できる
	if w := doJSON(a.handler, http.MethodDelete, "/answer/delete/"+aid, admin, ""); w.Code != http.StatusOK {
		t.Errorf("admin answer delete status = %d", w.Code)
	}

	// 一般ユーザーはユーザー削除できない
	w = doJSON(a.handler, http.MethodDelete, "/admin/user/"+adminID, alice, "")
	assertError(t, w, http.StatusForbidden, model.ErrCodeForbidden)

	w = doJSON(a.handler, http.MethodDelete, "/admin/user/"+aliceID, admin, "")
	if w.Code != http.StatusOK {
		t.Fatalf("admin delete status = %d; body=%s", w.Code, w.Body.String())
	}

	// 削除されたユーザーのトークンは無効になる
	w = doJSON(a.handler, http.MethodGet, "/question/all", alice, "")
	assertError(t, w, http.StatusUnauthorized, model.ErrCodeNotSignedIn)

	w = doJSON(a.handler, http.MethodGet, "/userprofile/"+aliceID, admin, "")
	assertError(t, w, http.StatusNotFound, model.ErrCodeUserNotFound)

	w = doJSON(a.handler, http.MethodGet, "/question/all", admin, "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("questions after delete = %s", w.Body.String())
	}
}

func TestIntegration_SignupConflictsAndProfile(t *testing.T) {
	a := newApp(t, DefaultStatusPolicy())
	id := a.signup(t, "alice")

	w := doJSON(a.handler, http.MethodPost, "/user/signup", "", `{"user_name":"alice","email_address":"x@example.com","password":"pw"}`)
	assertError(t, w, http.StatusUnprocessableEntity, model.ErrCodeUsernameTaken)
	w = doJSON(a.handler, http.MethodPost, "/user/signup", "", `{"user_name":"alice2","email_address":"alice@example.com","password":"pw"}`)
	assertError(t, w, http.StatusUnprocessableEntity, model.ErrCodeEmailTaken)

	req := httptest.NewRequest(http.MethodPost, "/user/signin", nil)
	req.SetBasicAuth("alice", "wrong")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assertError(t, rec, http.StatusUnauthorized, model.ErrCodePasswordMismatch)

	token := a.signin(t, "alice")
	w = doJSON(a.handler, http.MethodGet, "/userprofile/"+id, token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("profile status = %d", w.Code)
	}
	if got := decodeBody[map[string]string](t, w)["user_name"]; got != "alice" {
		t.Errorf("user_name = %q", got)
	}
}
