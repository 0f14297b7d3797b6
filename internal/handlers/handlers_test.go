package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/arbmuseum/arb/backend/internal/alerts"
	"github.com/arbmuseum/arb/backend/internal/auth"
	"github.com/arbmuseum/arb/backend/internal/database"
	"github.com/arbmuseum/arb/backend/internal/middleware"
	"github.com/arbmuseum/arb/backend/internal/models"
	"github.com/arbmuseum/arb/backend/internal/progress"
	"github.com/arbmuseum/arb/backend/internal/queue"
	"github.com/arbmuseum/arb/backend/internal/scoring"
	"github.com/arbmuseum/arb/backend/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// HandlersTestSuite runs every route against an in-memory database
type HandlersTestSuite struct {
	suite.Suite
	db       *gorm.DB
	router   *gin.Engine
	handlers *Handlers
	auth     *auth.Service
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func (suite *HandlersTestSuite) SetupTest() {
	db, err := database.Open("sqlite://:memory:", database.Options{})
	suite.Require().NoError(err)
	suite.Require().NoError(database.MigrateDB(db))
	suite.db = db

	engine := progress.NewEngine(db, progress.Config{FirstViewPoints: 10})
	suite.auth = auth.NewService(db, []byte("test-secret"), time.Hour)

	store, err := storage.NewLocalVideoStore(suite.T().TempDir(), "http://localhost:8787")
	suite.Require().NoError(err)
	uploader := scoring.NewUploader(db, store, scoring.NewService(db, 10, 50),
		scoring.UploadLimits{AllowedMIME: "video/mp4", MaxBytes: 4096})

	suite.handlers = NewHandlers(db, engine)
	suite.handlers.SetAuthService(suite.auth)
	suite.handlers.SetUploader(uploader, 4096)
	suite.handlers.SetHealthMessage("museum is open")

	// Workers are not started; the queue only serves as the alert source
	evaluator := alerts.NewEvaluator(alerts.NewAlertManager(), queue.NewPromoQueue(db, nil, queue.Options{}))
	evaluator.InitializeDefaultRules()
	suite.handlers.SetAlertEvaluator(evaluator)

	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.router.Use(middleware.LocaleMiddleware())
	suite.handlers.RegisterRoutes(suite.router, RouteOptions{})
}

func (suite *HandlersTestSuite) TearDownTest() {
	if sqlDB, err := suite.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (suite *HandlersTestSuite) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlersTestSuite) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (suite *HandlersTestSuite) seedAssets(slugs ...string) {
	for _, slug := range slugs {
		suite.Require().NoError(suite.db.Create(&models.Asset{Slug: slug, Name: slug, Type: "image"}).Error)
	}
}

func (suite *HandlersTestSuite) startSession() string {
	w := suite.do(http.MethodPost, "/api/v1/session/start", nil, "")
	suite.Require().Equal(http.StatusCreated, w.Code)
	return suite.decode(w)["session_id"].(string)
}

func (suite *HandlersTestSuite) token(email string, admin bool) string {
	resp, err := suite.auth.Register(suite.T().Context(), auth.RegisterRequest{Email: email, Password: "pass123"})
	suite.Require().NoError(err)
	if admin {
		_, err = suite.auth.SetAdmin(suite.T().Context(), resp.Account.ID, true)
		suite.Require().NoError(err)
	}
	return resp.Token
}

func (suite *HandlersTestSuite) TestHealth() {
	w := suite.do(http.MethodGet, "/health", nil, "")
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("museum is open", w.Body.String())
}

func (suite *HandlersTestSuite) TestVisitFlow() {
	suite.seedAssets("mona", "owl")
	sid := suite.startSession()

	w := suite.do(http.MethodPost, "/api/v1/view", map[string]interface{}{
		"session_id": sid, "asset_slug": "mona", "source": "qr",
	}, "")
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	res := suite.decode(w)
	suite.Equal(float64(10), res["awarded_points"])
	suite.Nil(res["promo_code"])

	w = suite.do(http.MethodPost, "/api/v1/view", map[string]interface{}{"session_id": sid, "asset_slug": "mona"}, "")
	suite.Equal(float64(0), suite.decode(w)["awarded_points"])

	w = suite.do(http.MethodGet, "/api/v1/promo?session_id="+sid, nil, "")
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("not_completed", suite.decode(w)["details"])

	w = suite.do(http.MethodPost, "/api/v1/view", map[string]interface{}{"session_id": sid, "asset_slug": "owl"}, "")
	suite.Require().Equal(http.StatusOK, w.Code)
	code, _ := suite.decode(w)["promo_code"].(string)
	suite.NotEmpty(code)

	w = suite.do(http.MethodGet, "/api/v1/progress?session_id="+sid, nil, "")
	suite.Require().Equal(http.StatusOK, w.Code)
	p := suite.decode(w)
	suite.Equal(float64(2), p["viewed_assets"])
	suite.Equal(float64(0), p["remaining_assets"])
	suite.Equal(float64(20), p["total_score"])

	w = suite.do(http.MethodPost, "/api/v1/user/email", map[string]interface{}{"session_id": sid, "email": "Guest@Example.com"}, "")
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	attach := suite.decode(w)
	suite.Equal("guest@example.com", attach["email"])
	suite.Equal(float64(20), attach["total_score"])
	suite.Equal(code, attach["promo_code"])

	w = suite.do(http.MethodGet, "/api/v1/progress?user_id="+attach["user_id"].(string), nil, "")
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal(float64(20), suite.decode(w)["total_score"])

	w = suite.do(http.MethodGet, "/api/v1/promo?email=guest@example.com", nil, "")
	suite.Require().Equal(http.StatusOK, w.Code)
	promo := suite.decode(w)
	suite.Equal(code, promo["promo_code"])
	suite.Equal("exists", promo["result"])

	w = suite.do(http.MethodGet, "/api/v1/promo?session_id="+sid, nil, "")
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal("issued", suite.decode(w)["result"])

	w = suite.do(http.MethodGet, "/api/v1/stats", nil, "")
	suite.Require().Equal(http.StatusOK, w.Code)
	stats := suite.decode(w)
	suite.Equal(float64(3), stats["views_all_time"])
	suite.NotNil(stats["best_asset"])
}

func (suite *HandlersTestSuite) TestViewErrors() {
	suite.seedAssets("mona")
	sid := suite.startSession()

	w := suite.do(http.MethodPost, "/api/v1/view", map[string]interface{}{"session_id": sid}, "")
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("VALIDATION_ERROR", suite.decode(w)["code"])

	w = suite.do(http.MethodPost, "/api/v1/view", map[string]interface{}{"session_id": sid, "asset_slug": "nope"}, "")
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/view", map[string]interface{}{"session_id": "garbage", "asset_slug": "mona"}, "")
	suite.Equal(http.StatusNotFound, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/view", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	suite.router.ServeHTTP(rec, req)
	suite.Equal(http.StatusBadRequest, rec.Code)

	w = suite.do(http.MethodPost, "/api/v1/user/email", map[string]interface{}{"session_id": sid, "email": "bad"}, "")
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/progress", nil, "")
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/promo", nil, "")
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestAuthFlow() {
	w := suite.do(http.MethodPost, "/api/v1/auth/register", map[string]string{"email": "u1@example.com", "password": "pass123"}, "")
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	acct := suite.decode(w)
	suite.Equal("u1@example.com", acct["email"])
	suite.Equal(float64(0), acct["score"])
	suite.Equal(false, acct["is_admin"])
	suite.Nil(acct["password_hash"])

	w = suite.do(http.MethodPost, "/api/v1/auth/register", map[string]string{"email": "u1@example.com", "password": "pass123"}, "")
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "u1@example.com", "password": "wrong"}, "")
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "u1@example.com", "password": "pass123"}, "")
	suite.Require().Equal(http.StatusOK, w.Code)
	login := suite.decode(w)
	suite.Equal("bearer", login["token_type"])
	token := login["access_token"].(string)
	suite.NotEmpty(token)

	w = suite.do(http.MethodGet, "/api/v1/auth/me", nil, token)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal("u1@example.com", suite.decode(w)["email"])

	w = suite.do(http.MethodGet, "/api/v1/auth/me", nil, "")
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestPromoteAdmin() {
	userToken := suite.token("user@example.com", false)
	adminToken := suite.token("admin@example.com", true)

	target, err := suite.auth.FindAccountByEmail(suite.T().Context(), "user@example.com")
	suite.Require().NoError(err)

	w := suite.do(http.MethodPost, "/api/v1/auth/promote/"+target.ID, nil, userToken)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/auth/promote/"+target.ID, nil, adminToken)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal(true, suite.decode(w)["is_admin"])

	w = suite.do(http.MethodPost, "/api/v1/auth/promote/7b0c1f7e-3f7a-4f55-9b0e-4b1f2f8f0c11", nil, adminToken)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) upload(token, contentType string, size int, characterID string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="clip.mp4"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	suite.Require().NoError(err)
	_, err = part.Write(bytes.Repeat([]byte{'0'}, size))
	suite.Require().NoError(err)
	if characterID != "" {
		suite.Require().NoError(mw.WriteField("character_id", characterID))
	}
	suite.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlersTestSuite) TestVideoUpload() {
	token := suite.token("v@example.com", false)

	w := suite.upload(token, "video/mp4", 1024, "")
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	res := suite.decode(w)
	suite.Equal(float64(60), res["added_score"])
	suite.Equal(true, res["bonus_applied"])
	video := res["video"].(map[string]interface{})
	suite.Equal(float64(1024), video["size_bytes"])
	suite.NotEmpty(video["path"])

	w = suite.upload(token, "video/mp4", 1024, "")
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal(false, suite.decode(w)["bonus_applied"])

	w = suite.do(http.MethodGet, "/api/v1/auth/me", nil, token)
	suite.Equal(float64(70), suite.decode(w)["score"])

	suite.Equal(http.StatusUnsupportedMediaType, suite.upload(token, "video/webm", 10, "").Code)
	suite.Equal(http.StatusRequestEntityTooLarge, suite.upload(token, "video/mp4", 5000, "").Code)
	suite.Equal(http.StatusNotFound, suite.upload(token, "video/mp4", 10, "42").Code)
	suite.Equal(http.StatusBadRequest, suite.upload(token, "video/mp4", 10, "abc").Code)
	suite.Equal(http.StatusUnauthorized, suite.upload("bogus", "video/mp4", 10, "").Code)
}

func (suite *HandlersTestSuite) TestClientLogs() {
	userToken := suite.token("loguser@example.com", false)
	adminToken := suite.token("admin@example.com", true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/logs",
		bytes.NewBufferString(`{"level":"info","message":"hello","context":"ctx"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+userToken)
	req.Header.Set(middleware.LocaleHeader, "ru")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	entry := suite.decode(w)
	suite.Equal("INFO", entry["level"])
	suite.Equal("ctx", entry["context"])
	suite.Equal("ru", entry["locale"])
	suite.Equal("ru", w.Header().Get("Content-Language"))

	w = suite.do(http.MethodPost, "/api/v1/logs", map[string]string{"level": "warn"}, userToken)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/logs", nil, userToken)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/logs", nil, adminToken)
	suite.Require().Equal(http.StatusOK, w.Code)
	var entries []map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &entries))
	suite.Len(entries, 1)
}

func (suite *HandlersTestSuite) TestConsumePromo() {
	suite.seedAssets("mona")
	sid := suite.startSession()
	w := suite.do(http.MethodPost, "/api/v1/view", map[string]interface{}{"session_id": sid, "asset_slug": "mona"}, "")
	code := suite.decode(w)["promo_code"].(string)

	userToken := suite.token("user@example.com", false)
	adminToken := suite.token("admin@example.com", true)

	w = suite.do(http.MethodPost, "/api/v1/admin/promo/"+code+"/consume", nil, userToken)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/admin/promo/"+code+"/consume", nil, adminToken)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.NotNil(suite.decode(w)["used_at"])

	w = suite.do(http.MethodPost, "/api/v1/admin/promo/"+code+"/consume", nil, adminToken)
	suite.Equal(http.StatusConflict, w.Code)
}

func (suite *HandlersTestSuite) TestRescoreUser() {
	suite.seedAssets("mona", "owl")
	sid := suite.startSession()
	suite.do(http.MethodPost, "/api/v1/view", map[string]interface{}{"session_id": sid, "asset_slug": "mona"}, "")
	w := suite.do(http.MethodPost, "/api/v1/user/email", map[string]interface{}{"session_id": sid, "email": "guest@example.com"}, "")
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	userID := suite.decode(w)["user_id"].(string)

	suite.Require().NoError(suite.db.Model(&models.User{}).Where("id = ?", userID).Update("total_score", 999).Error)

	path := "/api/v1/admin/users/" + userID + "/rescore"
	w = suite.do(http.MethodPost, path, nil, suite.token("user@example.com", false))
	suite.Equal(http.StatusForbidden, w.Code)

	adminToken := suite.token("admin@example.com", true)
	w = suite.do(http.MethodPost, path, nil, adminToken)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal(float64(10), suite.decode(w)["total_score"])

	var user models.User
	suite.Require().NoError(suite.db.First(&user, "id = ?", userID).Error)
	suite.Equal(10, user.TotalScore)

	w = suite.do(http.MethodPost, "/api/v1/admin/users/7b0c1f7e-3f7a-4f55-9b0e-4b1f2f8f0c11/rescore", nil, adminToken)
	suite.Equal(http.StatusNotFound, w.Code)
	w = suite.do(http.MethodPost, "/api/v1/admin/users/not-a-uuid/rescore", nil, adminToken)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestAdminAlerts() {
	adminToken := suite.token("admin@example.com", true)

	w := suite.do(http.MethodGet, "/api/v1/admin/alerts?refresh=true", nil, adminToken)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Empty(suite.decode(w)["alerts"])

	email := "late@example.com"
	issued := time.Now().UTC().Add(-time.Hour)
	suite.Require().NoError(suite.db.Create(&models.PromoCode{Code: "PROMO-LATE", Email: &email, IssuedAt: &issued}).Error)

	w = suite.do(http.MethodGet, "/api/v1/admin/alerts?refresh=true", nil, adminToken)
	suite.Require().Equal(http.StatusOK, w.Code)
	body := suite.decode(w)
	list := body["alerts"].([]interface{})
	suite.Require().Len(list, 1)
	suite.Equal("unsent_backlog", list[0].(map[string]interface{})["type"])
	suite.Len(body["rules"], 3)

	w = suite.do(http.MethodGet, "/api/v1/admin/alerts", nil, suite.token("user@example.com", false))
	suite.Equal(http.StatusForbidden, w.Code)
}
