package progress

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/arbmuseum/arb/backend/internal/database"
	apierrors "github.com/arbmuseum/arb/backend/internal/errors"
	"github.com/arbmuseum/arb/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (n *recordingNotifier) NotifyReward(_ context.Context, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes = append(n.codes, code)
	return n.err
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.codes...)
}

type mapScoreCache struct {
	mu     sync.Mutex
	scores map[string]int
}

func newMapScoreCache() *mapScoreCache {
	return &mapScoreCache{scores: map[string]int{}}
}

func (c *mapScoreCache) Get(_ context.Context, userID string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.scores[userID]
	return v, ok
}

func (c *mapScoreCache) Set(_ context.Context, userID string, score int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scores[userID] = score
}

func (c *mapScoreCache) Invalidate(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scores, userID)
}

type failingSink struct{}

func (failingSink) Record(context.Context, models.ViewEvent) error {
	return fmt.Errorf("sink down")
}

type EngineTestSuite struct {
	suite.Suite
	db       *gorm.DB
	engine   *Engine
	notifier *recordingNotifier
	cache    *mapScoreCache
	ctx      context.Context
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) SetupTest() {
	db, err := database.Open("sqlite://:memory:", database.Options{})
	s.Require().NoError(err)
	s.Require().NoError(database.MigrateDB(db))
	s.db = db
	s.ctx = context.Background()

	s.engine = NewEngine(db, Config{FirstViewPoints: 10})
	s.notifier = &recordingNotifier{}
	s.cache = newMapScoreCache()
	s.engine.SetNotifier(s.notifier)
	s.engine.SetScoreCache(s.cache)
}

func (s *EngineTestSuite) TearDownTest() {
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (s *EngineTestSuite) seedAssets(slugs ...string) {
	for _, slug := range slugs {
		s.Require().NoError(s.db.Create(&models.Asset{Slug: slug, Name: slug, Type: "image"}).Error)
	}
}

func (s *EngineTestSuite) newSession() string {
	sess, err := s.engine.StartSession(s.ctx, map[string]interface{}{"ua": "test"})
	s.Require().NoError(err)
	return sess.ID
}

func (s *EngineTestSuite) eventCount(sessionID, eventType string) int64 {
	var n int64
	s.Require().NoError(s.db.Model(&models.ViewEvent{}).
		Where("session_id = ? AND event_type = ?", sessionID, eventType).Count(&n).Error)
	return n
}

func (s *EngineTestSuite) unusedCodes(sessionID string) []models.PromoCode {
	var codes []models.PromoCode
	s.Require().NoError(s.db.Where("session_id = ? AND used_at IS NULL", sessionID).Find(&codes).Error)
	return codes
}

func (s *EngineTestSuite) TestFirstViewAwardsOnce() {
	s.seedAssets("a", "b")
	sid := s.newSession()

	first, err := s.engine.RecordView(s.ctx, sid, "a", map[string]interface{}{"source": "qr"})
	s.Require().NoError(err)
	s.Equal(10, first.AwardedPoints)
	s.Equal(10, first.SessionScore)
	s.Equal(1, first.TimesViewed)
	s.Empty(first.PromoCode)

	again, err := s.engine.RecordView(s.ctx, sid, "a", nil)
	s.Require().NoError(err)
	s.Equal(0, again.AwardedPoints)
	s.Equal(10, again.SessionScore)
	s.Equal(2, again.TimesViewed)

	var row models.ItemProgress
	s.Require().NoError(s.db.Where("session_id = ?", sid).First(&row).Error)
	s.Require().NotNil(row.ViewedAt)
	firstViewedAt := *row.ViewedAt

	_, err = s.engine.RecordView(s.ctx, sid, "a", nil)
	s.Require().NoError(err)
	s.Require().NoError(s.db.Where("session_id = ?", sid).First(&row).Error)
	s.Equal(3, row.TimesViewed)
	s.True(firstViewedAt.Equal(*row.ViewedAt))

	s.Equal(int64(3), s.eventCount(sid, models.EventViewedItem))
	s.Equal(int64(1), s.eventCount(sid, models.EventFirstViewAwarded))
	s.Equal(int64(1), s.eventCount(sid, models.EventSessionStarted))

	var ev models.ViewEvent
	s.Require().NoError(s.db.Where("session_id = ? AND event_type = ?", sid, models.EventViewedItem).
		Order("id ASC").First(&ev).Error)
	s.Equal("qr", ev.RawPayload["source"])
	s.Equal("a", ev.RawPayload["asset_slug"])
	s.NotNil(ev.AssetID)
}

func (s *EngineTestSuite) TestRecordViewValidation() {
	s.seedAssets("a")
	sid := s.newSession()

	_, err := s.engine.RecordView(s.ctx, "", "a", nil)
	s.True(apierrors.HasCode(err, apierrors.ErrValidation))

	_, err = s.engine.RecordView(s.ctx, sid, " ", nil)
	s.True(apierrors.HasCode(err, apierrors.ErrValidation))

	_, err = s.engine.RecordView(s.ctx, "not-a-uuid", "a", nil)
	s.True(apierrors.HasCode(err, apierrors.ErrNotFound))

	_, err = s.engine.RecordView(s.ctx, "7b0c1f7e-3f7a-4f55-9b0e-4b1f2f8f0c11", "a", nil)
	s.True(apierrors.HasCode(err, apierrors.ErrNotFound))

	_, err = s.engine.RecordView(s.ctx, sid, "missing", nil)
	s.True(apierrors.HasCode(err, apierrors.ErrNotFound))

	s.Require().NoError(s.engine.EndSession(s.ctx, sid))
	_, err = s.engine.RecordView(s.ctx, sid, "a", nil)
	s.True(apierrors.HasCode(err, apierrors.ErrNotFound))

	var n int64
	s.db.Model(&models.ItemProgress{}).Count(&n)
	s.Zero(n)
}

func (s *EngineTestSuite) TestConcurrentFirstViewsAwardOnce() {
	s.seedAssets("a", "b")
	sid := s.newSession()

	const callers = 12
	var wg sync.WaitGroup
	awards := make(chan int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.engine.RecordView(s.ctx, sid, "a", nil)
			if err == nil {
				awards <- res.AwardedPoints
			}
		}()
	}
	wg.Wait()
	close(awards)

	total, winners := 0, 0
	for pts := range awards {
		total += pts
		if pts > 0 {
			winners++
		}
	}
	s.Equal(1, winners)
	s.Equal(10, total)

	var sess models.Session
	s.Require().NoError(s.db.First(&sess, "id = ?", sid).Error)
	s.Equal(10, sess.Score)

	var row models.ItemProgress
	s.Require().NoError(s.db.Where("session_id = ?", sid).First(&row).Error)
	s.Equal(callers, row.TimesViewed)
}

func (s *EngineTestSuite) TestCompletionIssuesOnce() {
	s.seedAssets("a", "b", "c")
	sid := s.newSession()

	for _, slug := range []string{"a", "b"} {
		res, err := s.engine.RecordView(s.ctx, sid, slug, nil)
		s.Require().NoError(err)
		s.Empty(res.PromoCode)
	}

	res, err := s.engine.RecordView(s.ctx, sid, "c", nil)
	s.Require().NoError(err)
	s.Require().NotEmpty(res.PromoCode)
	s.Regexp(regexp.MustCompile(`^PROMO-[0-9A-F]{8}-\d{6}-[0-9A-F]{4}$`), res.PromoCode)

	// Repeat views after completion do not return the code again
	res2, err := s.engine.RecordView(s.ctx, sid, "a", nil)
	s.Require().NoError(err)
	s.Empty(res2.PromoCode)

	promo, err := s.engine.CheckAndIssueReward(s.ctx, sid, false)
	s.Require().NoError(err)
	s.Nil(promo)

	promo, err = s.engine.CheckAndIssueReward(s.ctx, sid, true)
	s.Require().NoError(err)
	s.Require().NotNil(promo)
	s.Equal(res.PromoCode, promo.Code)

	s.Len(s.unusedCodes(sid), 1)
	s.Equal(int64(2), s.eventCount(sid, models.EventRewardIssued))
}

func (s *EngineTestSuite) TestEmptyCatalogNeverIssues() {
	sid := s.newSession()
	promo, err := s.engine.CheckAndIssueReward(s.ctx, sid, true)
	s.NoError(err)
	s.Nil(promo)
}

func (s *EngineTestSuite) TestConcurrentCompletionChecksIssueOne() {
	s.seedAssets("a")
	sid := s.newSession()
	var asset models.Asset
	s.Require().NoError(s.db.First(&asset).Error)
	s.Require().NoError(s.db.Create(&models.ItemProgress{SessionID: sid, AssetID: asset.ID, TimesViewed: 1}).Error)

	var wg sync.WaitGroup
	codes := make(chan string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			promo, err := s.engine.CheckAndIssueReward(s.ctx, sid, true)
			if err == nil && promo != nil {
				codes <- promo.Code
			}
		}()
	}
	wg.Wait()
	close(codes)

	seen := map[string]bool{}
	for c := range codes {
		seen[c] = true
	}
	s.Len(seen, 1)
	s.Len(s.unusedCodes(sid), 1)
}

func (s *EngineTestSuite) TestAttachIdentityScoresUnionOfSessions() {
	s.seedAssets("a", "b", "c", "d")
	s1 := s.newSession()
	s2 := s.newSession()

	for _, slug := range []string{"a", "b"} {
		_, err := s.engine.RecordView(s.ctx, s1, slug, nil)
		s.Require().NoError(err)
	}
	for _, slug := range []string{"b", "c"} {
		_, err := s.engine.RecordView(s.ctx, s2, slug, nil)
		s.Require().NoError(err)
	}

	r1, err := s.engine.AttachIdentity(s.ctx, s1, "  Visitor@Example.COM ")
	s.Require().NoError(err)
	s.Equal("visitor@example.com", r1.Email)
	s.Equal(20, r1.TotalScore)
	s.False(r1.Relinked)

	r2, err := s.engine.AttachIdentity(s.ctx, s2, "visitor@example.com")
	s.Require().NoError(err)
	s.Equal(r1.UserID, r2.UserID)
	s.Equal(30, r2.TotalScore)

	var users int64
	s.db.Model(&models.User{}).Count(&users)
	s.Equal(int64(1), users)

	var user models.User
	s.Require().NoError(s.db.First(&user, "id = ?", r1.UserID).Error)
	s.Equal(30, user.TotalScore)

	// A new first view on a linked session rescores immediately
	_, err = s.engine.RecordView(s.ctx, s1, "d", nil)
	s.Require().NoError(err)
	s.Require().NoError(s.db.First(&user, "id = ?", r1.UserID).Error)
	s.Equal(40, user.TotalScore)
	cached, ok := s.cache.Get(s.ctx, r1.UserID)
	s.True(ok)
	s.Equal(40, cached)

	s.Equal(int64(1), s.eventCount(s1, models.EventEmailSubmitted))
}

func (s *EngineTestSuite) TestSharedAssetAcrossSessionsCountsOnce() {
	s.seedAssets("a1", "a2")
	s1 := s.newSession()
	s2 := s.newSession()

	_, err := s.engine.RecordView(s.ctx, s1, "a1", nil)
	s.Require().NoError(err)
	r1, err := s.engine.AttachIdentity(s.ctx, s1, "x@example.com")
	s.Require().NoError(err)
	s.Equal(10, r1.TotalScore)

	r2, err := s.engine.AttachIdentity(s.ctx, s2, "x@example.com")
	s.Require().NoError(err)
	s.Equal(r1.UserID, r2.UserID)
	s.Equal(10, r2.TotalScore)

	view, err := s.engine.RecordView(s.ctx, s2, "a1", nil)
	s.Require().NoError(err)
	s.Equal(10, view.AwardedPoints)
	s.Equal(10, view.SessionScore)

	var user models.User
	s.Require().NoError(s.db.First(&user, "id = ?", r1.UserID).Error)
	s.Equal(10, user.TotalScore)

	up, err := s.engine.UserProgress(s.ctx, r1.UserID)
	s.Require().NoError(err)
	s.Equal(int64(1), up.ViewedAssets)
	s.Equal(10, up.TotalScore)
}

func (s *EngineTestSuite) TestAttachIdentityRollsBackWhenRescoreFails() {
	s.seedAssets("a")
	sid := s.newSession()
	_, err := s.engine.RecordView(s.ctx, sid, "a", nil)
	s.Require().NoError(err)

	const hook = "test:fail_total_score"
	s.Require().NoError(s.db.Callback().Update().Before("gorm:update").Register(hook, func(db *gorm.DB) {
		if db.Statement.Table == "users" {
			db.AddError(fmt.Errorf("score store down"))
		}
	}))

	_, err = s.engine.AttachIdentity(s.ctx, sid, "v@example.com")
	s.Require().Error(err)

	var sess models.Session
	s.Require().NoError(s.db.First(&sess, "id = ?", sid).Error)
	s.Nil(sess.UserID)
	var users int64
	s.db.Model(&models.User{}).Count(&users)
	s.Zero(users)
	s.Zero(s.eventCount(sid, models.EventEmailSubmitted))

	s.Require().NoError(s.db.Callback().Update().Remove(hook))
	res, err := s.engine.AttachIdentity(s.ctx, sid, "v@example.com")
	s.Require().NoError(err)
	s.Equal(10, res.TotalScore)
}

func (s *EngineTestSuite) TestLinkedCompletionNotifies() {
	s.seedAssets("a")
	sid := s.newSession()
	_, err := s.engine.AttachIdentity(s.ctx, sid, "v@example.com")
	s.Require().NoError(err)
	s.Empty(s.notifier.sent())

	view, err := s.engine.RecordView(s.ctx, sid, "a", nil)
	s.Require().NoError(err)
	s.Require().NotEmpty(view.PromoCode)
	s.Equal([]string{view.PromoCode}, s.notifier.sent())
}

func (s *EngineTestSuite) TestAttachIdentityIsIdempotent() {
	s.seedAssets("a", "b")
	sid := s.newSession()
	_, err := s.engine.RecordView(s.ctx, sid, "a", nil)
	s.Require().NoError(err)

	r1, err := s.engine.AttachIdentity(s.ctx, sid, "v@example.com")
	s.Require().NoError(err)
	r2, err := s.engine.AttachIdentity(s.ctx, sid, "v@example.com")
	s.Require().NoError(err)
	s.Equal(r1.UserID, r2.UserID)
	s.Equal(r1.TotalScore, r2.TotalScore)
	s.False(r2.Relinked)
}

func (s *EngineTestSuite) TestRelinkRescoresPreviousIdentity() {
	s.seedAssets("a", "b", "c")
	sid := s.newSession()
	_, err := s.engine.RecordView(s.ctx, sid, "a", nil)
	s.Require().NoError(err)

	first, err := s.engine.AttachIdentity(s.ctx, sid, "one@example.com")
	s.Require().NoError(err)
	s.Equal(10, first.TotalScore)

	second, err := s.engine.AttachIdentity(s.ctx, sid, "two@example.com")
	s.Require().NoError(err)
	s.True(second.Relinked)
	s.NotEqual(first.UserID, second.UserID)
	s.Equal(10, second.TotalScore)

	var prev models.User
	s.Require().NoError(s.db.First(&prev, "id = ?", first.UserID).Error)
	s.Equal(0, prev.TotalScore)
	s.Equal(int64(1), s.eventCount(sid, models.EventIdentityRelinked))
}

func (s *EngineTestSuite) TestAttachIdentityValidation() {
	sid := s.newSession()

	_, err := s.engine.AttachIdentity(s.ctx, sid, "not-an-email")
	s.True(apierrors.HasCode(err, apierrors.ErrValidation))

	_, err = s.engine.AttachIdentity(s.ctx, "", "v@example.com")
	s.True(apierrors.HasCode(err, apierrors.ErrValidation))

	_, err = s.engine.AttachIdentity(s.ctx, "7b0c1f7e-3f7a-4f55-9b0e-4b1f2f8f0c11", "v@example.com")
	s.True(apierrors.HasCode(err, apierrors.ErrNotFound))
}

func (s *EngineTestSuite) TestAttachAfterCompletionBindsAndNotifies() {
	s.seedAssets("a")
	sid := s.newSession()
	view, err := s.engine.RecordView(s.ctx, sid, "a", nil)
	s.Require().NoError(err)
	s.Require().NotEmpty(view.PromoCode)
	s.Empty(s.notifier.sent())

	res, err := s.engine.AttachIdentity(s.ctx, sid, "v@example.com")
	s.Require().NoError(err)
	s.Equal(view.PromoCode, res.PromoCode)
	s.Equal([]string{view.PromoCode}, s.notifier.sent())

	var promo models.PromoCode
	s.Require().NoError(s.db.Where("code = ?", res.PromoCode).First(&promo).Error)
	s.Require().NotNil(promo.UserID)
	s.Equal(res.UserID, *promo.UserID)
	s.Require().NotNil(promo.Email)
	s.Equal("v@example.com", *promo.Email)
}

func (s *EngineTestSuite) TestNotifierFailureDoesNotFailAttach() {
	s.seedAssets("a")
	s.notifier.err = fmt.Errorf("queue is full")
	sid := s.newSession()
	_, err := s.engine.RecordView(s.ctx, sid, "a", nil)
	s.Require().NoError(err)

	res, err := s.engine.AttachIdentity(s.ctx, sid, "v@example.com")
	s.Require().NoError(err)
	s.NotEmpty(res.PromoCode)
}

func (s *EngineTestSuite) TestEmailChangeClearsSentAt() {
	s.seedAssets("a")
	sid := s.newSession()
	_, err := s.engine.AttachIdentity(s.ctx, sid, "one@example.com")
	s.Require().NoError(err)
	view, err := s.engine.RecordView(s.ctx, sid, "a", nil)
	s.Require().NoError(err)
	s.Require().NotEmpty(view.PromoCode)

	s.Require().NoError(s.db.Model(&models.PromoCode{}).Where("code = ?", view.PromoCode).
		Update("sent_at", time.Now().UTC()).Error)

	_, err = s.engine.AttachIdentity(s.ctx, sid, "two@example.com")
	s.Require().NoError(err)

	var promo models.PromoCode
	s.Require().NoError(s.db.Where("code = ?", view.PromoCode).First(&promo).Error)
	s.Nil(promo.SentAt)
	s.Equal("two@example.com", *promo.Email)
}

func (s *EngineTestSuite) TestConsumeAllowsSecondCode() {
	s.seedAssets("a")
	sid := s.newSession()
	view, err := s.engine.RecordView(s.ctx, sid, "a", nil)
	s.Require().NoError(err)
	s.Require().NotEmpty(view.PromoCode)

	used, err := s.engine.ConsumeReward(s.ctx, view.PromoCode)
	s.Require().NoError(err)
	s.NotNil(used.UsedAt)

	_, err = s.engine.ConsumeReward(s.ctx, view.PromoCode)
	s.True(apierrors.HasCode(err, apierrors.ErrConflict))

	_, err = s.engine.ConsumeReward(s.ctx, "PROMO-NOPE")
	s.True(apierrors.HasCode(err, apierrors.ErrNotFound))

	next, err := s.engine.CheckAndIssueReward(s.ctx, sid, true)
	s.Require().NoError(err)
	s.Require().NotNil(next)
	s.NotEqual(view.PromoCode, next.Code)
	s.Equal(int64(1), s.eventCount(sid, models.EventRewardConsumed))
}

func (s *EngineTestSuite) TestLookupPromo() {
	s.seedAssets("a", "b")
	sid := s.newSession()

	_, err := s.engine.LookupPromo(s.ctx, PromoQuery{})
	s.True(apierrors.HasCode(err, apierrors.ErrValidation))

	_, err = s.engine.LookupPromo(s.ctx, PromoQuery{SessionID: sid})
	s.True(apierrors.HasCode(err, apierrors.ErrNotFound))
	apiErr, _ := apierrors.AsAPIError(err)
	s.Equal(PromoNotCompleted, apiErr.Details)

	_, err = s.engine.LookupPromo(s.ctx, PromoQuery{Email: "nobody@example.com"})
	s.True(apierrors.HasCode(err, apierrors.ErrNotFound))

	res, err := s.engine.AttachIdentity(s.ctx, sid, "v@example.com")
	s.Require().NoError(err)

	// Seed progress directly so no code is issued by RecordView
	var assets []models.Asset
	s.Require().NoError(s.db.Find(&assets).Error)
	for _, a := range assets {
		s.Require().NoError(s.db.Create(&models.ItemProgress{SessionID: sid, AssetID: a.ID, TimesViewed: 1}).Error)
	}

	found, err := s.engine.LookupPromo(s.ctx, PromoQuery{Email: "V@example.com"})
	s.Require().NoError(err)
	s.Equal(PromoIssued, found.Result)
	s.Equal(res.UserID, *found.Code.UserID)

	again, err := s.engine.LookupPromo(s.ctx, PromoQuery{UserID: res.UserID})
	s.Require().NoError(err)
	s.Equal(PromoExists, again.Result)
	s.Equal(found.Code.Code, again.Code.Code)

	own, err := s.engine.LookupPromo(s.ctx, PromoQuery{SessionID: sid})
	s.Require().NoError(err)
	s.Equal(PromoIssued, own.Result)
	s.Equal(found.Code.Code, own.Code.Code)

	other := s.newSession()
	_, err = s.engine.AttachIdentity(s.ctx, other, "v@example.com")
	s.Require().NoError(err)
	carried, err := s.engine.LookupPromo(s.ctx, PromoQuery{SessionID: other})
	s.Require().NoError(err)
	s.Equal(PromoExists, carried.Result)
	s.Equal(found.Code.Code, carried.Code.Code)

	s.Equal(int64(4), s.eventCount(sid, models.EventRewardChecked))
	s.Equal(int64(1), s.eventCount(other, models.EventRewardChecked))
}

func (s *EngineTestSuite) TestSessionAndUserProgress() {
	s.seedAssets("a", "b", "c")
	sid := s.newSession()
	_, err := s.engine.RecordView(s.ctx, sid, "a", nil)
	s.Require().NoError(err)

	p, err := s.engine.SessionProgress(s.ctx, sid)
	s.Require().NoError(err)
	s.Equal(&Progress{TotalAssets: 3, ViewedAssets: 1, RemainingAssets: 2, TotalScore: 10}, p)
	s.Equal(int64(1), s.eventCount(sid, models.EventProgressViewed))

	_, err = s.engine.UserProgress(s.ctx, "7b0c1f7e-3f7a-4f55-9b0e-4b1f2f8f0c11")
	s.True(apierrors.HasCode(err, apierrors.ErrNotFound))

	res, err := s.engine.AttachIdentity(s.ctx, sid, "v@example.com")
	s.Require().NoError(err)

	up, err := s.engine.UserProgress(s.ctx, res.UserID)
	s.Require().NoError(err)
	s.Equal(int64(1), up.ViewedAssets)
	s.Equal(10, up.TotalScore)

	// The cache is a memo: a stale entry is served until invalidated
	s.cache.Set(s.ctx, res.UserID, 999)
	up, err = s.engine.UserProgress(s.ctx, res.UserID)
	s.Require().NoError(err)
	s.Equal(999, up.TotalScore)

	score, err := s.engine.Rescore(s.ctx, res.UserID)
	s.Require().NoError(err)
	s.Equal(10, score)
	up, err = s.engine.UserProgress(s.ctx, res.UserID)
	s.Require().NoError(err)
	s.Equal(10, up.TotalScore)
}

func (s *EngineTestSuite) TestEventSinkFailureIsNotFatal() {
	s.seedAssets("a")
	s.engine.SetEventSink(failingSink{})
	sid := s.newSession()

	res, err := s.engine.RecordView(s.ctx, sid, "a", nil)
	s.Require().NoError(err)
	s.Equal(10, res.AwardedPoints)
	s.NotEmpty(res.PromoCode)
}

func TestNewPromoToken(t *testing.T) {
	tok := NewPromoToken("7b0c1f7e-3f7a-4f55-9b0e-4b1f2f8f0c11", mustTime(t, "2026-03-04T05:06:07Z"))
	assert.Regexp(t, `^PROMO-7B0C1F7E-050607-[0-9A-F]{4}$`, tok)
	assert.Regexp(t, `^PROMO-ABCD-`, NewPromoToken("abcd", time.Now()))
}

func TestNewEngineDefaults(t *testing.T) {
	e := NewEngine(nil, Config{FirstViewPoints: 5})
	require.NotNil(t, e)
	assert.Equal(t, 5, e.FirstViewPoints())
	assert.Equal(t, DefaultConfig().MaxIssueAttempts, e.cfg.MaxIssueAttempts)
}
