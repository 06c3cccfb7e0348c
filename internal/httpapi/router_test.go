package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/mood-chat/internal/ai"
	"github.com/suPer8Hu/mood-chat/internal/chat"
	"github.com/suPer8Hu/mood-chat/internal/classifier"
	"github.com/suPer8Hu/mood-chat/internal/config"
	"github.com/suPer8Hu/mood-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/mood-chat/internal/httpapi/middleware"
	"github.com/suPer8Hu/mood-chat/internal/logger"
	"github.com/suPer8Hu/mood-chat/internal/mood"
	"github.com/suPer8Hu/mood-chat/internal/responses"
	"github.com/suPer8Hu/mood-chat/internal/textnorm"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

var dbSeq atomic.Int64

type stubModel struct {
	logits []float32
	err    error
}

func (m *stubModel) Encode(ctx context.Context, text string, maxLength int) (*ai.Encoding, error) {
	return &ai.Encoding{Text: text, InputIDs: []int{101, 102}, AttentionMask: []int{1, 1}, MaxLength: maxLength}, nil
}

func (m *stubModel) Forward(ctx context.Context, enc *ai.Encoding) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.logits, nil
}

// recordingPublisher fails the next failNext calls, then records job ids.
type recordingPublisher struct {
	mu       sync.Mutex
	jobs     []string
	calls    int
	failNext int
}

func (p *recordingPublisher) PublishJob(ctx context.Context, jobID, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failNext > 0 {
		p.failNext--
		return errors.New("broker unavailable")
	}
	p.jobs = append(p.jobs, jobID)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

var encoderClasses = []mood.Label{
	mood.Anxiety, mood.Bipolar, mood.Borderline, mood.Depression, mood.MentalIllness,
	mood.Normal, mood.PersonalityDisorder, mood.Schizophrenia, mood.Stress, mood.Suicidal,
}

type testEnv struct {
	router *gin.Engine
	model  *stubModel
	pub    *recordingPublisher
}

func newTestEnv(t *testing.T, async bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:httpapi_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(chat.Models()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	dec, err := mood.NewDecoder(encoderClasses)
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	// Depression wins
	model := &stubModel{logits: []float32{0, 0, 0, 3, 0, 0, 0, 0, 0, 0}}
	artifacts := &ai.Artifacts{Repo: "test", NumLabels: len(encoderClasses), Tokenizer: model, Model: model}
	clf, err := classifier.New(artifacts, dec, textnorm.NewNormalizer([]string{"i", "am", "the"}), classifier.DefaultMaxSeqLength)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}

	sel := responses.NewSelector(responses.Default(), rand.New(rand.NewPCG(1, 2)))
	repo := chat.NewRepo(db, 200)

	var jobs *chat.Repo
	var pub *recordingPublisher
	if async {
		jobs = repo
		pub = &recordingPublisher{}
	}

	svc := chat.NewService(repo, clf, sel, jobs, logger.Nop())

	var h *handlers.Handler
	if pub != nil {
		h = handlers.NewHandler(svc, pub, logger.Nop())
	} else {
		h = handlers.NewHandler(svc, nil, logger.Nop())
	}

	cfg := config.Config{JWTSecret: testSecret, CORSAllowOrigins: []string{"http://localhost:3000"}}
	return &testEnv{router: NewRouter(h, cfg, logger.Nop()), model: model, pub: pub}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, body string, cookies []*http.Cookie, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v body=%s", err, rec.Body.String())
	}
	return env
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) []*http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			if !c.HttpOnly {
				t.Fatalf("session cookie must be HttpOnly")
			}
			return []*http.Cookie{c}
		}
	}
	t.Fatalf("no session cookie set")
	return nil
}

func transcript(t *testing.T, e *testEnv, cookies []*http.Cookie) []chat.Entry {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/api/transcript", "", cookies, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("transcript status=%d body=%s", rec.Code, rec.Body.String())
	}
	var data struct {
		Entries []chat.Entry `json:"entries"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &data); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	return data.Entries
}

func TestPing(t *testing.T) {
	e := newTestEnv(t, false)
	rec := e.do(t, http.MethodGet, "/ping", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	e := newTestEnv(t, false)
	rec := e.do(t, http.MethodGet, "/nope", "", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Code != 40400 {
		t.Fatalf("code=%d", env.Code)
	}
}

func TestIndexRendersDisclaimerAndSetsSession(t *testing.T) {
	e := newTestEnv(t, false)
	rec := e.do(t, http.MethodGet, "/", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Mental Health Chatbot", "not a substitute for professional medical advice", "Clear Chat"} {
		if !strings.Contains(body, want) {
			t.Fatalf("page missing %q", want)
		}
	}
	sessionCookie(t, rec)
}

func TestAnalyzeJSONOverride(t *testing.T) {
	e := newTestEnv(t, false)
	first := e.do(t, http.MethodGet, "/", "", nil, nil)
	cookies := sessionCookie(t, first)

	rec := e.do(t, http.MethodPost, "/api/analyze", `{"statement":"I feel great today"}`, cookies, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var turn chat.Turn
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &turn); err != nil {
		t.Fatalf("decode turn: %v", err)
	}
	if turn.Label != mood.Normal || turn.Source != classifier.SourceOverride {
		t.Fatalf("got label=%s source=%s", turn.Label, turn.Source)
	}

	entries := transcript(t, e, cookies)
	if len(entries) != 3 {
		t.Fatalf("want 3 entries, got %d", len(entries))
	}
	if entries[0].Role != chat.RoleUser || entries[0].Content != "I feel great today" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
}

func TestAnalyzeJSONModelPath(t *testing.T) {
	e := newTestEnv(t, false)
	cookies := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))

	rec := e.do(t, http.MethodPost, "/api/analyze", `{"statement":"I can't get out of bed"}`, cookies, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var turn chat.Turn
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &turn); err != nil {
		t.Fatalf("decode turn: %v", err)
	}
	if turn.Label != mood.Depression || turn.Source != classifier.SourceModel {
		t.Fatalf("got label=%s source=%s", turn.Label, turn.Source)
	}
}

func TestAnalyzeJSONInferenceFailureKeepsUserEntry(t *testing.T) {
	e := newTestEnv(t, false)
	e.model.err = errors.New("backend down")
	cookies := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))

	rec := e.do(t, http.MethodPost, "/api/analyze", `{"statement":"everything is heavy"}`, cookies, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if env := decodeEnvelope(t, rec); env.Code != 50201 {
		t.Fatalf("code=%d", env.Code)
	}

	entries := transcript(t, e, cookies)
	if len(entries) != 1 || entries[0].Role != chat.RoleUser {
		t.Fatalf("want only the user entry, got %+v", entries)
	}

	// the next turn still works
	e.model.err = nil
	rec = e.do(t, http.MethodPost, "/api/analyze", `{"statement":"still heavy"}`, cookies, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recovery status=%d", rec.Code)
	}
}

func TestAnalyzeJSONEmptyStatement(t *testing.T) {
	e := newTestEnv(t, false)
	cookies := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))

	rec := e.do(t, http.MethodPost, "/api/analyze", `{"statement":"   "}`, cookies, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := transcript(t, e, cookies); len(got) != 0 {
		t.Fatalf("empty input must not be recorded, got %+v", got)
	}
}

func TestClearTranscriptJSON(t *testing.T) {
	e := newTestEnv(t, false)
	cookies := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))

	e.do(t, http.MethodPost, "/api/analyze", `{"statement":"I am fine"}`, cookies, nil)
	rec := e.do(t, http.MethodDelete, "/api/transcript", "", cookies, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := transcript(t, e, cookies); len(got) != 0 {
		t.Fatalf("want empty transcript, got %d", len(got))
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	e := newTestEnv(t, false)
	a := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))
	b := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))

	e.do(t, http.MethodPost, "/api/analyze", `{"statement":"good morning"}`, a, nil)
	if got := transcript(t, e, b); len(got) != 0 {
		t.Fatalf("session b sees %d entries", len(got))
	}
}

func TestTamperedCookieStartsNewSession(t *testing.T) {
	e := newTestEnv(t, false)
	cookies := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))
	e.do(t, http.MethodPost, "/api/analyze", `{"statement":"good morning"}`, cookies, nil)

	bad := []*http.Cookie{{Name: middleware.SessionCookieName, Value: cookies[0].Value + "x"}}
	rec := e.do(t, http.MethodGet, "/api/transcript", "", bad, nil)
	fresh := sessionCookie(t, rec)
	if fresh[0].Value == cookies[0].Value {
		t.Fatalf("expected a new session token")
	}
	if got := transcript(t, e, fresh); len(got) != 0 {
		t.Fatalf("new session should be empty, got %d", len(got))
	}
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// followRedirect requests / with the session cookie plus whatever the
// redirecting response set.
func (e *testEnv) followRedirect(t *testing.T, rec *httptest.ResponseRecorder, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("want 303 to /, got status=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}
	jar := append([]*http.Cookie(nil), cookies...)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			jar = append(jar, c)
		}
	}
	return e.do(t, http.MethodGet, "/", "", jar, nil)
}

func TestPageAnalyzeAndClear(t *testing.T) {
	e := newTestEnv(t, false)
	cookies := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))

	rec := e.followRedirect(t, e.postForm(t, "/analyze", url.Values{"statement": {"I feel awesome"}}, cookies), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Predicted Condition") || !strings.Contains(body, "Normal") {
		t.Fatalf("page missing result: %s", body)
	}

	// a plain reload shows the transcript but does not analyze again
	rec = e.do(t, http.MethodGet, "/", "", cookies, nil)
	if strings.Contains(rec.Body.String(), "Predicted Condition") {
		t.Fatalf("result must only be shown once")
	}
	if got := transcript(t, e, cookies); len(got) != 3 {
		t.Fatalf("want 3 entries, got %d", len(got))
	}

	rec = e.followRedirect(t, e.postForm(t, "/clear", url.Values{}, cookies), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("status after clear=%d", rec.Code)
	}
	if got := transcript(t, e, cookies); len(got) != 0 {
		t.Fatalf("want empty transcript after clear, got %d", len(got))
	}
}

func TestPageAnalyzeShowsInferenceError(t *testing.T) {
	e := newTestEnv(t, false)
	e.model.err = errors.New("backend down")
	cookies := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))

	rec := e.followRedirect(t, e.postForm(t, "/analyze", url.Values{"statement": {"nothing helps"}}, cookies), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Something went wrong during analysis") {
		t.Fatalf("expected error banner")
	}
	if got := transcript(t, e, cookies); len(got) != 1 {
		t.Fatalf("want only the user entry, got %d", len(got))
	}
}

func TestPageAnalyzeEmptyShowsWarning(t *testing.T) {
	e := newTestEnv(t, false)
	cookies := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))

	rec := e.followRedirect(t, e.postForm(t, "/analyze", url.Values{"statement": {"  "}}, cookies), cookies)
	if !strings.Contains(rec.Body.String(), "Please share how you") {
		t.Fatalf("expected warning banner")
	}
}

func TestIndexIgnoresGarbledFlash(t *testing.T) {
	e := newTestEnv(t, false)
	cookies := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))
	jar := append(cookies, &http.Cookie{Name: "mood_flash", Value: "not-base64!"})

	rec := e.do(t, http.MethodGet, "/", "", jar, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestJobsDisabled(t *testing.T) {
	e := newTestEnv(t, false)
	cookies := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))

	rec := e.do(t, http.MethodPost, "/api/jobs", `{"statement":"hello"}`, cookies, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestSubmitJobIdempotent(t *testing.T) {
	e := newTestEnv(t, true)
	cookies := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))
	hdr := map[string]string{"Idempotency-Key": "abc-123"}

	submit := func() string {
		rec := e.do(t, http.MethodPost, "/api/jobs", `{"statement":"so tired lately"}`, cookies, hdr)
		if rec.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
		}
		var data struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &data); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return data.JobID
	}

	first := submit()
	second := submit()
	if first == "" || first != second {
		t.Fatalf("want same job id, got %q and %q", first, second)
	}
	if n := e.pub.count(); n != 1 {
		t.Fatalf("want one publish, got %d", n)
	}
	if got := transcript(t, e, cookies); len(got) != 0 {
		t.Fatalf("queued job must not touch the transcript, got %d", len(got))
	}

	rec := e.do(t, http.MethodGet, "/api/jobs/"+first, "", cookies, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get job status=%d", rec.Code)
	}

	other := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))
	rec = e.do(t, http.MethodGet, "/api/jobs/"+first, "", other, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign session status=%d", rec.Code)
	}
}

func TestSubmitJobRejectsLongIdempotencyKey(t *testing.T) {
	e := newTestEnv(t, true)
	cookies := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))

	hdr := map[string]string{"Idempotency-Key": strings.Repeat("k", 129)}
	rec := e.do(t, http.MethodPost, "/api/jobs", `{"statement":"hello"}`, cookies, hdr)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestCORSPreflightOnAPI(t *testing.T) {
	e := newTestEnv(t, false)
	hdr := map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": http.MethodPost,
	}
	rec := e.do(t, http.MethodOptions, "/api/analyze", "", nil, hdr)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin=%q status=%d", got, rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials allowed")
	}
}

func TestSubmitJobRetryAfterPublishFailure(t *testing.T) {
	e := newTestEnv(t, true)
	e.pub.failNext = 1
	cookies := sessionCookie(t, e.do(t, http.MethodGet, "/", "", nil, nil))
	hdr := map[string]string{"Idempotency-Key": "retry-1"}

	rec := e.do(t, http.MethodPost, "/api/jobs", `{"statement":"so tired lately"}`, cookies, hdr)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("first status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/api/jobs", `{"statement":"so tired lately"}`, cookies, hdr)
	if rec.Code != http.StatusOK {
		t.Fatalf("retry status=%d body=%s", rec.Code, rec.Body.String())
	}
	var data struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}

	e.pub.mu.Lock()
	calls, published := e.pub.calls, append([]string(nil), e.pub.jobs...)
	e.pub.mu.Unlock()
	if calls != 2 || len(published) != 1 || published[0] != data.JobID {
		t.Fatalf("want the retry published, got calls=%d published=%v job=%s", calls, published, data.JobID)
	}

	rec = e.do(t, http.MethodGet, "/api/jobs/"+data.JobID, "", cookies, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get job status=%d", rec.Code)
	}
	if got := transcript(t, e, cookies); len(got) != 0 {
		t.Fatalf("failed enqueue must not leave transcript entries, got %d", len(got))
	}
}
