package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"callcenter-backend/internal/auth"
	"callcenter-backend/internal/calltracker"
	"callcenter-backend/internal/config"
	"callcenter-backend/internal/messages"
	"callcenter-backend/internal/notify"
	"callcenter-backend/internal/telephony"
	"callcenter-backend/internal/users"

	"github.com/gin-gonic/gin"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeGateway struct {
	mu      sync.Mutex
	sent    []telephony.SMSRequest
	sendErr error
	calls   []openapi.ApiV2010Call
	lookups map[string]telephony.CarrierInfo
}

func (g *fakeGateway) SendSMS(ctx context.Context, req telephony.SMSRequest) (telephony.SMSResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return telephony.SMSResult{}, g.sendErr
	}
	g.sent = append(g.sent, req)
	return telephony.SMSResult{Sid: "SM1", Status: "queued"}, nil
}

func (g *fakeGateway) ListCalls(ctx context.Context, limit int) ([]openapi.ApiV2010Call, error) {
	return g.calls, nil
}

func (g *fakeGateway) ListMessages(ctx context.Context, limit int) ([]openapi.ApiV2010Message, error) {
	return nil, nil
}

func (g *fakeGateway) ListRecordings(ctx context.Context, limit int) ([]openapi.ApiV2010Recording, error) {
	return nil, nil
}

func (g *fakeGateway) ListIncomingNumbers(ctx context.Context) ([]openapi.ApiV2010IncomingPhoneNumber, error) {
	return nil, nil
}

func (g *fakeGateway) CarrierLookup(ctx context.Context, number string) (telephony.CarrierInfo, error) {
	if info, ok := g.lookups[number]; ok {
		return info, nil
	}
	return telephony.CarrierInfo{}, errors.New("lookup failed")
}

func (g *fakeGateway) FetchOrCreateConversation(ctx context.Context, uniqueName string) (telephony.ConversationInfo, error) {
	return telephony.ConversationInfo{Sid: "CH1", UniqueName: uniqueName, State: "active"}, nil
}

func (g *fakeGateway) VoiceAccessToken(identity string) (string, error) {
	return "voice-token-" + identity, nil
}

type memSink struct {
	id string

	mu     sync.Mutex
	frames [][]byte
}

func (s *memSink) ID() string { return s.id }

func (s *memSink) Send(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, p)
	return nil
}

func (s *memSink) events(t *testing.T) []notify.Frame {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notify.Frame, 0, len(s.frames))
	for _, raw := range s.frames {
		var f notify.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		out = append(out, f)
	}
	return out
}

type env struct {
	handlers Handlers
	users    *users.Service
	gateway  *fakeGateway
	hub      *notify.Hub
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	userSvc := users.NewService(users.NewMemoryRepo(), tokens)
	msgSvc := messages.NewService(messages.NewMemoryRepo())
	hub := notify.NewHub(nil)
	gw := &fakeGateway{lookups: map[string]telephony.CarrierInfo{}}
	tracker := calltracker.New(calltracker.NewMemoryStore(), userSvc, hub, nil)

	cfg := config.Config{}
	cfg.App.Env = "local"
	cfg.Twilio.PhoneNumber = "+15550001111"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 30 * 24 * time.Hour

	return &env{
		handlers: Handlers{
			Cfg:      cfg,
			Users:    userSvc,
			Messages: msgSvc,
			Tracker:  tracker,
			Gateway:  gw,
			Hub:      hub,
		},
		users:   userSvc,
		gateway: gw,
		hub:     hub,
	}
}

func (e *env) registerAgent(t *testing.T, email, phone string) users.User {
	t.Helper()
	u, err := e.users.Register(context.Background(), users.RegisterRequest{
		Username:    strings.Split(email, "@")[0],
		Email:       email,
		Password:    "password1",
		PhoneNumber: phone,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return u
}

func asIdentity(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), userID, role))
		c.Next()
	}
}

func postJSON(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postWebhookForm(t *testing.T, r http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIncomingCallRingsAssignedAgent(t *testing.T) {
	e := newEnv(t)
	agent := e.registerAgent(t, "sam@example.com", "+15550001111")

	r := gin.New()
	r.POST("/incoming", e.handlers.IncomingCall)

	form := url.Values{}
	form.Set("CallSid", "CA100")
	form.Set("From", "+15559998888")
	form.Set("To", "+15550001111")

	w := postWebhookForm(t, r, "/incoming", form)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<Client>agent_"+agent.ID+"</Client>") {
		t.Fatalf("expected dial to agent client, got %s", body)
	}
	if !strings.Contains(body, `answerOnBridge="true"`) {
		t.Fatalf("expected answerOnBridge, got %s", body)
	}
}

func TestIncomingCallUnassignedNumberSpeaksAndHangsUp(t *testing.T) {
	e := newEnv(t)
	e.registerAgent(t, "sam@example.com", "+15550001111")

	r := gin.New()
	r.POST("/incoming", e.handlers.IncomingCall)

	form := url.Values{}
	form.Set("CallSid", "CA100")
	form.Set("To", "+15553334444")

	w := postWebhookForm(t, r, "/incoming", form)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 even for unassigned numbers, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<Say>") || !strings.Contains(body, "<Hangup>") {
		t.Fatalf("expected say+hangup, got %s", body)
	}
}

func TestIncomingCallMissingCallSidSpeaksApology(t *testing.T) {
	e := newEnv(t)

	r := gin.New()
	r.POST("/incoming", e.handlers.IncomingCall)

	w := postWebhookForm(t, r, "/incoming", url.Values{})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "We are sorry") {
		t.Fatalf("expected spoken apology, got %s", w.Body.String())
	}
}

func TestAcceptCallConflictOnSecondAccept(t *testing.T) {
	e := newEnv(t)
	e.registerAgent(t, "sam@example.com", "+15550001111")

	r := gin.New()
	r.POST("/incoming", e.handlers.IncomingCall)
	r.POST("/accept-call", asIdentity("u1", auth.RoleAgent), e.handlers.AcceptCall)

	form := url.Values{}
	form.Set("CallSid", "CA200")
	form.Set("To", "+15550001111")
	postWebhookForm(t, r, "/incoming", form)

	w := postJSON(t, r, "/accept-call", `{"callSid":"CA200"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("first accept: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = postJSON(t, r, "/accept-call", `{"callSid":"CA200"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("second accept: expected 409, got %d", w.Code)
	}
}

func TestEndCallUnknownSidStillSucceeds(t *testing.T) {
	e := newEnv(t)

	sink := &memSink{id: "c1"}
	e.hub.Attach(sink)

	r := gin.New()
	r.POST("/end-call", asIdentity("u1", auth.RoleAgent), e.handlers.EndCall)

	w := postJSON(t, r, "/end-call", `{"callSid":"CA999"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	evs := sink.events(t)
	if len(evs) != 1 || evs[0].Event != calltracker.EventCallEnded {
		t.Fatalf("expected call_ended broadcast, got %+v", evs)
	}
}

func TestOutboundVoiceDialsNumberWithCallerID(t *testing.T) {
	e := newEnv(t)

	r := gin.New()
	r.POST("/voice", e.handlers.OutboundVoice)

	form := url.Values{}
	form.Set("From", "+15550001111")
	form.Set("To", "+15557654321")

	w := postWebhookForm(t, r, "/voice", form)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<Number>+15557654321</Number>") {
		t.Fatalf("expected number dial, got %s", body)
	}
	if !strings.Contains(body, `callerId="+15550001111"`) {
		t.Fatalf("expected callerId, got %s", body)
	}
}

func TestOutboundVoiceWithoutDestinationSpeaks(t *testing.T) {
	e := newEnv(t)

	r := gin.New()
	r.POST("/voice", e.handlers.OutboundVoice)

	w := postWebhookForm(t, r, "/voice", url.Values{})
	if !strings.Contains(w.Body.String(), "No destination provided.") {
		t.Fatalf("expected spoken error, got %s", w.Body.String())
	}
}

func TestSendSMSLogsOutboundMessage(t *testing.T) {
	e := newEnv(t)

	r := gin.New()
	r.POST("/sms", asIdentity("u1", auth.RoleAgent), e.handlers.SendSMS)

	w := postJSON(t, r, "/sms", `{"to":"+15557654321","body":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(e.gateway.sent) != 1 || e.gateway.sent[0].To != "+15557654321" {
		t.Fatalf("expected sms through gateway, got %+v", e.gateway.sent)
	}
	if e.gateway.sent[0].From != "+15550001111" {
		t.Fatalf("expected default from number, got %q", e.gateway.sent[0].From)
	}

	thread, err := e.handlers.Messages.Thread(context.Background(), "+15557654321")
	if err != nil || len(thread) != 1 {
		t.Fatalf("expected logged message, got %v %v", thread, err)
	}
	if thread[0].Direction != messages.DirectionOutbound {
		t.Fatalf("expected outbound direction, got %q", thread[0].Direction)
	}
}

func TestSMSWebhookLogsAndBroadcasts(t *testing.T) {
	e := newEnv(t)

	sink := &memSink{id: "c1"}
	e.hub.Attach(sink)

	r := gin.New()
	r.POST("/sms-webhook", e.handlers.SMSWebhook)

	form := url.Values{}
	form.Set("MessageSid", "SM7")
	form.Set("From", "+15557654321")
	form.Set("To", "+15550001111")
	form.Set("Body", "hi there")

	w := postWebhookForm(t, r, "/sms-webhook", form)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	evs := sink.events(t)
	if len(evs) != 1 || evs[0].Event != notify.EventNewMessage {
		t.Fatalf("expected new_message broadcast, got %+v", evs)
	}

	thread, err := e.handlers.Messages.Thread(context.Background(), "+15557654321")
	if err != nil || len(thread) != 1 {
		t.Fatalf("expected logged inbound message, got %v %v", thread, err)
	}
	if thread[0].Status != "received" {
		t.Fatalf("expected default received status, got %q", thread[0].Status)
	}
}

func TestConversationsDerivedFromLog(t *testing.T) {
	e := newEnv(t)

	for _, req := range []messages.RecordRequest{
		{Direction: messages.DirectionOutbound, From: "+15550001111", To: "+15557654321", Body: "a", Status: "sent"},
		{Direction: messages.DirectionInbound, From: "+15557654321", To: "+15550001111", Body: "b", Status: "received"},
	} {
		if _, err := e.handlers.Messages.Record(context.Background(), req); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	r := gin.New()
	r.GET("/conversations", asIdentity("u1", auth.RoleAgent), e.handlers.Conversations)

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var convos []messages.Conversation
	if err := json.Unmarshal(w.Body.Bytes(), &convos); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(convos) != 1 || convos[0].Counterparty != "+15557654321" {
		t.Fatalf("expected one conversation with counterparty, got %+v", convos)
	}
	if convos[0].LastMessage.Body != "b" {
		t.Fatalf("expected newest message surfaced, got %+v", convos[0].LastMessage)
	}
}

func TestVoiceTokenSelfOnlyForAgents(t *testing.T) {
	e := newEnv(t)
	admin := e.registerAgent(t, "admin@example.com", "+15550001111")
	agent := e.registerAgent(t, "sam@example.com", "+15552223333")

	r := gin.New()
	r.GET("/token/:userId", asIdentity(agent.ID, agent.Role), e.handlers.VoiceToken)

	req := httptest.NewRequest(http.MethodGet, "/token/"+agent.ID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("self token: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "agent_"+agent.ID) {
		t.Fatalf("expected client identity in body, got %s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/token/"+admin.ID, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("cross-user token: expected 403, got %d", w.Code)
	}
}

func TestRegisterAndLoginFlow(t *testing.T) {
	e := newEnv(t)

	r := gin.New()
	r.POST("/user/register", e.handlers.Register)
	r.POST("/user/login", e.handlers.Login)

	w := postJSON(t, r, "/user/register", `{"username":"sam","email":"sam@example.com","password":"password1","phoneNumber":"+15550001111"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("register response must not leak credentials: %s", w.Body.String())
	}

	w = postJSON(t, r, "/user/login", `{"email":"sam@example.com","password":"password1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var cookies []string
	for _, c := range w.Result().Cookies() {
		cookies = append(cookies, c.Name)
	}
	joined := strings.Join(cookies, ",")
	if !strings.Contains(joined, "accessToken") || !strings.Contains(joined, "refreshToken") {
		t.Fatalf("expected session cookies, got %v", cookies)
	}

	var body struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad login body: %v", err)
	}
	if body.AccessToken == "" || body.RefreshToken == "" {
		t.Fatalf("expected token pair in body")
	}

	w = postJSON(t, r, "/user/login", `{"email":"sam@example.com","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", w.Code)
	}
}

func TestCallsWithLookupSkipsFailedLookups(t *testing.T) {
	e := newEnv(t)

	from1 := "+15551230001"
	from2 := "+15551230002"
	e.gateway.calls = []openapi.ApiV2010Call{
		{From: &from1},
		{From: &from2},
	}
	e.gateway.lookups[from1] = telephony.CarrierInfo{PhoneNumber: from1, Name: "ExampleTel", Type: "mobile"}

	r := gin.New()
	r.GET("/calls-with-lookup", asIdentity("u1", auth.RoleAgent), e.handlers.CallsWithLookup)

	req := httptest.NewRequest(http.MethodGet, "/calls-with-lookup", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var out []struct {
		Carrier *telephony.CarrierInfo `json:"carrier"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected both calls, got %d", len(out))
	}
	if out[0].Carrier == nil || out[0].Carrier.Name != "ExampleTel" {
		t.Fatalf("expected carrier on first call, got %+v", out[0].Carrier)
	}
	if out[1].Carrier != nil {
		t.Fatalf("expected nil carrier on failed lookup, got %+v", out[1].Carrier)
	}
}
