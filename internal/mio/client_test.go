package mio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/snaka/mioportal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = domain.Credentials{MioID: "mio12345", Password: "hunter2"}

// stubPortal mimics the member portal: warmup page, cookie login with the
// HTTP-200-plus-envelope convention, and the session-guarded endpoints.
type stubPortal struct {
	t *testing.T

	mu           sync.Mutex
	warmupCalls  int
	loginCalls   int
	topCalls     int
	failTopTimes int    // answer 401 to this many top calls before behaving
	loginError   string // non-empty: reject logins with this envelope code
	topEnvelope  string // non-empty: answer top with this envelope code once
	billDetail   string
	usageLanding string
	usageMonthly string
	usageDaily   string
}

func newStubPortal(t *testing.T) *stubPortal {
	return &stubPortal{t: t}
}

func (s *stubPortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.URL.Path {
	case loginPagePath:
		s.warmupCalls++
		http.SetCookie(w, &http.Cookie{Name: "warmup", Value: "1"})
		_, _ = w.Write([]byte("<html>login</html>"))

	case loginAPIPath:
		s.loginCalls++
		var body struct {
			MioID    string `json:"mioId"`
			Password string `json:"password"`
		}
		require.NoError(s.t, json.NewDecoder(r.Body).Decode(&body))

		if s.loginError != "" || body.MioID != testCreds.MioID || body.Password != testCreds.Password {
			code := s.loginError
			if code == "" {
				code = "AUTH0001"
			}
			// The portal answers HTTP 200 even for bad credentials.
			_, _ = fmt.Fprintf(w, `{"error":%q}`, code)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "mio_session", Value: fmt.Sprintf("sess-%d", s.loginCalls)})
		_, _ = w.Write([]byte(`{"error":null}`))

	case topAPIPath:
		s.topCalls++
		if s.failTopTimes > 0 {
			s.failTopTimes--
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if s.topEnvelope != "" {
			code := s.topEnvelope
			s.topEnvelope = ""
			_, _ = fmt.Fprintf(w, `{"error":%q}`, code)
			return
		}
		if !s.hasSessionCookie(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"error":null,"serviceInfoList":[{"planName":"ギガプラン","phoneNo":"090-1234-xxxx","totalCapacity":5,"couponList":[{"seqNo":1,"month":"202608","value":3.2}]}]}`))

	case billSummaryAPIPath:
		_, _ = w.Write([]byte(`{"error":null,"billList":[{"billIdList":["b-202608"],"month":"202608","total":1404,"unpaid":true}]}`))

	case serviceStatusAPIPath:
		_, _ = w.Write([]byte(`{"error":null,"statusList":[{"serviceCode":"hdx100","planName":"ギガプラン","simList":[{"hdoCode":"hdo11111111","phoneNo":"090-1234-xxxx","simStatus":"利用中"}]}]}`))

	case billDetailPagePath:
		_, _ = w.Write([]byte(s.billDetail))

	case usageLandingPagePath:
		_, _ = w.Write([]byte(s.usageLanding))

	case usageMonthlyPagePath:
		require.NoError(s.t, r.ParseForm())
		require.NotEmpty(s.t, r.PostForm.Get("hdoCode"))
		require.NotEmpty(s.t, r.PostForm.Get("token"))
		_, _ = w.Write([]byte(s.usageMonthly))

	case usageDailyPagePath:
		_, _ = w.Write([]byte(s.usageDaily))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *stubPortal) hasSessionCookie(r *http.Request) bool {
	cookie, err := r.Cookie("mio_session")
	return err == nil && cookie.Value != ""
}

func newTestClient(t *testing.T, portal *stubPortal) (*Client, *httptest.Server) {
	server := httptest.NewServer(portal)
	t.Cleanup(server.Close)

	client, err := New(Options{
		BaseURL: server.URL,
		Now:     func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return client, server
}

func TestLoginEstablishesSession(t *testing.T) {
	portal := newStubPortal(t)
	client, _ := newTestClient(t, portal)

	require.NoError(t, client.Login(context.Background(), testCreds))
	assert.True(t, client.HasSession())
	assert.Equal(t, 1, portal.warmupCalls)
	assert.Equal(t, 1, portal.loginCalls)
}

func TestLoginRejectsEmptyCredentialsLocally(t *testing.T) {
	portal := newStubPortal(t)
	client, _ := newTestClient(t, portal)

	err := client.Login(context.Background(), domain.Credentials{MioID: "mio12345"})
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Zero(t, portal.loginCalls, "invalid credentials must never reach the network")
}

func TestLoginBadCredentialsCarriesBackendCode(t *testing.T) {
	portal := newStubPortal(t)
	portal.loginError = "AUTH0001"
	client, _ := newTestClient(t, portal)

	err := client.Login(context.Background(), testCreds)
	var authErr *domain.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "AUTH0001", authErr.Code)
	assert.False(t, client.HasSession())
}

func TestFetchTopLogsInLazily(t *testing.T) {
	portal := newStubPortal(t)
	client, _ := newTestClient(t, portal)

	top, err := client.FetchTop(context.Background(), &testCreds)
	require.NoError(t, err)
	require.Len(t, top.Services, 1)
	assert.Equal(t, "ギガプラン", top.Services[0].PlanName)
	assert.Equal(t, 1, portal.loginCalls)
}

func TestSessionExpiryRecoversWithExactlyOneRelogin(t *testing.T) {
	portal := newStubPortal(t)
	portal.failTopTimes = 1
	client, _ := newTestClient(t, portal)

	top, err := client.FetchTop(context.Background(), &testCreds)
	require.NoError(t, err)
	require.Len(t, top.Services, 1)

	assert.Equal(t, 2, portal.loginCalls, "one initial login plus exactly one re-login")
	assert.Equal(t, 2, portal.topCalls)
}

func TestSessionExpiryRetryIsBounded(t *testing.T) {
	portal := newStubPortal(t)
	portal.failTopTimes = 100
	client, _ := newTestClient(t, portal)

	_, err := client.FetchTop(context.Background(), &testCreds)
	var httpErr *domain.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)

	assert.Equal(t, 2, portal.loginCalls, "two total attempts, no unbounded loop")
	assert.Equal(t, 2, portal.topCalls)
}

func TestEnvelopeSessionCodeTriggersRelogin(t *testing.T) {
	portal := newStubPortal(t)
	portal.topEnvelope = "SES0001"
	client, _ := newTestClient(t, portal)

	_, err := client.FetchTop(context.Background(), &testCreds)
	require.NoError(t, err)
	assert.Equal(t, 2, portal.loginCalls)
}

func TestEnvelopeErrorCodePropagatesWithoutRetry(t *testing.T) {
	portal := newStubPortal(t)
	portal.topEnvelope = "SYS9999"
	client, _ := newTestClient(t, portal)

	_, err := client.FetchTop(context.Background(), &testCreds)
	var apiErr *domain.BackendAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "SYS9999", apiErr.Code)
	assert.Equal(t, 1, portal.loginCalls)
}

func TestSessionReuseRequiresActiveSession(t *testing.T) {
	portal := newStubPortal(t)
	client, _ := newTestClient(t, portal)

	_, err := client.FetchTop(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrNoActiveSession)
	assert.Zero(t, portal.loginCalls)
}

func TestSessionReuseAfterLogin(t *testing.T) {
	portal := newStubPortal(t)
	client, _ := newTestClient(t, portal)

	require.NoError(t, client.Login(context.Background(), testCreds))

	top, err := client.FetchTop(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, top.Services, 1)
	assert.Equal(t, 1, portal.loginCalls, "existing session reused without a second login")
}

func TestEnsureSessionReloginsForDifferentCredentials(t *testing.T) {
	portal := newStubPortal(t)
	client, _ := newTestClient(t, portal)

	require.NoError(t, client.Login(context.Background(), testCreds))

	other := domain.Credentials{MioID: testCreds.MioID, Password: "changed"}
	_, err := client.FetchTop(context.Background(), &other)
	var authErr *domain.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 2, portal.loginCalls, "different credentials force a fresh login")
}

func TestFetchAllAssemblesPayload(t *testing.T) {
	portal := newStubPortal(t)
	client, _ := newTestClient(t, portal)

	payload, err := client.FetchAll(context.Background(), &testCreds)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC), payload.FetchedAt)
	require.Len(t, payload.Top.Services, 1)
	require.Len(t, payload.Bill.Entries, 1)
	assert.Equal(t, 1404, payload.Bill.Entries[0].TotalAmount)
	assert.True(t, payload.Bill.Entries[0].IsUnpaid)
	require.Len(t, payload.Status.Lines, 1)
	assert.Equal(t, []string{"hdo11111111"}, payload.Status.HdoCodes())
}

func TestFetchBillDetail(t *testing.T) {
	portal := newStubPortal(t)
	portal.billDetail = `<div class="bill-summary">
<p class="bill-month">2026年8月ご利用分</p>
<table><tr><td class="total-amount">&yen;1,404</td></tr></table>
</div>
<table class="bill-detail">
<tr class="plan-title"><td>基本料金</td></tr>
<tr><td>音声SIM</td><td>1</td><td>&yen;1,404</td><td>&yen;1,404</td></tr>
</table>`
	client, _ := newTestClient(t, portal)

	entry := domain.BillEntry{BillIDs: []string{"b-202608"}, Month: "202608"}
	detail, err := client.FetchBillDetail(context.Background(), entry, &testCreds)
	require.NoError(t, err)
	assert.Equal(t, "2026年8月ご利用分", detail.MonthText)
	require.Len(t, detail.Sections, 1)
}

func TestFetchBillDetailParseFailure(t *testing.T) {
	portal := newStubPortal(t)
	portal.billDetail = `<html><body>メンテナンス中です</body></html>`
	client, _ := newTestClient(t, portal)

	entry := domain.BillEntry{BillIDs: []string{"b-202608"}}
	_, err := client.FetchBillDetail(context.Background(), entry, &testCreds)
	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "bill-detail", parseErr.Page)
}

func TestFetchMonthlyUsage(t *testing.T) {
	portal := newStubPortal(t)
	portal.usageLanding = `<form id="f1"><input type="hidden" name="hdoCode" value="hdo11111111"><input type="hidden" name="token" value="tok-1"></form>`
	portal.usageMonthly = `<div class="view-data">
<p class="usage-title">ギガプラン</p>
<table><tr><th>月</th><th>高速</th><th>低速</th></tr>
<tr><td>2026年8月</td><td>3.2GB</td><td>10MB</td></tr></table>
</div>`
	client, _ := newTestClient(t, portal)

	services, err := client.FetchMonthlyUsage(context.Background(), &testCreds)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "hdo11111111", services[0].LineID)
	require.Len(t, services[0].Entries, 1)
	require.NotNil(t, services[0].Entries[0].HighSpeed.ValueInUnit)
	assert.InDelta(t, 3.2, *services[0].Entries[0].HighSpeed.ValueInUnit, 1e-9)
}

func TestIsSessionExpiredClassification(t *testing.T) {
	t.Parallel()

	client, err := New(Options{})
	require.NoError(t, err)

	assert.True(t, client.isSessionExpired(&domain.HTTPError{StatusCode: 401}))
	assert.True(t, client.isSessionExpired(&domain.HTTPError{StatusCode: 403}))
	assert.True(t, client.isSessionExpired(&domain.HTTPError{StatusCode: 419}))
	assert.False(t, client.isSessionExpired(&domain.HTTPError{StatusCode: 500}))
	assert.True(t, client.isSessionExpired(&domain.BackendAPIError{Code: "SES0001"}))
	assert.True(t, client.isSessionExpired(&domain.BackendAPIError{Code: "SES0002"}))
	assert.True(t, client.isSessionExpired(&domain.BackendAPIError{Code: "login.required"}))
	assert.True(t, client.isSessionExpired(&domain.BackendAPIError{Code: "UNAUTHORIZED"}))
	assert.False(t, client.isSessionExpired(&domain.BackendAPIError{Code: "SYS9999"}))
	assert.False(t, client.isSessionExpired(&domain.NetworkError{Err: context.DeadlineExceeded}))
}

func TestIsSessionExpiredHonorsConfiguredCodes(t *testing.T) {
	t.Parallel()

	client, err := New(Options{SessionExpiredCodes: []string{"CUSTOM01"}})
	require.NoError(t, err)

	assert.True(t, client.isSessionExpired(&domain.BackendAPIError{Code: "CUSTOM01"}))
	assert.False(t, client.isSessionExpired(&domain.BackendAPIError{Code: "SES0001"}))
}
