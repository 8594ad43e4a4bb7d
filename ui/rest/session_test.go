package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainSession "github.com/kolibrisuite/chatsync/domains/session"
	"github.com/kolibrisuite/chatsync/pkg/utils"
)

type fakeSessionService struct {
	linked map[string]domainSession.Session
}

func newFakeSessionService() *fakeSessionService {
	return &fakeSessionService{linked: make(map[string]domainSession.Session)}
}

func (f *fakeSessionService) RequestLink(ctx context.Context, organizationID, sessionName string) (domainSession.Session, error) {
	key := organizationID + "|" + sessionName
	if _, ok := f.linked[key]; ok {
		return domainSession.Session{}, domainSession.ErrAlreadyActive
	}
	sess := domainSession.Session{
		ID:             "sess-1",
		OrganizationID: organizationID,
		SessionName:    sessionName,
		Status:         domainSession.StatusConnecting,
	}
	f.linked[key] = sess
	return sess, nil
}

func (f *fakeSessionService) IssueQR(ctx context.Context, organizationID, sessionName, material string) (domainSession.Session, error) {
	return domainSession.Session{}, nil
}

func (f *fakeSessionService) ConfirmConnected(ctx context.Context, organizationID, sessionName, phoneNumber string) (domainSession.Session, error) {
	return domainSession.Session{}, nil
}

func (f *fakeSessionService) MarkDisconnected(ctx context.Context, organizationID, sessionName, reason string) (domainSession.Session, error) {
	sess, ok := f.linked[organizationID+"|"+sessionName]
	if !ok {
		return domainSession.Session{}, domainSession.ErrSessionNotFound
	}
	sess.Status = domainSession.StatusDisconnected
	return sess, nil
}

func (f *fakeSessionService) Get(ctx context.Context, organizationID, sessionName string) (domainSession.Session, error) {
	sess, ok := f.linked[organizationID+"|"+sessionName]
	if !ok {
		return domainSession.Session{}, domainSession.ErrSessionNotFound
	}
	return sess, nil
}

func (f *fakeSessionService) List(ctx context.Context, organizationID string) ([]domainSession.Session, error) {
	var out []domainSession.Session
	for _, sess := range f.linked {
		if sess.OrganizationID == organizationID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (f *fakeSessionService) Owns(ctx context.Context, organizationID, sessionName string) bool {
	_, ok := f.linked[organizationID+"|"+sessionName]
	return ok
}

func doRequest(t *testing.T, app *fiber.App, method, path, orgID string, body any) (*http.Response, utils.ResponseData) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if orgID != "" {
		req.Header.Set("X-Organization-ID", orgID)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope utils.ResponseData
	require.NoError(t, json.Unmarshal(raw, &envelope))
	return resp, envelope
}

func TestRequestLinkEndpoint(t *testing.T) {
	app := fiber.New()
	InitRestSession(app, newFakeSessionService())

	resp, envelope := doRequest(t, app, http.MethodPost, "/sessions/link", "org-a", fiber.Map{"session_name": "main"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "SUCCESS", envelope.Code)
}

func TestRequestLinkRequiresOrganization(t *testing.T) {
	app := fiber.New()
	InitRestSession(app, newFakeSessionService())

	resp, envelope := doRequest(t, app, http.MethodPost, "/sessions/link", "", fiber.Map{"session_name": "main"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Code)
}

func TestRequestLinkValidatesName(t *testing.T) {
	app := fiber.New()
	InitRestSession(app, newFakeSessionService())

	resp, envelope := doRequest(t, app, http.MethodPost, "/sessions/link", "org-a", fiber.Map{"session_name": ""})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Code)
}

func TestRequestLinkConflictWhenActive(t *testing.T) {
	app := fiber.New()
	service := newFakeSessionService()
	InitRestSession(app, service)

	_, _ = doRequest(t, app, http.MethodPost, "/sessions/link", "org-a", fiber.Map{"session_name": "main"})
	resp, envelope := doRequest(t, app, http.MethodPost, "/sessions/link", "org-a", fiber.Map{"session_name": "main"})

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "SESSION_ALREADY_ACTIVE", envelope.Code)
}

func TestGetSessionNotFound(t *testing.T) {
	app := fiber.New()
	InitRestSession(app, newFakeSessionService())

	resp, envelope := doRequest(t, app, http.MethodGet, "/sessions/ghost", "org-a", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SESSION_NOT_FOUND", envelope.Code)
}
