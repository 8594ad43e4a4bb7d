package usecase

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"

	domainSession "github.com/kolibrisuite/chatsync/domains/session"
	"github.com/kolibrisuite/chatsync/repository"
)

// serviceSession owns every session's lifecycle. Persisted state
// lives in the repository; the in-memory registry and QR expiry
// timers are node-local. All mutation goes through the transition
// methods so that invalid transitions have no observable effect.
type serviceSession struct {
	repo *repository.SessionGormRepository

	mu       sync.RWMutex
	registry map[string]domainSession.Session

	timerMu  sync.Mutex
	qrTimers map[string]*time.Timer

	qrValidity time.Duration

	// OnTransition is invoked exactly once per successful
	// transition; the dispatcher wires it to the fan-out path.
	OnTransition func(evt domainSession.TransitionEvent)
}

func NewSessionService(repo *repository.SessionGormRepository, qrValidity time.Duration) *serviceSession {
	if qrValidity <= 0 {
		qrValidity = 60 * time.Second
	}
	return &serviceSession{
		repo:       repo,
		registry:   make(map[string]domainSession.Session),
		qrTimers:   make(map[string]*time.Timer),
		qrValidity: qrValidity,
	}
}

func sessionKey(organizationID, sessionName string) string {
	return organizationID + "|" + sessionName
}

// WarmRegistry reloads persisted sessions into the registry at
// startup. Transport links and QR expiry timers do not survive a
// restart: connected sessions come back as disconnected until the
// transport re-confirms the link, and qr_ready sessions drop to
// connecting with their stale pairing material cleared.
func (s *serviceSession) WarmRegistry(ctx context.Context) error {
	sessions, err := s.repo.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		from := sess.Status
		switch sess.Status {
		case domainSession.StatusConnected:
			now := time.Now()
			sess.Status = domainSession.StatusDisconnected
			sess.QRMaterial = ""
			sess.PhoneNumber = ""
			sess.LastDisconnectedAt = &now
			sess.UpdatedAt = now
		case domainSession.StatusQRReady:
			sess.Status = domainSession.StatusConnecting
			sess.QRMaterial = ""
			sess.UpdatedAt = time.Now()
		}
		if sess.Status != from {
			saved, err := s.repo.Save(ctx, sess)
			if err != nil {
				return err
			}
			logrus.Infof("[SESSION] Restart demoted %s/%s from %s to %s", sess.OrganizationID, sess.SessionName, from, saved.Status)
			sess = saved
		}
		s.put(sess)
	}
	logrus.Infof("[SESSION] Warmed registry with %d session(s)", len(sessions))
	return nil
}

func (s *serviceSession) get(organizationID, sessionName string) (domainSession.Session, bool) {
	s.mu.RLock()
	sess, ok := s.registry[sessionKey(organizationID, sessionName)]
	s.mu.RUnlock()
	return sess, ok
}

// load resolves a session from the registry, falling back to the
// store so transitions stay valid across a process restart.
func (s *serviceSession) load(ctx context.Context, organizationID, sessionName string) (domainSession.Session, error) {
	if sess, ok := s.get(organizationID, sessionName); ok {
		return sess, nil
	}
	return s.repo.GetByName(ctx, organizationID, sessionName)
}

func (s *serviceSession) put(sess domainSession.Session) {
	s.mu.Lock()
	s.registry[sessionKey(sess.OrganizationID, sess.SessionName)] = sess
	s.mu.Unlock()
}

func (s *serviceSession) emit(evt domainSession.TransitionEvent) {
	if s.OnTransition != nil {
		s.OnTransition(evt)
	}
}

// RequestLink moves disconnected -> connecting, creating the session
// row on first use. Fails with ErrAlreadyActive when the session is
// anywhere else in its lifecycle.
func (s *serviceSession) RequestLink(ctx context.Context, organizationID, sessionName string) (domainSession.Session, error) {
	sess, ok := s.get(organizationID, sessionName)
	if !ok {
		stored, err := s.repo.GetByName(ctx, organizationID, sessionName)
		switch err {
		case nil:
			sess, ok = stored, true
		case domainSession.ErrSessionNotFound:
			// First link request creates the record.
		default:
			return domainSession.Session{}, err
		}
	}

	if ok {
		if sess.Status != domainSession.StatusDisconnected {
			logrus.Warnf("[SESSION] Link rejected for %s/%s: status %s", organizationID, sessionName, sess.Status)
			return domainSession.Session{}, domainSession.ErrAlreadyActive
		}
		from := sess.Status
		sess.Status = domainSession.StatusConnecting
		sess.UpdatedAt = time.Now()
		saved, err := s.repo.Save(ctx, sess)
		if err != nil {
			return domainSession.Session{}, err
		}
		s.put(saved)
		s.emit(transitionEvent(saved, from, ""))
		return saved, nil
	}

	now := time.Now()
	created, err := s.repo.Create(ctx, domainSession.Session{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		SessionName:    sessionName,
		Status:         domainSession.StatusConnecting,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		if err == domainSession.ErrDuplicateSession {
			// Raced another link request for the same name.
			return domainSession.Session{}, domainSession.ErrAlreadyActive
		}
		return domainSession.Session{}, err
	}
	s.put(created)
	s.emit(transitionEvent(created, domainSession.StatusDisconnected, "link requested"))
	return created, nil
}

// IssueQR moves connecting -> qr_ready, stores the pairing material
// and arms the expiry timer: an unscanned code drops the session
// back to connecting.
func (s *serviceSession) IssueQR(ctx context.Context, organizationID, sessionName, material string) (domainSession.Session, error) {
	sess, err := s.load(ctx, organizationID, sessionName)
	if err != nil {
		return domainSession.Session{}, err
	}
	if sess.Status != domainSession.StatusConnecting {
		logrus.Warnf("[SESSION] IssueQR rejected for %s/%s: status %s", organizationID, sessionName, sess.Status)
		return domainSession.Session{}, domainSession.ErrInvalidTransition
	}

	from := sess.Status
	sess.Status = domainSession.StatusQRReady
	sess.QRMaterial = material
	sess.UpdatedAt = time.Now()
	saved, err := s.repo.Save(ctx, sess)
	if err != nil {
		return domainSession.Session{}, err
	}
	s.put(saved)

	evt := transitionEvent(saved, from, "")
	evt.QRImage = renderQRImage(material)
	s.emit(evt)

	s.armQRTimer(saved.OrganizationID, saved.SessionName, material)
	return saved, nil
}

// ConfirmConnected moves connecting|qr_ready -> connected, clears the
// QR material and records the linked phone number.
func (s *serviceSession) ConfirmConnected(ctx context.Context, organizationID, sessionName, phoneNumber string) (domainSession.Session, error) {
	sess, err := s.load(ctx, organizationID, sessionName)
	if err != nil {
		return domainSession.Session{}, err
	}
	if sess.Status != domainSession.StatusConnecting && sess.Status != domainSession.StatusQRReady {
		logrus.Warnf("[SESSION] ConfirmConnected rejected for %s/%s: status %s", organizationID, sessionName, sess.Status)
		return domainSession.Session{}, domainSession.ErrInvalidTransition
	}

	s.stopQRTimer(organizationID, sessionName)

	now := time.Now()
	from := sess.Status
	sess.Status = domainSession.StatusConnected
	sess.QRMaterial = ""
	sess.PhoneNumber = phoneNumber
	sess.LastConnectedAt = &now
	sess.UpdatedAt = now
	saved, err := s.repo.Save(ctx, sess)
	if err != nil {
		return domainSession.Session{}, err
	}
	s.put(saved)
	s.emit(transitionEvent(saved, from, ""))
	return saved, nil
}

// MarkDisconnected is valid from any state: explicit unlink, QR
// timeout escalation or a detected network failure all land here. It
// also cancels an in-flight link handshake.
func (s *serviceSession) MarkDisconnected(ctx context.Context, organizationID, sessionName, reason string) (domainSession.Session, error) {
	sess, err := s.load(ctx, organizationID, sessionName)
	if err != nil {
		return domainSession.Session{}, err
	}

	s.stopQRTimer(organizationID, sessionName)

	now := time.Now()
	from := sess.Status
	sess.Status = domainSession.StatusDisconnected
	sess.QRMaterial = ""
	sess.PhoneNumber = ""
	sess.LastDisconnectedAt = &now
	sess.UpdatedAt = now
	saved, err := s.repo.Save(ctx, sess)
	if err != nil {
		return domainSession.Session{}, err
	}
	s.put(saved)
	s.emit(transitionEvent(saved, from, reason))
	return saved, nil
}

func (s *serviceSession) Get(ctx context.Context, organizationID, sessionName string) (domainSession.Session, error) {
	return s.load(ctx, organizationID, sessionName)
}

func (s *serviceSession) List(ctx context.Context, organizationID string) ([]domainSession.Session, error) {
	return s.repo.ListByOrganization(ctx, organizationID)
}

// Owns answers the subscription router's authorization query.
func (s *serviceSession) Owns(ctx context.Context, organizationID, sessionName string) bool {
	if _, ok := s.get(organizationID, sessionName); ok {
		return true
	}
	_, err := s.repo.GetByName(ctx, organizationID, sessionName)
	return err == nil
}

// --- QR expiry ---

func (s *serviceSession) armQRTimer(organizationID, sessionName, material string) {
	key := sessionKey(organizationID, sessionName)

	s.timerMu.Lock()
	if t, ok := s.qrTimers[key]; ok {
		t.Stop()
	}
	s.qrTimers[key] = time.AfterFunc(s.qrValidity, func() {
		s.expireQR(organizationID, sessionName, material)
	})
	s.timerMu.Unlock()
}

func (s *serviceSession) stopQRTimer(organizationID, sessionName string) {
	key := sessionKey(organizationID, sessionName)
	s.timerMu.Lock()
	if t, ok := s.qrTimers[key]; ok {
		t.Stop()
		delete(s.qrTimers, key)
	}
	s.timerMu.Unlock()
}

// expireQR drops qr_ready back to connecting, but only when the
// session still holds the exact material the timer was armed for.
func (s *serviceSession) expireQR(organizationID, sessionName, material string) {
	sess, ok := s.get(organizationID, sessionName)
	if !ok || sess.Status != domainSession.StatusQRReady || sess.QRMaterial != material {
		return
	}

	logrus.Infof("[SESSION] QR expired for %s/%s, back to connecting", organizationID, sessionName)

	from := sess.Status
	sess.Status = domainSession.StatusConnecting
	sess.QRMaterial = ""
	sess.UpdatedAt = time.Now()
	saved, err := s.repo.Save(context.Background(), sess)
	if err != nil {
		logrus.WithError(err).Errorf("[SESSION] Failed to persist QR expiry for %s/%s", organizationID, sessionName)
		return
	}
	s.put(saved)
	s.emit(transitionEvent(saved, from, "qr expired"))
}

func transitionEvent(sess domainSession.Session, from domainSession.Status, reason string) domainSession.TransitionEvent {
	return domainSession.TransitionEvent{
		OrganizationID: sess.OrganizationID,
		SessionName:    sess.SessionName,
		From:           from,
		To:             sess.Status,
		Reason:         reason,
		PhoneNumber:    sess.PhoneNumber,
		At:             time.Now(),
	}
}

// renderQRImage encodes the pairing material as a PNG data URI for
// direct display. Rendering failure degrades to no image; the raw
// material still reaches the client through the session record.
func renderQRImage(material string) string {
	png, err := qrcode.Encode(material, qrcode.Medium, 256)
	if err != nil {
		logrus.WithError(err).Warn("[SESSION] Failed to render QR image")
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
