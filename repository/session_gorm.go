package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	domainSession "github.com/kolibrisuite/chatsync/domains/session"
)

// --- Persistence Model ---

type sessionModel struct {
	ID                 string     `gorm:"primaryKey;column:id"`
	OrganizationID     string     `gorm:"column:organization_id;not null;uniqueIndex:idx_org_session_name"`
	SessionName        string     `gorm:"column:session_name;not null;uniqueIndex:idx_org_session_name"`
	Status             string     `gorm:"column:status;not null;default:'disconnected'"`
	PhoneNumber        string     `gorm:"column:phone_number"`
	QRMaterial         string     `gorm:"column:qr_material"`
	LastConnectedAt    *time.Time `gorm:"column:last_connected_at"`
	LastDisconnectedAt *time.Time `gorm:"column:last_disconnected_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;not null"`
}

func (sessionModel) TableName() string { return "sessions" }

func (m sessionModel) toDomain() domainSession.Session {
	return domainSession.Session{
		ID:                 m.ID,
		OrganizationID:     m.OrganizationID,
		SessionName:        m.SessionName,
		Status:             domainSession.Status(m.Status),
		PhoneNumber:        m.PhoneNumber,
		QRMaterial:         m.QRMaterial,
		LastConnectedAt:    m.LastConnectedAt,
		LastDisconnectedAt: m.LastDisconnectedAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func sessionModelFrom(s domainSession.Session) sessionModel {
	return sessionModel{
		ID:                 s.ID,
		OrganizationID:     s.OrganizationID,
		SessionName:        s.SessionName,
		Status:             string(s.Status),
		PhoneNumber:        s.PhoneNumber,
		QRMaterial:         s.QRMaterial,
		LastConnectedAt:    s.LastConnectedAt,
		LastDisconnectedAt: s.LastDisconnectedAt,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

// --- Repository ---

type SessionGormRepository struct {
	db *gorm.DB
}

func NewSessionGormRepository(db *gorm.DB) *SessionGormRepository {
	return &SessionGormRepository{db: db}
}

func (r *SessionGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&sessionModel{})
}

// Create persists a new session. A uniqueness violation on
// (organization_id, session_name) maps to ErrDuplicateSession.
func (r *SessionGormRepository) Create(ctx context.Context, s domainSession.Session) (domainSession.Session, error) {
	m := sessionModelFrom(s)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainSession.Session{}, domainSession.ErrDuplicateSession
		}
		return domainSession.Session{}, err
	}
	return m.toDomain(), nil
}

func (r *SessionGormRepository) Save(ctx context.Context, s domainSession.Session) (domainSession.Session, error) {
	m := sessionModelFrom(s)
	if err := r.db.WithContext(ctx).Save(&m).Error; err != nil {
		return domainSession.Session{}, err
	}
	return m.toDomain(), nil
}

func (r *SessionGormRepository) GetByName(ctx context.Context, organizationID, sessionName string) (domainSession.Session, error) {
	var m sessionModel
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND session_name = ?", organizationID, sessionName).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainSession.Session{}, domainSession.ErrSessionNotFound
		}
		return domainSession.Session{}, err
	}
	return m.toDomain(), nil
}

// ListAll returns every persisted session across organizations. The
// registry warmer uses it at startup.
func (r *SessionGormRepository) ListAll(ctx context.Context) ([]domainSession.Session, error) {
	var models []sessionModel
	err := r.db.WithContext(ctx).
		Order("organization_id ASC, session_name ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]domainSession.Session, len(models))
	for i, m := range models {
		out[i] = m.toDomain()
	}
	return out, nil
}

func (r *SessionGormRepository) ListByOrganization(ctx context.Context, organizationID string) ([]domainSession.Session, error) {
	var models []sessionModel
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("session_name ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]domainSession.Session, len(models))
	for i, m := range models {
		out[i] = m.toDomain()
	}
	return out, nil
}
