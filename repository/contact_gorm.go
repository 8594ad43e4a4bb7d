package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	domainContact "github.com/kolibrisuite/chatsync/domains/contact"
)

var ErrDuplicateContact = errors.New("contact already exists for this identifier")

var ErrContactNotFound = errors.New("contact not found")

// --- Persistence Model ---

type contactModel struct {
	ID             string     `gorm:"primaryKey;column:id"`
	OrganizationID string     `gorm:"column:organization_id;not null;uniqueIndex:idx_org_identifier"`
	Identifier     string     `gorm:"column:identifier;not null;uniqueIndex:idx_org_identifier"`
	DisplayName    string     `gorm:"column:display_name"`
	IsGroup        bool       `gorm:"column:is_group;default:false"`
	SessionName    string     `gorm:"column:session_name;not null"`
	LastMessageAt  *time.Time `gorm:"column:last_message_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;not null"`
}

func (contactModel) TableName() string { return "contacts" }

func (m contactModel) toDomain() domainContact.Contact {
	return domainContact.Contact{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		Identifier:     m.Identifier,
		DisplayName:    m.DisplayName,
		IsGroup:        m.IsGroup,
		SessionName:    m.SessionName,
		LastMessageAt:  m.LastMessageAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func contactModelFrom(c domainContact.Contact) contactModel {
	return contactModel{
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		Identifier:     c.Identifier,
		DisplayName:    c.DisplayName,
		IsGroup:        c.IsGroup,
		SessionName:    c.SessionName,
		LastMessageAt:  c.LastMessageAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// --- Repository ---

type ContactGormRepository struct {
	db *gorm.DB
}

func NewContactGormRepository(db *gorm.DB) *ContactGormRepository {
	return &ContactGormRepository{db: db}
}

func (r *ContactGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&contactModel{})
}

// Create inserts a contact. The unique index on
// (organization_id, identifier) is the exactly-once enforcement for
// auto-provisioning; a lost race maps to ErrDuplicateContact so the
// caller can re-read the winning record.
func (r *ContactGormRepository) Create(ctx context.Context, c domainContact.Contact) (domainContact.Contact, error) {
	m := contactModelFrom(c)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainContact.Contact{}, ErrDuplicateContact
		}
		return domainContact.Contact{}, err
	}
	return m.toDomain(), nil
}

func (r *ContactGormRepository) GetByIdentifier(ctx context.Context, organizationID, identifier string) (domainContact.Contact, error) {
	var m contactModel
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND identifier = ?", organizationID, identifier).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainContact.Contact{}, ErrContactNotFound
		}
		return domainContact.Contact{}, err
	}
	return m.toDomain(), nil
}

// TouchLastMessage bumps last_message_at forward only: a replayed
// older message must not move it backwards. Missing contacts are a
// no-op since provisioning may still be in flight on another path.
func (r *ContactGormRepository) TouchLastMessage(ctx context.Context, organizationID, identifier string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&contactModel{}).
		Where("organization_id = ? AND identifier = ?", organizationID, identifier).
		Where("last_message_at IS NULL OR last_message_at < ?", at).
		Updates(map[string]any{"last_message_at": at, "updated_at": time.Now()}).Error
}

func (r *ContactGormRepository) ListByOrganization(ctx context.Context, organizationID string) ([]domainContact.Contact, error) {
	var models []contactModel
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("last_message_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]domainContact.Contact, len(models))
	for i, m := range models {
		out[i] = m.toDomain()
	}
	return out, nil
}
