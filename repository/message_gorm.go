package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	domainMessage "github.com/kolibrisuite/chatsync/domains/message"
	"github.com/kolibrisuite/chatsync/pkg/content"
)

// ErrDuplicateMessage signals that the natural key already exists.
// Callers treat it as a benign dedup, not a failure.
var ErrDuplicateMessage = errors.New("duplicate message id")

var ErrMessageNotFound = errors.New("message not found")

// --- Persistence Model ---

type messageModel struct {
	MessageID         string    `gorm:"primaryKey;column:message_id"`
	OrganizationID    string    `gorm:"column:organization_id;not null;index:idx_org_contact"`
	SessionName       string    `gorm:"column:session_name;not null;index"`
	Direction         string    `gorm:"column:direction;not null"`
	FromIdentifier    string    `gorm:"column:from_identifier"`
	ToIdentifier      string    `gorm:"column:to_identifier"`
	ContactIdentifier string    `gorm:"column:contact_identifier;index:idx_org_contact"`
	Kind              string    `gorm:"column:kind"`
	RawContent        string    `gorm:"column:raw_content;type:text"`
	ResolvedPreview   string    `gorm:"column:resolved_preview;type:text"`
	MediaKind         string    `gorm:"column:media_kind"`
	Status            string    `gorm:"column:status;not null"`
	SentAt            time.Time `gorm:"column:sent_at;not null;index"`
	CreatedAt         time.Time `gorm:"column:created_at;not null"`
	UpdatedAt         time.Time `gorm:"column:updated_at;not null"`
}

func (messageModel) TableName() string { return "messages" }

func (m messageModel) toDomain() domainMessage.Message {
	return domainMessage.Message{
		MessageID:         m.MessageID,
		OrganizationID:    m.OrganizationID,
		SessionName:       m.SessionName,
		Direction:         domainMessage.Direction(m.Direction),
		FromIdentifier:    m.FromIdentifier,
		ToIdentifier:      m.ToIdentifier,
		ContactIdentifier: m.ContactIdentifier,
		Kind:              m.Kind,
		RawContent:        m.RawContent,
		ResolvedPreview:   m.ResolvedPreview,
		MediaKind:         content.MediaKind(m.MediaKind),
		Status:            domainMessage.Status(m.Status),
		SentAt:            m.SentAt,
	}
}

func messageModelFrom(msg domainMessage.Message) messageModel {
	return messageModel{
		MessageID:         msg.MessageID,
		OrganizationID:    msg.OrganizationID,
		SessionName:       msg.SessionName,
		Direction:         string(msg.Direction),
		FromIdentifier:    msg.FromIdentifier,
		ToIdentifier:      msg.ToIdentifier,
		ContactIdentifier: msg.ContactIdentifier,
		Kind:              msg.Kind,
		RawContent:        msg.RawContent,
		ResolvedPreview:   msg.ResolvedPreview,
		MediaKind:         string(msg.MediaKind),
		Status:            string(msg.Status),
		SentAt:            msg.SentAt,
	}
}

// --- Repository ---

type MessageGormRepository struct {
	db *gorm.DB
}

func NewMessageGormRepository(db *gorm.DB) *MessageGormRepository {
	return &MessageGormRepository{db: db}
}

func (r *MessageGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&messageModel{})
}

// Create inserts a message once. The primary key on message_id is
// the deduplication mechanism: a second insert with the same id
// returns ErrDuplicateMessage.
func (r *MessageGormRepository) Create(ctx context.Context, msg domainMessage.Message) (domainMessage.Message, error) {
	m := messageModelFrom(msg)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainMessage.Message{}, ErrDuplicateMessage
		}
		return domainMessage.Message{}, err
	}
	return m.toDomain(), nil
}

func (r *MessageGormRepository) Get(ctx context.Context, organizationID, messageID string) (domainMessage.Message, error) {
	var m messageModel
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND message_id = ?", organizationID, messageID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainMessage.Message{}, ErrMessageNotFound
		}
		return domainMessage.Message{}, err
	}
	return m.toDomain(), nil
}

func (r *MessageGormRepository) UpdateStatus(ctx context.Context, organizationID, messageID string, status domainMessage.Status) error {
	res := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("organization_id = ? AND message_id = ?", organizationID, messageID).
		Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// History returns one page of messages exchanged with a contact,
// oldest first. identifier must already be normalized; the suffix
// LIKE covers country-code inconsistency between ingestion paths.
func (r *MessageGormRepository) History(ctx context.Context, organizationID, identifier string, page, limit int) ([]domainMessage.Message, error) {
	if page < 1 {
		page = 1
	}

	q := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID)
	if len(identifier) >= 7 {
		q = q.Where("contact_identifier = ? OR contact_identifier LIKE ?", identifier, "%"+identifier)
	} else {
		q = q.Where("contact_identifier = ?", identifier)
	}

	var models []messageModel
	err := q.Order("sent_at ASC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]domainMessage.Message, len(models))
	for i, m := range models {
		out[i] = m.toDomain()
	}
	return out, nil
}

// Search matches the resolved preview, never the raw payload. A
// message that resolved to an empty preview is unreachable by text
// search.
func (r *MessageGormRepository) Search(ctx context.Context, organizationID, query string, limit int) ([]domainMessage.Message, error) {
	var models []messageModel
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Where("resolved_preview <> ''").
		Where("resolved_preview LIKE ?", "%"+query+"%").
		Order("sent_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]domainMessage.Message, len(models))
	for i, m := range models {
		out[i] = m.toDomain()
	}
	return out, nil
}
