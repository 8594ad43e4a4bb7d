package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainContact "github.com/kolibrisuite/chatsync/domains/contact"
	"github.com/kolibrisuite/chatsync/repository"
)

func newContactFixture(t *testing.T) domainContact.IContactUsecase {
	t.Helper()
	repo := repository.NewContactGormRepository(newTestDB(t))
	require.NoError(t, repo.Init(context.Background()))
	return NewContactService(repo)
}

func TestEnsureContactCreatesOnce(t *testing.T) {
	svc := newContactFixture(t)
	ctx := context.Background()

	first, created, err := svc.EnsureContact(ctx, "org-a", "14155550100@s.whatsapp.net", "main")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "4155550100", first.Identifier)
	assert.False(t, first.IsGroup)

	second, created, err := svc.EnsureContact(ctx, "org-a", "14155550100@s.whatsapp.net", "main")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestEnsureContactNormalizesVariants(t *testing.T) {
	svc := newContactFixture(t)
	ctx := context.Background()

	first, created, err := svc.EnsureContact(ctx, "org-a", "14155550100@s.whatsapp.net", "main")
	require.NoError(t, err)
	assert.True(t, created)

	// Same account through the legacy suffix resolves to one record.
	second, created, err := svc.EnsureContact(ctx, "org-a", "14155550100@c.us", "main")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestEnsureContactGroupKind(t *testing.T) {
	svc := newContactFixture(t)

	contact, created, err := svc.EnsureContact(context.Background(), "org-a", "120363024512399999@g.us", "main")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, contact.IsGroup)
}

func TestEnsureContactInvalidIdentifier(t *testing.T) {
	svc := newContactFixture(t)

	_, _, err := svc.EnsureContact(context.Background(), "org-a", "@s.whatsapp.net", "main")
	assert.ErrorIs(t, err, domainContact.ErrInvalidIdentifier)
}

func TestEnsureContactScopedByOrganization(t *testing.T) {
	svc := newContactFixture(t)
	ctx := context.Background()

	_, created, err := svc.EnsureContact(ctx, "org-a", "14155550100@s.whatsapp.net", "main")
	require.NoError(t, err)
	assert.True(t, created)

	// The same identifier is a distinct contact in another org.
	_, created, err = svc.EnsureContact(ctx, "org-b", "14155550100@s.whatsapp.net", "main")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestTouchUpdatesLastMessageAt(t *testing.T) {
	svc := newContactFixture(t)
	ctx := context.Background()

	_, _, err := svc.EnsureContact(ctx, "org-a", "14155550100@s.whatsapp.net", "main")
	require.NoError(t, err)

	at := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, svc.Touch(ctx, "org-a", "14155550100@s.whatsapp.net", at))

	contacts, err := svc.List(ctx, "org-a")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	require.NotNil(t, contacts[0].LastMessageAt)
	assert.WithinDuration(t, at, *contacts[0].LastMessageAt, time.Second)
}

func TestTouchUnknownContactIsNoop(t *testing.T) {
	svc := newContactFixture(t)

	err := svc.Touch(context.Background(), "org-a", "19998887777@s.whatsapp.net", time.Now())
	assert.NoError(t, err)
}

// missOnceStore hides the first lookup, modelling a provisioner whose
// existence check ran before a concurrent writer's insert landed.
type missOnceStore struct {
	*repository.ContactGormRepository
	missed bool
}

func (s *missOnceStore) GetByIdentifier(ctx context.Context, organizationID, identifier string) (domainContact.Contact, error) {
	if !s.missed {
		s.missed = true
		return domainContact.Contact{}, repository.ErrContactNotFound
	}
	return s.ContactGormRepository.GetByIdentifier(ctx, organizationID, identifier)
}

func TestEnsureContactLostRaceReturnsWinner(t *testing.T) {
	repo := repository.NewContactGormRepository(newTestDB(t))
	require.NoError(t, repo.Init(context.Background()))
	ctx := context.Background()

	winner, created, err := NewContactService(repo).EnsureContact(ctx, "org-a", "14155550100@s.whatsapp.net", "main")
	require.NoError(t, err)
	require.True(t, created)

	// The loser's insert hits the unique index and re-reads.
	loserSvc := NewContactService(&missOnceStore{ContactGormRepository: repo})
	loser, created, err := loserSvc.EnsureContact(ctx, "org-a", "14155550100@s.whatsapp.net", "main")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner.ID, loser.ID)

	contacts, err := loserSvc.List(ctx, "org-a")
	require.NoError(t, err)
	assert.Len(t, contacts, 1)
}

func TestTouchIsForwardOnly(t *testing.T) {
	svc := newContactFixture(t)
	ctx := context.Background()

	_, _, err := svc.EnsureContact(ctx, "org-a", "14155550100@s.whatsapp.net", "main")
	require.NoError(t, err)

	newest := time.Now().Truncate(time.Second)
	require.NoError(t, svc.Touch(ctx, "org-a", "14155550100@s.whatsapp.net", newest))

	// History replay delivers an older message after the newer one.
	require.NoError(t, svc.Touch(ctx, "org-a", "14155550100@s.whatsapp.net", newest.Add(-time.Hour)))

	contacts, err := svc.List(ctx, "org-a")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	require.NotNil(t, contacts[0].LastMessageAt)
	assert.WithinDuration(t, newest, *contacts[0].LastMessageAt, time.Second)

	// A genuinely newer message still moves it.
	require.NoError(t, svc.Touch(ctx, "org-a", "14155550100@s.whatsapp.net", newest.Add(time.Hour)))
	contacts, err = svc.List(ctx, "org-a")
	require.NoError(t, err)
	require.NotNil(t, contacts[0].LastMessageAt)
	assert.WithinDuration(t, newest.Add(time.Hour), *contacts[0].LastMessageAt, time.Second)
}
