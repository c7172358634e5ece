package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace-chat-be/internal/entity"
	"marketplace-chat-be/internal/model"
	"marketplace-chat-be/internal/pkg/logger"
	"marketplace-chat-be/internal/repository/memory"
	"marketplace-chat-be/internal/repository/unitofwork"
	"marketplace-chat-be/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type marketplace struct {
	db        *gorm.DB
	uow       unitofwork.RepositoryFactory
	publisher *recordingPublisher

	listingId uuid.UUID
	sellerId  uuid.UUID
	buyerId   uuid.UUID
}

func newMarketplace(t *testing.T) *marketplace {
	t.Helper()
	db, err := database.NewInMemoryDB()
	require.NoError(t, err)
	require.NoError(t, model.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	m := &marketplace{
		db:        db,
		uow:       unitofwork.NewRepositoryFactory(db),
		publisher: &recordingPublisher{},
		sellerId:  uuid.New(),
		buyerId:   uuid.New(),
	}
	m.addProfile(t, m.sellerId, "Mari Maasikas", "Alused OÜ")
	m.addProfile(t, m.buyerId, "Jaan Tamm", "")
	m.listingId = m.addListing(t, m.sellerId, "EUR alused 120 tk")
	return m
}

func (m *marketplace) addProfile(t *testing.T, id uuid.UUID, fullName, company string) {
	t.Helper()
	require.NoError(t, m.db.Create(&model.Profile{Id: id, FullName: fullName, CompanyName: company}).Error)
}

func (m *marketplace) addListing(t *testing.T, owner uuid.UUID, title string) uuid.UUID {
	t.Helper()
	l := model.Listing{Id: uuid.New(), UserId: owner, Title: title}
	require.NoError(t, m.db.Create(&l).Error)
	return l.Id
}

func (m *marketplace) conversations() IConversationService {
	return NewConversationService(m.uow, memory.NewConversationCache(time.Minute), logger.NewNopLogger())
}

func (m *marketplace) messages() IMessageService {
	return NewMessageService(m.uow, m.publisher, logger.NewNopLogger())
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []entity.Message
	err       error
}

func (p *recordingPublisher) PublishMessageInserted(ctx context.Context, msg entity.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

func (p *recordingPublisher) events() []entity.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]entity.Message, len(p.published))
	copy(out, p.published)
	return out
}
