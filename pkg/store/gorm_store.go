package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"chatvault/pkg/domain"
)

const migrateLockID int64 = 48151623

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&ImportJobModel{},
			&ConversationModel{},
			&ParticipantModel{},
			&MessageModel{},
			&MediaFileModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'participant_models'
					AND constraint_name = 'participant_models_conversation_id_fkey'
				) THEN
					ALTER TABLE participant_models
					ADD CONSTRAINT participant_models_conversation_id_fkey
					FOREIGN KEY (conversation_id) REFERENCES conversation_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'message_models'
					AND constraint_name = 'message_models_conversation_id_fkey'
				) THEN
					ALTER TABLE message_models
					ADD CONSTRAINT message_models_conversation_id_fkey
					FOREIGN KEY (conversation_id) REFERENCES conversation_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'message_models'
					AND constraint_name = 'message_models_participant_id_fkey'
				) THEN
					ALTER TABLE message_models
					ADD CONSTRAINT message_models_participant_id_fkey
					FOREIGN KEY (participant_id) REFERENCES participant_models(id) ON DELETE SET NULL;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'media_file_models'
					AND constraint_name = 'media_file_models_message_id_fkey'
				) THEN
					ALTER TABLE media_file_models
					ADD CONSTRAINT media_file_models_message_id_fkey
					FOREIGN KEY (message_id) REFERENCES message_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

// CreateImportJob inserts a new job record.
func (s *GormStore) CreateImportJob(job domain.ImportJob) error {
	model := jobToModel(job)
	return s.db.Create(&model).Error
}

// SaveImportJob replaces the stored job row. Processing owns the job
// exclusively, so a whole-row write is safe.
func (s *GormStore) SaveImportJob(job domain.ImportJob) error {
	model := jobToModel(job)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&model).Error
}

// GetImportJob retrieves a job by id.
func (s *GormStore) GetImportJob(id string) (domain.ImportJob, bool, error) {
	var model ImportJobModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.ImportJob{}, false, nil
		}
		return domain.ImportJob{}, false, err
	}
	return jobFromModel(model), true, nil
}

// ListImportJobs returns the newest jobs first.
func (s *GormStore) ListImportJobs(limit int) ([]domain.ImportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []ImportJobModel
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	jobs := make([]domain.ImportJob, 0, len(models))
	for _, m := range models {
		jobs = append(jobs, jobFromModel(m))
	}
	return jobs, nil
}

// CreateConversation inserts a conversation with its participant set in one
// transaction.
func (s *GormStore) CreateConversation(conv domain.Conversation, participants []domain.Participant) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		model := conversationToModel(conv)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if len(participants) == 0 {
			return nil
		}
		models := make([]ParticipantModel, 0, len(participants))
		for _, p := range participants {
			models = append(models, participantToModel(p))
		}
		return tx.Create(&models).Error
	})
}

// GetConversation returns one conversation by id.
func (s *GormStore) GetConversation(id string) (domain.Conversation, bool, error) {
	var model ConversationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// ListConversations returns the newest conversations first.
func (s *GormStore) ListConversations(limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []ConversationModel
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	convs := make([]domain.Conversation, 0, len(models))
	for _, m := range models {
		convs = append(convs, conversationFromModel(m))
	}
	return convs, nil
}

// DeleteConversation removes a conversation and its dependent rows. Media
// and message rows go through explicit deletes so the method also works on
// databases without the FK cascades.
func (s *GormStore) DeleteConversation(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&MessageModel{}).Select("id").Where("conversation_id = ?", id)
		if err := tx.Where("message_id IN (?)", sub).Delete(&MediaFileModel{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&MessageModel{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ParticipantModel{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&ImportJobModel{}).Where("conversation_id = ?", id).
			Update("conversation_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&ConversationModel{}, "id = ?", id).Error
	})
}

// ListParticipants returns participants in lexicographic name order.
func (s *GormStore) ListParticipants(conversationID string) ([]domain.Participant, error) {
	var models []ParticipantModel
	if err := s.db.Where("conversation_id = ?", conversationID).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	parts := make([]domain.Participant, 0, len(models))
	for _, m := range models {
		parts = append(parts, participantFromModel(m))
	}
	return parts, nil
}

// AddMessages inserts a batch of messages.
func (s *GormStore) AddMessages(msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	models := make([]MessageModel, 0, len(msgs))
	for _, msg := range msgs {
		models = append(models, messageToModel(msg))
	}
	return s.db.CreateInBatches(&models, 200).Error
}

// ListMessages returns messages in chronological order.
func (s *GormStore) ListMessages(conversationID string, limit int) ([]domain.Message, error) {
	query := s.db.Where("conversation_id = ?", conversationID).Order("timestamp ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []MessageModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, m := range models {
		msgs = append(msgs, messageFromModel(m))
	}
	return msgs, nil
}

// CreateMediaFile inserts a media record.
func (s *GormStore) CreateMediaFile(media domain.MediaFile) error {
	model := mediaToModel(media)
	return s.db.Create(&model).Error
}

// GetMediaFile retrieves a media record by id.
func (s *GormStore) GetMediaFile(id string) (domain.MediaFile, bool, error) {
	var model MediaFileModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.MediaFile{}, false, nil
		}
		return domain.MediaFile{}, false, err
	}
	return mediaFromModel(model), true, nil
}

// ListMediaFiles returns media rows belonging to a conversation's messages.
func (s *GormStore) ListMediaFiles(conversationID string) ([]domain.MediaFile, error) {
	sub := s.db.Model(&MessageModel{}).Select("id").Where("conversation_id = ?", conversationID)
	var models []MediaFileModel
	if err := s.db.Where("message_id IN (?)", sub).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	media := make([]domain.MediaFile, 0, len(models))
	for _, m := range models {
		media = append(media, mediaFromModel(m))
	}
	return media, nil
}
