package database

import (
	"fmt"
	"log"

	"survey-voice-api/config"
	"survey-voice-api/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres, migrates the schema and installs the NOTIFY
// trigger the clarification worker listens on
func Open(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("✅ [Database] Connected successfully")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := CreateNotifyTrigger(db, cfg.Worker.Channel); err != nil {
		log.Printf("⚠️  [Database] Failed to create NOTIFY trigger: %v", err)
	}

	return db, nil
}

// Migrate creates or updates every table the service owns
func Migrate(db *gorm.DB) error {
	tables := []struct {
		name  string
		model interface{}
	}{
		{"users", &models.User{}},
		{"surveys", &models.Survey{}},
		{"questions", &models.Question{}},
		{"contacts", &models.Contact{}},
		{"call_logs", &models.CallLog{}},
		{"responses", &models.Response{}},
	}

	created := 0
	for _, table := range tables {
		existed := db.Migrator().HasTable(table.model)
		if err := db.AutoMigrate(table.model); err != nil {
			return fmt.Errorf("failed to migrate table %s: %w", table.name, err)
		}
		if !existed {
			log.Printf("✓ [Database] Created table: %s", table.name)
			created++
		}
	}

	log.Printf("[Database] Migration completed: %d tables created, %d up to date", created, len(tables)-created)
	return nil
}

// CreateNotifyTrigger makes Postgres announce responses that are waiting for
// the clarification pipeline on channel. Other dialects are skipped.
func CreateNotifyTrigger(db *gorm.DB, channel string) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	log.Printf("[Database] Creating NOTIFY trigger for %s...", channel)

	err := db.Exec(fmt.Sprintf(`
		CREATE OR REPLACE FUNCTION notify_response_pending()
		RETURNS TRIGGER AS $$
		BEGIN
			IF NEW.processing_status = 'pending' THEN
				PERFORM pg_notify('%s', NEW.id::text);
			END IF;
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql;
	`, channel)).Error
	if err != nil {
		return fmt.Errorf("failed to create notify function: %w", err)
	}

	err = db.Exec(`DROP TRIGGER IF EXISTS responses_pending_trigger ON responses;`).Error
	if err != nil {
		return fmt.Errorf("failed to drop existing trigger: %w", err)
	}

	err = db.Exec(`
		CREATE TRIGGER responses_pending_trigger
		AFTER INSERT OR UPDATE OF processing_status ON responses
		FOR EACH ROW
		EXECUTE FUNCTION notify_response_pending();
	`).Error
	if err != nil {
		return fmt.Errorf("failed to create trigger: %w", err)
	}

	log.Printf("✓ [Database] NOTIFY trigger created for %s", channel)
	return nil
}
