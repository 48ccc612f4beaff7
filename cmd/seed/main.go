package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"gatherly/internal/events"
	"gatherly/internal/registrations"
	"gatherly/internal/shared/config"
	"gatherly/internal/shared/database"
	"gatherly/internal/users"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Seeder struct {
	db        *database.DB
	usersRepo users.Repository
}

func main() {
	fmt.Println("🌱 Starting Gatherly Database Seeder...")

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Users go through the repository so PII encryption and the email lookup
	// column match what the server writes
	cipher, err := users.NewCipher(cfg.Privacy.EncryptionKey)
	if err != nil {
		log.Fatalf("Invalid PII encryption key: %v", err)
	}

	seeder := &Seeder{
		db:        db,
		usersRepo: users.NewRepository(db.GetPostgreSQL(), cipher),
	}

	// Clean database
	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	// Seed data
	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables in the correct order (respecting foreign key constraints)
func (s *Seeder) CleanDatabase() error {
	// Delete in reverse dependency order
	tables := []string{
		"audit_entries",
		"outbox_messages",
		"event_registrations",
		"events",
		"users",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Exec("SET CONSTRAINTS ALL DEFERRED").Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to defer constraints: %w", err)
	}

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	if err := tx.Exec("SET CONSTRAINTS ALL IMMEDIATE").Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to restore constraints: %w", err)
	}

	return tx.Commit().Error
}

// SeedAll seeds all required data
func (s *Seeder) SeedAll() error {
	ctx := context.Background()

	// Seed users first (no dependencies)
	userIDs, err := s.SeedUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	// Seed events
	eventIDs, err := s.SeedEvents(userIDs["admin"])
	if err != nil {
		return fmt.Errorf("failed to seed events: %w", err)
	}

	// Seed registrations: a confirmed row plus a waitlist on the tiny event
	if err := s.SeedRegistrations(eventIDs, userIDs); err != nil {
		return fmt.Errorf("failed to seed registrations: %w", err)
	}

	// Clear Redis cache to ensure fresh state
	if s.db.Redis != nil {
		if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
			log.Printf("Warning: Failed to clear Redis cache: %v", err)
		}
	}

	return nil
}

// SeedUsers creates 4 users: 1 admin and 3 regular users
func (s *Seeder) SeedUsers(ctx context.Context) (map[string]uuid.UUID, error) {
	fmt.Println("  👤 Seeding users...")

	userIDs := make(map[string]uuid.UUID)

	// Hash password for all users (using "qwerty")
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("qwerty"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	usersData := []struct {
		key       string
		firstName string
		lastName  string
		email     string
		role      users.Role
	}{
		{"admin", "Admin", "User", "admin@gatherly.dev", users.RoleAdmin},
		{"alice", "Alice", "Nguyen", "alice@gatherly.dev", users.RoleUser},
		{"bob", "Bob", "Okafor", "bob@gatherly.dev", users.RoleUser},
		{"carol", "Carol", "Haas", "carol@gatherly.dev", users.RoleUser},
	}

	for _, userData := range usersData {
		user := users.User{
			ID:         uuid.New(),
			IdentityID: uuid.New(),
			FirstName:  userData.firstName,
			LastName:   userData.lastName,
			Email:      userData.email,
			Password:   string(hashedPassword),
			Role:       userData.role,
			IsActive:   true,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		}

		if err := s.usersRepo.Create(ctx, &user); err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", userData.email, err)
		}

		userIDs[userData.key] = user.ID
		fmt.Printf("    ✅ Created user: %s (%s)\n", userData.email, user.Role)
	}

	return userIDs, nil
}

// SeedEvents creates a roomy published event, a capacity-1 event for waitlist
// demos, and an unpublished draft
func (s *Seeder) SeedEvents(adminID uuid.UUID) (map[string]uuid.UUID, error) {
	fmt.Println("  📅 Seeding events...")

	eventIDs := make(map[string]uuid.UUID)
	nextWeek := time.Now().UTC().AddDate(0, 0, 7).Truncate(time.Hour)

	eventsData := []struct {
		key            string
		name           string
		description    string
		location       string
		capacity       int
		isPublished    bool
		isWaitlistOpen bool
	}{
		{"conference", "Gatherly Conf 2026", "Two days of talks on event-driven systems", "Berlin", 250, true, true},
		{"workshop", "Hands-on Outbox Workshop", "Small-group workshop, one seat only", "Online", 1, true, true},
		{"draft", "Unannounced Meetup", "Still being planned", "Amsterdam", 40, false, true},
	}

	for i, eventData := range eventsData {
		event := events.Event{
			ID:             uuid.New(),
			Name:           eventData.name,
			Description:    eventData.description,
			Location:       eventData.location,
			Timezone:       "UTC",
			StartUTC:       nextWeek.AddDate(0, 0, i),
			EndUTC:         nextWeek.AddDate(0, 0, i).Add(8 * time.Hour),
			Capacity:       eventData.capacity,
			OrganizerID:    adminID,
			IsPublished:    eventData.isPublished,
			IsWaitlistOpen: eventData.isWaitlistOpen,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}

		if err := s.db.PostgreSQL.Create(&event).Error; err != nil {
			return nil, fmt.Errorf("failed to create event %s: %w", event.Name, err)
		}

		eventIDs[eventData.key] = event.ID
		fmt.Printf("    ✅ Created event: %s (capacity %d)\n", event.Name, event.Capacity)
	}

	return eventIDs, nil
}

// SeedRegistrations fills the workshop to capacity and queues two users so the
// waitlist flows are demoable right after seeding
func (s *Seeder) SeedRegistrations(eventIDs, userIDs map[string]uuid.UUID) error {
	fmt.Println("  🎟️ Seeding registrations...")

	position1 := 1
	position2 := 2

	rows := []registrations.Registration{
		{
			ID:           uuid.New(),
			EventID:      eventIDs["workshop"],
			UserID:       userIDs["alice"],
			Status:       registrations.StatusConfirmed,
			RegisteredAt: time.Now().Add(-3 * time.Hour),
		},
		{
			ID:              uuid.New(),
			EventID:         eventIDs["workshop"],
			UserID:          userIDs["bob"],
			Status:          registrations.StatusWaitlisted,
			PositionInQueue: &position1,
			RegisteredAt:    time.Now().Add(-2 * time.Hour),
		},
		{
			ID:              uuid.New(),
			EventID:         eventIDs["workshop"],
			UserID:          userIDs["carol"],
			Status:          registrations.StatusWaitlisted,
			PositionInQueue: &position2,
			RegisteredAt:    time.Now().Add(-1 * time.Hour),
		},
		{
			ID:           uuid.New(),
			EventID:      eventIDs["conference"],
			UserID:       userIDs["bob"],
			Status:       registrations.StatusConfirmed,
			RegisteredAt: time.Now().Add(-30 * time.Minute),
		},
	}

	for i := range rows {
		if err := s.db.PostgreSQL.Create(&rows[i]).Error; err != nil {
			return fmt.Errorf("failed to create registration: %w", err)
		}
	}

	fmt.Printf("    ✅ Created %d registrations (1 confirmed + 2 waitlisted on the workshop)\n", len(rows))
	return nil
}
