// Command seed-exam inserts a demo exam for local development.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/proctorly/examroom/internal/config"
	"github.com/proctorly/examroom/internal/database"
	"github.com/proctorly/examroom/internal/logger"
)

type seedQuestion struct {
	text    string
	options []string
	correct int
	marks   int
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	examID := uuid.New()
	if _, err := pool.Exec(ctx,
		`INSERT INTO exams (id, name, duration_minutes, pass_percentage)
		 VALUES ($1, $2, $3, $4)`,
		examID, "Computer Networks Mid-Term", 30, 40.0,
	); err != nil {
		log.Fatal().Err(err).Msg("Failed to insert exam")
	}

	questions := []seedQuestion{
		{"Which device forwards packets between networks?", []string{"Hub", "Switch", "Router", "Repeater"}, 2, 1},
		{"What does TCP stand for?", []string{"Transfer Control Protocol", "Transmission Control Protocol", "Transport Connection Protocol", "Transmission Carrier Protocol"}, 1, 1},
		{"Which layer of the OSI model handles routing?", []string{"Physical", "Data Link", "Network", "Transport"}, 2, 2},
		{"What is the default port for HTTPS?", []string{"80", "22", "443", "8080"}, 2, 1},
		{"Which protocol resolves domain names to IP addresses?", []string{"DHCP", "DNS", "ARP", "ICMP"}, 1, 1},
	}

	for i, q := range questions {
		if _, err := pool.Exec(ctx,
			`INSERT INTO questions (exam_id, question_text, options, correct_option, marks, position)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			examID, q.text, q.options, q.correct, q.marks, i+1,
		); err != nil {
			log.Fatal().Err(err).Int("position", i+1).Msg("Failed to insert question")
		}
	}

	fmt.Printf("Seeded exam %s with %d questions\n", examID, len(questions))
	fmt.Printf("Take it with: examroom -exam %s\n", examID)
}
