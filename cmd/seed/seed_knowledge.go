package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"

	"ai-helpdesk-be/internal/config"
	"ai-helpdesk-be/internal/model"
	"ai-helpdesk-be/internal/repository/postgres"
	"ai-helpdesk-be/pkg/database"
	"ai-helpdesk-be/pkg/embedding"
	"ai-helpdesk-be/pkg/utils"

	"gorm.io/gorm/logger"
)

type passage struct {
	Content  string                 `json:"content"`
	Filename string                 `json:"filename"`
	Metadata map[string]interface{} `json:"metadata"`
}

func main() {
	file := flag.String("file", "knowledge.json", "JSON array of {content, filename, metadata}")
	chunkSize := flag.Int("chunk-size", 1000, "maximum runes per stored chunk")
	overlap := flag.Int("overlap", 100, "runes repeated between consecutive chunks")
	flag.Parse()

	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false, database.WithLogger(logger.Discard))
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Error: Failed to read %s: %v", *file, err)
	}

	var passages []passage
	if err := json.Unmarshal(raw, &passages); err != nil {
		log.Fatalf("Error: %s is not a JSON array of passages: %v", *file, err)
	}

	embedder := embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel).WithDimensions(model.EmbeddingDimensions)
	chunks := postgres.NewChunkRepository(db)
	ctx := context.Background()

	log.Printf("Seeding %d knowledge passages...", len(passages))

	created := 0
	for i, p := range passages {
		content := strings.TrimSpace(p.Content)
		if content == "" {
			log.Printf("Passage %d is empty, skipping...", i)
			continue
		}

		for j, piece := range utils.SplitText(content, *chunkSize, *overlap) {
			vector, err := embedder.Embed(ctx, piece)
			if err != nil {
				log.Printf("Error embedding passage %d chunk %d: %v", i, j, err)
				continue
			}

			metadata := map[string]interface{}{"chunk_index": j}
			for k, v := range p.Metadata {
				metadata[k] = v
			}
			if p.Filename != "" {
				metadata["filename"] = p.Filename
			}

			id, err := chunks.Create(ctx, piece, metadata, vector)
			if err != nil {
				log.Printf("Error storing passage %d chunk %d: %v", i, j, err)
				continue
			}
			created++
			log.Printf("Created chunk %s (%s #%d)", id, p.Filename, j)
		}
	}

	total, _ := chunks.Count(ctx)
	log.Printf("Knowledge seeding completed! created=%d total=%d", created, total)
}
