package main

import (
	"context"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/suPer8Hu/persona-chat/internal/app"
	"github.com/suPer8Hu/persona-chat/internal/config"
	"github.com/suPer8Hu/persona-chat/internal/grounding"
	"github.com/suPer8Hu/persona-chat/internal/logging"
	"go.uber.org/zap"
)

func main() {
	student := flag.String("student", "", "student slug, e.g. asha-kumar")
	dir := flag.String("dir", "", "directory of .txt/.md documents about the student")
	flag.Parse()

	cfg := config.Load()
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if *student == "" || *dir == "" {
		log.Fatal("-student and -dir are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, err := readDocuments(*dir)
	if err != nil {
		log.Fatal("read documents", zap.String("dir", *dir), zap.Error(err))
	}

	store, err := app.NewObjectStore(ctx, cfg)
	if err != nil {
		log.Fatal("object store", zap.Error(err))
	}
	embedder, err := app.NewRegistry(cfg).Embedder(ctx, cfg.EmbeddingProvider, cfg.EmbeddingModel)
	if err != nil {
		log.Fatal("embedder", zap.Error(err))
	}

	b := grounding.NewBuilder(store, embedder, cfg.GroundingPrefix, log.Named("builder"))
	n, err := b.Build(ctx, *student, docs)
	if err != nil {
		log.Fatal("build corpus", zap.String("student", *student), zap.Error(err))
	}
	log.Info("corpus uploaded", zap.String("student", *student), zap.Int("documents", len(docs)), zap.Int("chunks", n))
}

func readDocuments(root string) ([]grounding.Document, error) {
	var docs []grounding.Document
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".txt", ".md":
		default:
			return nil
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		docs = append(docs, grounding.Document{Source: filepath.ToSlash(rel), Text: string(b)})
		return nil
	})
	return docs, err
}
