package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RunSeeds выполняет все *.sql из database/seeds в лексикографическом порядке, в одной транзакции.
func RunSeeds(db *gorm.DB, log *zap.Logger) error {
	dir, ok := findDir("seeds")
	if !ok {
		return errors.New("seeds dir not found (tried database/seeds)")
	}
	files, err := sqlFiles(dir)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, f := range files {
			body, err := os.ReadFile(filepath.Join(dir, f))
			if err != nil {
				return fmt.Errorf("seed %s: %w", f, err)
			}
			if err := tx.Exec(string(body)).Error; err != nil {
				return fmt.Errorf("seed %s: %w", f, err)
			}
			log.Info("seed applied", zap.String("file", f))
		}
		return nil
	})
}

func sqlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
