package main

import (
	"path/filepath"
	"strings"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/ranking"
)

const formatParquet = "parquet"

// resolveFormat returns the explicit format or guesses one from the file
// extension, falling back to TREC.
func resolveFormat(path, explicit string) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return formatParquet
	case ".json":
		return string(ranking.FormatJSON)
	default:
		return string(ranking.FormatTREC)
	}
}

func loadRun(path, format string) (*ranking.Run, error) {
	format = resolveFormat(path, format)
	if format == formatParquet {
		return ranking.RunFromParquet(path)
	}
	f, err := ranking.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return ranking.RunFromFile(path, f)
}

func loadQrels(path, format string) (*ranking.Qrels, error) {
	format = resolveFormat(path, format)
	if format == formatParquet {
		return nil, apperrors.ValidationError("qrels cannot be read from parquet")
	}
	f, err := ranking.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return ranking.QrelsFromFile(path, f)
}

func saveRun(run *ranking.Run, path, format string) error {
	format = resolveFormat(path, format)
	if format == formatParquet {
		return run.SaveParquet(path)
	}
	f, err := ranking.ParseFormat(format)
	if err != nil {
		return err
	}
	return run.Save(path, f)
}

func saveQrels(qrels *ranking.Qrels, path, format string) error {
	format = resolveFormat(path, format)
	if format == formatParquet {
		return apperrors.ValidationError("qrels cannot be written as parquet")
	}
	f, err := ranking.ParseFormat(format)
	if err != nil {
		return err
	}
	return qrels.Save(path, f)
}
