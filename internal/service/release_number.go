package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"qarelease/internal/repository"
)

const releaseNumberPrefix = "QA-REL"

// ReleaseNumberGenerator выдаёт номера вида QA-REL-<год>-<6 цифр>.
// Последовательность сериализована строкой-счётчиком (см. SequenceRepository),
// поэтому два одновременных Create получают соседние номера, а не один и тот же.
type ReleaseNumberGenerator interface {
	Generate(ctx context.Context) (string, error)
}

type releaseNumberGenerator struct {
	releases  repository.ReleaseRepository
	sequences repository.SequenceRepository
}

func NewReleaseNumberGenerator(
	releases repository.ReleaseRepository,
	sequences repository.SequenceRepository,
) ReleaseNumberGenerator {
	return &releaseNumberGenerator{
		releases:  releases,
		sequences: sequences,
	}
}

func (g *releaseNumberGenerator) Generate(ctx context.Context) (string, error) {
	year := time.Now().UTC().Year()
	prefix := fmt.Sprintf("%s-%d-", releaseNumberPrefix, year)

	// Старший уже выданный номер за год: первая вставка счётчика продолжает
	// существующую последовательность, дальше счётчик живёт сам.
	latest, err := g.releases.LatestNumberForYear(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to look up latest release number: %w", err)
	}

	seq, err := g.sequences.Next(ctx, year, parseSequence(latest, prefix))
	if err != nil {
		return "", fmt.Errorf("failed to allocate release sequence: %w", err)
	}

	return fmt.Sprintf("%s-%d-%06d", releaseNumberPrefix, year, seq), nil
}

func parseSequence(number, prefix string) int64 {
	if number == "" || !strings.HasPrefix(number, prefix) {
		return 0
	}
	seq, err := strconv.ParseInt(strings.TrimPrefix(number, prefix), 10, 64)
	if err != nil {
		return 0
	}
	return seq
}
