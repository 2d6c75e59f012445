package repository

import (
	"context"

	"gorm.io/gorm"
)

// SequenceRepository выдаёт последовательные номера релизов в рамках
// календарного года. Выдача сериализована строкой-счётчиком с атомарным
// инкрементом — два одновременных Create не получат один номер.
type SequenceRepository interface {
	Next(ctx context.Context, year int, seed int64) (int64, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

// Next атомарно инкрементирует счётчик года и возвращает новое значение.
// seed — старший уже выданный номер за год (0, если номеров нет): первая
// вставка счётчика продолжает существующую последовательность, а не
// начинает новую.
func (r *sequenceRepository) Next(ctx context.Context, year int, seed int64) (int64, error) {
	var lastSeq int64
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO qa_release_counters (year, last_seq)
		 VALUES (?, ?)
		 ON CONFLICT (year)
		 DO UPDATE SET last_seq = qa_release_counters.last_seq + 1
		 RETURNING last_seq`,
		year, seed+1,
	).Scan(&lastSeq).Error
	if err != nil {
		return 0, err
	}
	return lastSeq, nil
}
