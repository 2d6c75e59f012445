package notifier

import (
	"context"
	"log"
	"time"

	"qarelease/internal/models"

	"github.com/google/uuid"
)

// PutawayMessage — сигнал складу: выпущенная партия готова к размещению.
type PutawayMessage struct {
	NotificationID string    `json:"notification_id"`
	ReleaseID      uint      `json:"release_id"`
	ReleaseNumber  string    `json:"release_number"`
	MaterialID     string    `json:"material_id"`
	MaterialCode   string    `json:"material_code"`
	BatchNumber    string    `json:"batch_number"`
	Quantity       float64   `json:"quantity"`
	Unit           string    `json:"unit"`
	ReleasedAt     time.Time `json:"released_at"`
}

// WarehouseNotifier отправляет сигнал о размещении. Доставка at-least-once:
// флаг warehouse_notified пишется после успешной публикации, поэтому при
// сбое между публикацией и записью флага сигнал уйдёт повторно.
type WarehouseNotifier interface {
	Notify(ctx context.Context, release *models.Release) error
	Close() error
}

func newPutawayMessage(release *models.Release) PutawayMessage {
	msg := PutawayMessage{
		NotificationID: uuid.NewString(),
		ReleaseID:      release.ID,
		ReleaseNumber:  release.ReleaseNumber,
		MaterialID:     release.MaterialID,
		MaterialCode:   release.MaterialCode,
		BatchNumber:    release.BatchNumber,
		Quantity:       release.Quantity,
		Unit:           release.Unit,
	}
	if release.DecidedAt != nil {
		msg.ReleasedAt = *release.DecidedAt
	}
	return msg
}

// logNotifier — заглушка, когда Kafka выключена: пишет сигнал в лог.
type logNotifier struct{}

func NewLogNotifier() WarehouseNotifier {
	return &logNotifier{}
}

func (n *logNotifier) Notify(_ context.Context, release *models.Release) error {
	msg := newPutawayMessage(release)
	log.Printf("Warehouse notification (stub): release %s, material %s, batch %s, %v %s",
		msg.ReleaseNumber, msg.MaterialCode, msg.BatchNumber, msg.Quantity, msg.Unit)
	return nil
}

func (n *logNotifier) Close() error {
	return nil
}
