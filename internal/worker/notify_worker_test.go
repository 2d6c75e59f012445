package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"qarelease/internal/models"
	"qarelease/internal/service"
)

// redriveOnlyService — мок ReleaseService: воркеру нужен только RedriveUnnotified.
type redriveOnlyService struct {
	mu    sync.Mutex
	calls int
}

func (s *redriveOnlyService) RedriveUnnotified(_ context.Context, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return 0, nil
}

func (s *redriveOnlyService) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *redriveOnlyService) Create(context.Context, service.CreateReleaseInput) (*models.Release, error) {
	return nil, nil
}
func (s *redriveOnlyService) List(context.Context) ([]*models.Release, error) { return nil, nil }
func (s *redriveOnlyService) GetByID(context.Context, uint) (*models.Release, error) {
	return nil, nil
}
func (s *redriveOnlyService) GetBySample(context.Context, string) ([]*models.Release, error) {
	return nil, nil
}
func (s *redriveOnlyService) Update(context.Context, uint, service.UpdateReleaseInput) (*models.Release, error) {
	return nil, nil
}
func (s *redriveOnlyService) Delete(context.Context, uint) error { return nil }
func (s *redriveOnlyService) CompleteChecklist(context.Context, uint, string) (*models.Release, error) {
	return nil, nil
}
func (s *redriveOnlyService) MakeDecision(context.Context, uint, service.DecisionInput) (*models.Release, error) {
	return nil, nil
}
func (s *redriveOnlyService) NotifyWarehouse(context.Context, uint) (*models.Release, error) {
	return nil, nil
}

// Воркер делает первый прогон сразу при старте, дальше — по тикеру.
func TestNotifyWorker_RunsOnStart(t *testing.T) {
	svc := &redriveOnlyService{}
	w := NewNotifyWorker(svc, time.Hour)

	w.Start()
	defer w.Stop()

	if svc.callCount() != 1 {
		t.Errorf("прогонов %d, ожидался 1 сразу после старта", svc.callCount())
	}
}

func TestNotifyWorker_StopIsIdempotent(t *testing.T) {
	svc := &redriveOnlyService{}
	w := NewNotifyWorker(svc, time.Hour)

	w.Start()
	w.Stop()
	w.Stop() // повторный Stop не должен паниковать
}

func TestScheduler_StartStop(t *testing.T) {
	svc := &redriveOnlyService{}
	s := NewScheduler()
	s.AddWorker(NewNotifyWorker(svc, time.Hour))

	s.Start()
	if !s.IsRunning() {
		t.Error("IsRunning = false после Start")
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("IsRunning = true после Stop")
	}
	if svc.callCount() == 0 {
		t.Error("воркер не сделал ни одного прогона")
	}
}
