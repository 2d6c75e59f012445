package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"qarelease/internal/clients"
	"qarelease/internal/models"
	"qarelease/internal/notifier"
	"qarelease/internal/repository"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	cacheKeyAll     = "releases:all"
	cacheKeyByID    = "releases:id:%d"
	cacheKeySample  = "releases:sample:%s"
	cachePattern    = "releases:*"
	cacheReleaseTTL = 30 * time.Second

	// Ключ вне маски releases:*, иначе его снесёт инвалидация кэша.
	redriveLockKey = "notify:redrive_lock"
	redriveLockTTL = 30 * time.Second
)

type CreateReleaseInput struct {
	SampleID           string   `json:"sample_id" binding:"required"`
	GoodsReceiptItemID *string  `json:"goods_receipt_item_id,omitempty"`
	MaterialID         string   `json:"material_id" binding:"required"`
	MaterialName       string   `json:"material_name" binding:"required"`
	MaterialCode       string   `json:"material_code" binding:"required"`
	BatchNumber        string   `json:"batch_number" binding:"required"`
	Quantity           float64  `json:"quantity" binding:"required"`
	Unit               string   `json:"unit" binding:"required"`
	ResultIDs          []string `json:"result_ids" binding:"required"`
	SubmittedBy        string   `json:"submitted_by" binding:"required"`
}

type UpdateReleaseInput struct {
	Remarks        *string              `json:"remarks,omitempty"`
	ChecklistItems []ChecklistItemInput `json:"checklist_items,omitempty"`
}

type DecisionInput struct {
	Decision   string  `json:"decision" binding:"required"`
	Reason     string  `json:"reason" binding:"required"`
	DecidedBy  string  `json:"decided_by" binding:"required"`
	ESignature string  `json:"e_signature" binding:"required"`
	Remarks    *string `json:"remarks,omitempty"`
}

// ReleaseService — машина состояний релиза: создание, чек-лист, решение,
// уведомление склада. Решение необратимо.
type ReleaseService interface {
	Create(ctx context.Context, input CreateReleaseInput) (*models.Release, error)
	List(ctx context.Context) ([]*models.Release, error)
	GetByID(ctx context.Context, id uint) (*models.Release, error)
	GetBySample(ctx context.Context, sampleID string) ([]*models.Release, error)
	Update(ctx context.Context, id uint, input UpdateReleaseInput) (*models.Release, error)
	Delete(ctx context.Context, id uint) error
	CompleteChecklist(ctx context.Context, id uint, reviewedBy string) (*models.Release, error)
	MakeDecision(ctx context.Context, id uint, input DecisionInput) (*models.Release, error)
	NotifyWarehouse(ctx context.Context, id uint) (*models.Release, error)
	RedriveUnnotified(ctx context.Context, limit int) (int, error)
}

type releaseService struct {
	repo      repository.ReleaseRepository
	cacheRepo repository.CacheRepository
	samples   clients.SampleClient
	results   clients.ResultClient
	warehouse notifier.WarehouseNotifier
	numbers   ReleaseNumberGenerator
}

func NewReleaseService(
	repo repository.ReleaseRepository,
	cacheRepo repository.CacheRepository,
	samples clients.SampleClient,
	results clients.ResultClient,
	warehouse notifier.WarehouseNotifier,
	numbers ReleaseNumberGenerator,
) ReleaseService {
	return &releaseService{
		repo:      repo,
		cacheRepo: cacheRepo,
		samples:   samples,
		results:   results,
		warehouse: warehouse,
		numbers:   numbers,
	}
}

// Create валидирует пробу и результаты во внешних реестрах и пишет релиз
// вместе со стандартным чек-листом в одной транзакции. Валидация идёт до
// записи; любой отказ реестра проваливает операцию целиком.
func (s *releaseService) Create(ctx context.Context, input CreateReleaseInput) (*models.Release, error) {
	sample, err := s.samples.GetByID(ctx, input.SampleID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return nil, fmt.Errorf("sample %s: %w", input.SampleID, ErrNotFound)
		}
		return nil, fmt.Errorf("sample registry check failed: %v: %w", err, ErrUpstream)
	}

	if sample.Status != models.SampleStatusSubmittedToQA && sample.Status != models.SampleStatusQCComplete {
		return nil, fmt.Errorf("sample %s is not ready for release (status %q): %w",
			input.SampleID, sample.Status, ErrValidation)
	}

	if err := s.validateResults(ctx, input.SampleID, input.ResultIDs); err != nil {
		return nil, err
	}

	number, err := s.numbers.Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate release number: %w", err)
	}

	resultIDs, err := json.Marshal(input.ResultIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result ids: %w", err)
	}

	release := &models.Release{
		ReleaseNumber:      number,
		SampleID:           input.SampleID,
		GoodsReceiptItemID: input.GoodsReceiptItemID,
		MaterialID:         input.MaterialID,
		MaterialName:       input.MaterialName,
		MaterialCode:       input.MaterialCode,
		BatchNumber:        input.BatchNumber,
		Quantity:           input.Quantity,
		Unit:               input.Unit,
		Status:             models.StatusPending,
		ResultIDs:          resultIDs,
		SubmittedBy:        input.SubmittedBy,
		SubmittedAt:        time.Now().UTC(),
		WarehouseNotified:  false,
		ChecklistItems:     DefaultChecklistItems(),
	}

	if err := s.repo.Create(ctx, release); err != nil {
		return nil, fmt.Errorf("failed to create release: %w", err)
	}

	s.invalidateCache(ctx)
	log.Printf("Release %s created for sample %s (%d results)",
		release.ReleaseNumber, release.SampleID, len(input.ResultIDs))

	return release, nil
}

// validateResults проверяет каждый результат в реестре: существует, передан
// в QA и принадлежит той же пробе. Проверки идут параллельно, но запись
// начинается только когда прошли все; первый отказ снимает остальные.
func (s *releaseService) validateResults(ctx context.Context, sampleID string, resultIDs []string) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, resultID := range resultIDs {
		resultID := resultID
		g.Go(func() error {
			result, err := s.results.GetByID(gctx, resultID)
			if err != nil {
				if errors.Is(err, clients.ErrNotFound) {
					return fmt.Errorf("result %s: %w", resultID, ErrNotFound)
				}
				return fmt.Errorf("result registry check failed: %v: %w", err, ErrUpstream)
			}
			if !result.SubmittedToQA {
				return fmt.Errorf("result %s is not submitted to QA: %w", resultID, ErrValidation)
			}
			if result.SampleID != sampleID {
				return fmt.Errorf("result %s belongs to sample %s, not %s: %w",
					resultID, result.SampleID, sampleID, ErrValidation)
			}
			return nil
		})
	}

	return g.Wait()
}

func (s *releaseService) List(ctx context.Context) ([]*models.Release, error) {
	var cached []*models.Release
	if err := s.cacheRepo.GetJSON(ctx, cacheKeyAll, &cached); err == nil && len(cached) > 0 {
		return cached, nil
	}

	releases, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}

	if len(releases) > 0 {
		if err := s.cacheRepo.SetJSON(ctx, cacheKeyAll, releases, cacheReleaseTTL); err != nil {
			log.Printf("Failed to cache release list: %v", err)
		}
	}

	return releases, nil
}

func (s *releaseService) GetByID(ctx context.Context, id uint) (*models.Release, error) {
	cacheKey := fmt.Sprintf(cacheKeyByID, id)

	var cached models.Release
	if err := s.cacheRepo.GetJSON(ctx, cacheKey, &cached); err == nil && cached.ID != 0 {
		return &cached, nil
	}

	release, err := s.getRelease(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cacheRepo.SetJSON(ctx, cacheKey, release, cacheReleaseTTL); err != nil {
		log.Printf("Failed to cache release %d: %v", id, err)
	}

	return release, nil
}

func (s *releaseService) GetBySample(ctx context.Context, sampleID string) ([]*models.Release, error) {
	cacheKey := fmt.Sprintf(cacheKeySample, sampleID)

	var cached []*models.Release
	if err := s.cacheRepo.GetJSON(ctx, cacheKey, &cached); err == nil && len(cached) > 0 {
		return cached, nil
	}

	releases, err := s.repo.GetBySample(ctx, sampleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get releases by sample: %w", err)
	}

	if len(releases) > 0 {
		if err := s.cacheRepo.SetJSON(ctx, cacheKey, releases, cacheReleaseTTL); err != nil {
			log.Printf("Failed to cache releases for sample %s: %v", sampleID, err)
		}
	}

	return releases, nil
}

// Update патчит замечания и/или заменяет чек-лист целиком. Решённые релизы
// неизменяемы; чек-лист заменяется только пока релиз в Pending.
func (s *releaseService) Update(ctx context.Context, id uint, input UpdateReleaseInput) (*models.Release, error) {
	release, err := s.getRelease(ctx, id)
	if err != nil {
		return nil, err
	}

	if release.Decided() {
		return nil, fmt.Errorf("decided releases are immutable: %w", ErrValidation)
	}

	fields := map[string]interface{}{}
	if input.Remarks != nil {
		fields["remarks"] = *input.Remarks
	}

	if input.ChecklistItems != nil {
		if release.Status != models.StatusPending {
			return nil, fmt.Errorf("checklist can only be replaced while release is pending: %w", ErrValidation)
		}
		err = s.repo.UpdateWithChecklist(ctx, id, release.Version, fields, buildChecklistItems(input.ChecklistItems))
	} else {
		err = s.repo.UpdateFields(ctx, id, release.Version, fields)
	}
	if err != nil {
		return nil, s.mapWriteErr(err, "failed to update release")
	}

	s.invalidateCache(ctx)
	return s.getRelease(ctx, id)
}

// Delete удаляет релиз вместе с чек-листом. Выпущенный релиз — регуляторное
// доказательство и удалению не подлежит.
func (s *releaseService) Delete(ctx context.Context, id uint) error {
	release, err := s.getRelease(ctx, id)
	if err != nil {
		return err
	}

	if release.Status == models.StatusReleased {
		return fmt.Errorf("released records cannot be deleted: %w", ErrValidation)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete release: %w", err)
	}

	s.invalidateCache(ctx)
	log.Printf("Release %s deleted (status %s)", release.ReleaseNumber, release.Status)
	return nil
}

// CompleteChecklist переводит Pending -> UnderReview, когда все пункты
// отмечены. Пустой чек-лист проходит проверку тривиально.
func (s *releaseService) CompleteChecklist(ctx context.Context, id uint, reviewedBy string) (*models.Release, error) {
	release, err := s.getRelease(ctx, id)
	if err != nil {
		return nil, err
	}

	if release.Status != models.StatusPending {
		return nil, fmt.Errorf("release %s is %s, expected %s: %w",
			release.ReleaseNumber, release.Status, models.StatusPending, ErrValidation)
	}

	for _, item := range release.ChecklistItems {
		if !item.Checked {
			return nil, fmt.Errorf("checklist item %q is not checked: %w", item.Item, ErrValidation)
		}
	}

	now := time.Now().UTC()
	fields := map[string]interface{}{
		"status":      models.StatusUnderReview,
		"reviewed_by": reviewedBy,
		"reviewed_at": now,
	}
	if err := s.repo.UpdateFields(ctx, id, release.Version, fields); err != nil {
		return nil, s.mapWriteErr(err, "failed to complete checklist")
	}

	s.invalidateCache(ctx)
	return s.getRelease(ctx, id)
}

// MakeDecision выносит окончательный вердикт. Решение пишется один раз;
// замечания решения дописываются к существующим, а не перезаписывают их.
// Положительное решение после фиксации запускает уведомление склада
// отдельным шагом: его сбой не откатывает решение.
func (s *releaseService) MakeDecision(ctx context.Context, id uint, input DecisionInput) (*models.Release, error) {
	newStatus, ok := decisionStatus(input.Decision)
	if !ok {
		return nil, fmt.Errorf("unknown decision %q: %w", input.Decision, ErrValidation)
	}

	release, err := s.getRelease(ctx, id)
	if err != nil {
		return nil, err
	}

	if release.Decided() {
		return nil, fmt.Errorf("decided releases are immutable: %w", ErrValidation)
	}
	if release.Status != models.StatusUnderReview && release.Status != models.StatusChecklistInProgress {
		return nil, fmt.Errorf("release %s is %s, decision requires %s or %s: %w",
			release.ReleaseNumber, release.Status,
			models.StatusUnderReview, models.StatusChecklistInProgress, ErrValidation)
	}

	now := time.Now().UTC()
	fields := map[string]interface{}{
		"status":          newStatus,
		"decision":        input.Decision,
		"decision_reason": input.Reason,
		"decided_by":      input.DecidedBy,
		"decided_at":      now,
		"e_signature":     input.ESignature,
	}
	if input.Remarks != nil {
		fields["remarks"] = appendDecisionRemarks(release.Remarks, *input.Remarks)
	}

	if err := s.repo.UpdateFields(ctx, id, release.Version, fields); err != nil {
		return nil, s.mapWriteErr(err, "failed to record decision")
	}

	s.invalidateCache(ctx)
	log.Printf("Release %s decided: %s by %s", release.ReleaseNumber, input.Decision, input.DecidedBy)

	if input.Decision == models.DecisionRelease {
		notified, err := s.NotifyWarehouse(ctx, id)
		if err != nil {
			// Решение уже зафиксировано; строка остаётся Released без
			// уведомления и добирается воркером повторного уведомления.
			log.Printf("Warehouse notification for release %s failed: %v", release.ReleaseNumber, err)
		} else {
			return notified, nil
		}
	}

	return s.getRelease(ctx, id)
}

// NotifyWarehouse сигналит складу о выпущенной партии. Повторный вызов по
// уже уведомлённому релизу — ошибка валидации, это и есть защита от дублей.
func (s *releaseService) NotifyWarehouse(ctx context.Context, id uint) (*models.Release, error) {
	release, err := s.getRelease(ctx, id)
	if err != nil {
		return nil, err
	}

	if release.Status != models.StatusReleased {
		return nil, fmt.Errorf("release %s is %s, only %s can be put away: %w",
			release.ReleaseNumber, release.Status, models.StatusReleased, ErrValidation)
	}
	if release.WarehouseNotified {
		return nil, fmt.Errorf("release %s: warehouse already notified: %w", release.ReleaseNumber, ErrValidation)
	}

	// Публикация раньше флага: при сбое между ними строка остаётся
	// в восстановимом состоянии и сигнал уйдёт повторно (at-least-once).
	if err := s.warehouse.Notify(ctx, release); err != nil {
		return nil, fmt.Errorf("failed to notify warehouse: %v: %w", err, ErrUpstream)
	}

	now := time.Now().UTC()
	fields := map[string]interface{}{
		"warehouse_notified":    true,
		"warehouse_notified_at": now,
	}
	if err := s.repo.UpdateFields(ctx, id, release.Version, fields); err != nil {
		return nil, s.mapWriteErr(err, "failed to mark release as notified")
	}

	s.invalidateCache(ctx)
	log.Printf("Warehouse notified for release %s", release.ReleaseNumber)
	return s.getRelease(ctx, id)
}

// RedriveUnnotified добирает выпущенные релизы, по которым уведомление
// склада не прошло (сбой после фиксации решения), и шлёт его повторно.
func (s *releaseService) RedriveUnnotified(ctx context.Context, limit int) (int, error) {
	// Блокировка от слишком частых прогонов при нескольких инстансах.
	if cached, err := s.cacheRepo.Get(ctx, redriveLockKey); err == nil && cached != "" {
		return 0, nil
	}

	releases, err := s.repo.ListUnnotified(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list unnotified releases: %w", err)
	}

	notified := 0
	for _, release := range releases {
		if _, err := s.NotifyWarehouse(ctx, release.ID); err != nil {
			// Конкурент мог успеть уведомить первым — это не сбой прогона.
			if errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict) {
				continue
			}
			log.Printf("Redrive: failed to notify warehouse for release %s: %v", release.ReleaseNumber, err)
			continue
		}
		notified++
	}

	if err := s.cacheRepo.Set(ctx, redriveLockKey, "1", redriveLockTTL); err != nil {
		log.Printf("Failed to set redrive lock: %v", err)
	}

	return notified, nil
}

func (s *releaseService) getRelease(ctx context.Context, id uint) (*models.Release, error) {
	release, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("release %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get release %d: %w", id, err)
	}
	return release, nil
}

func (s *releaseService) mapWriteErr(err error, msg string) error {
	if errors.Is(err, repository.ErrVersionConflict) {
		return fmt.Errorf("%s: %w", msg, ErrConflict)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (s *releaseService) invalidateCache(ctx context.Context) {
	if err := s.cacheRepo.DeleteByPattern(ctx, cachePattern); err != nil {
		log.Printf("Failed to invalidate release cache: %v", err)
	}
}

func decisionStatus(decision string) (string, bool) {
	switch decision {
	case models.DecisionRelease:
		return models.StatusReleased, true
	case models.DecisionHold:
		return models.StatusHeld, true
	case models.DecisionReject:
		return models.StatusRejected, true
	default:
		return "", false
	}
}

func appendDecisionRemarks(existing *string, remarks string) string {
	if existing == nil || *existing == "" {
		return "Decision: " + remarks
	}
	return *existing + "\n\nDecision: " + remarks
}
