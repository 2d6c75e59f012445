package service

import "qarelease/internal/models"

// Обязательный чек-лист нового релиза. Все пункты создаются неотмеченными.
var defaultChecklist = []string{
	"All QC tests completed",
	"All QC results passed",
	"Documentation reviewed",
	"Batch records verified",
	"Compliance verified",
}

// ChecklistItemInput — пункт чек-листа из запроса на обновление.
type ChecklistItemInput struct {
	Item    string  `json:"item" binding:"required"`
	Checked bool    `json:"checked"`
	Remarks *string `json:"remarks,omitempty"`
}

// DefaultChecklistItems возвращает стандартный набор пунктов для нового релиза.
func DefaultChecklistItems() []models.ChecklistItem {
	items := make([]models.ChecklistItem, 0, len(defaultChecklist))
	for _, item := range defaultChecklist {
		items = append(items, models.ChecklistItem{
			Item:    item,
			Checked: false,
		})
	}
	return items
}

func buildChecklistItems(inputs []ChecklistItemInput) []models.ChecklistItem {
	items := make([]models.ChecklistItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, models.ChecklistItem{
			Item:    in.Item,
			Checked: in.Checked,
			Remarks: in.Remarks,
		})
	}
	return items
}
