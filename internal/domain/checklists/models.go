package checklists

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/domain/compliance"
)

const (
	KindOnboarding  = "onboarding"
	KindOffboarding = "offboarding"
	KindOther       = "other"
)

var Kinds = []string{KindOnboarding, KindOffboarding, KindOther}

var (
	ErrTemplateNotFound  = goerr.New("checklist template not found")
	ErrChecklistNotFound = goerr.New("checklist not found")
	ErrItemNotFound      = goerr.New("checklist item not found")
	ErrInvalidTemplate   = goerr.New("invalid checklist template")
)

type Template struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Kind      string         `json:"kind"`
	Items     []TemplateItem `json:"items"`
	CreatedAt time.Time      `json:"createdAt"`
}

type TemplateItem struct {
	ID            string `json:"id,omitempty"`
	Position      int    `json:"position"`
	Title         string `json:"title"`
	DueOffsetDays int    `json:"dueOffsetDays"`
}

type Checklist struct {
	ID         string          `json:"id"`
	TemplateID string          `json:"templateId"`
	Name       string          `json:"name"`
	EmployeeID string          `json:"employeeId"`
	Kind       string          `json:"kind"`
	StartDate  compliance.Date `json:"startDate"`
	Items      []Item          `json:"items"`
	Progress   int             `json:"progress"`
	Overdue    int             `json:"overdue"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Item struct {
	ID          string           `json:"id"`
	Position    int              `json:"position"`
	Title       string           `json:"title"`
	DueDate     *compliance.Date `json:"dueDate"`
	CompletedAt *time.Time       `json:"completedAt"`
	CompletedBy string           `json:"completedBy,omitempty"`
	Overdue     bool             `json:"overdue"`
}

func (i Item) Done() bool {
	return i.CompletedAt != nil
}

// IsOverdue is true for an open item whose due date is strictly before asOf.
func (i Item) IsOverdue(asOf compliance.Date) bool {
	return !i.Done() && i.DueDate != nil && i.DueDate.Before(asOf)
}

// NormalizeTemplate trims fields, renumbers items in their given order and checks the kind.
func NormalizeTemplate(t Template) (Template, error) {
	t.Name = strings.TrimSpace(t.Name)
	t.Kind = strings.ToLower(strings.TrimSpace(t.Kind))
	if t.Kind == "" {
		t.Kind = KindOnboarding
	}
	if t.Name == "" {
		return Template{}, goerr.Wrap(ErrInvalidTemplate, "name is required")
	}
	known := false
	for _, k := range Kinds {
		known = known || k == t.Kind
	}
	if !known {
		return Template{}, goerr.Wrap(ErrInvalidTemplate, "unknown kind", goerr.V("kind", t.Kind))
	}
	items := make([]TemplateItem, 0, len(t.Items))
	for _, item := range t.Items {
		item.Title = strings.TrimSpace(item.Title)
		if item.Title == "" {
			return Template{}, goerr.Wrap(ErrInvalidTemplate, "item title is required", goerr.V("position", len(items)+1))
		}
		item.Position = len(items) + 1
		items = append(items, item)
	}
	if len(items) == 0 {
		return Template{}, goerr.Wrap(ErrInvalidTemplate, "at least one item is required")
	}
	t.Items = items
	return t, nil
}

// Instantiate copies a template for one employee; each due date is start plus the item offset.
func Instantiate(t Template, employeeID string, start compliance.Date) Checklist {
	c := Checklist{
		TemplateID: t.ID,
		Name:       t.Name,
		EmployeeID: employeeID,
		Kind:       t.Kind,
		StartDate:  start,
		Items:      make([]Item, 0, len(t.Items)),
	}
	for _, ti := range t.Items {
		due := start.AddDays(ti.DueOffsetDays)
		c.Items = append(c.Items, Item{Position: ti.Position, Title: ti.Title, DueDate: &due})
	}
	return c
}

// Progress is the completed share of items in whole percent. An empty checklist is complete.
func Progress(items []Item) int {
	if len(items) == 0 {
		return 100
	}
	done := 0
	for _, item := range items {
		if item.Done() {
			done++
		}
	}
	return done * 100 / len(items)
}

func OverdueItems(items []Item, asOf compliance.Date) []Item {
	var out []Item
	for _, item := range items {
		if item.IsOverdue(asOf) {
			out = append(out, item)
		}
	}
	return out
}

// Annotate fills the derived progress and overdue fields as of asOf.
func (c *Checklist) Annotate(asOf compliance.Date) {
	c.Progress = Progress(c.Items)
	c.Overdue = 0
	for i := range c.Items {
		c.Items[i].Overdue = c.Items[i].IsOverdue(asOf)
		if c.Items[i].Overdue {
			c.Overdue++
		}
	}
}

// OpenCounts summarizes unfinished checklists for dashboards.
type OpenCounts struct {
	Open        int `json:"open"`
	WithOverdue int `json:"withOverdue"`
	Onboarding  int `json:"onboarding"`
	Offboarding int `json:"offboarding"`
}
