package tui

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/go-faster/errors"

	"github.com/Joseda-hg/clutchdesk/internal/model"
	"github.com/Joseda-hg/clutchdesk/internal/viewstate"
)

// intent is remote work prepared on the UI goroutine and run off it.
type intent func(ctx context.Context) error

// screen is one pane's view over a controller. All methods run on the UI
// goroutine.
type screen interface {
	title() string
	subscribe(post func(func())) (unsubscribe func())
	loader() viewstate.Loader
	clearError()

	loading() bool
	errorText() string
	criteria() viewstate.Criteria
	setQuery(query string)
	cycleStatus()
	clearCriteria()

	rows() []string
	detail() []string
	summary() []string
	selectedIndex() int
	move(delta int)
	selectAt(row int)

	newForm() *formState
	editForm() *formState
	submit(form *formState) (intent, error)
	deleteSelected() intent
}

type pane[T model.Record] struct {
	entity   entity[T]
	ctrl     *viewstate.Controller[T]
	state    viewstate.State[T]
	filter   viewstate.Criteria
	selected int
}

func newPane[T model.Record](e entity[T], ctrl *viewstate.Controller[T]) *pane[T] {
	return &pane[T]{entity: e, ctrl: ctrl, state: ctrl.Snapshot()}
}

func (p *pane[T]) title() string {
	return p.entity.title
}

// subscribe routes snapshots through post so they land on the UI goroutine.
// post may reorder deliveries, so older versions are ignored.
func (p *pane[T]) subscribe(post func(func())) func() {
	return p.ctrl.Subscribe(func(s viewstate.State[T]) {
		post(func() { p.apply(s) })
	})
}

func (p *pane[T]) apply(s viewstate.State[T]) {
	if s.Version < p.state.Version {
		return
	}
	p.state = s
	p.clampSelection()
}

func (p *pane[T]) loader() viewstate.Loader {
	return p.ctrl.Loader(nil)
}

func (p *pane[T]) clearError() {
	p.ctrl.ClearError()
}

func (p *pane[T]) loading() bool {
	return p.state.IsLoading
}

func (p *pane[T]) errorText() string {
	return p.state.Error
}

func (p *pane[T]) criteria() viewstate.Criteria {
	return p.filter
}

func (p *pane[T]) setQuery(query string) {
	p.filter.Query = query
	p.selected = 0
}

// cycleStatus steps the status filter through all, then each known status.
func (p *pane[T]) cycleStatus() {
	options := statusOptions(p.entity.statuses)
	current := p.filter.Status
	if current == "" {
		current = "all"
	}
	p.filter.Status = cycleOption(options, current, 1)
	p.selected = 0
}

func (p *pane[T]) clearCriteria() {
	p.filter = viewstate.Criteria{}
	p.selected = 0
}

func (p *pane[T]) visible() []T {
	return viewstate.Apply(p.state.Data, p.filter)
}

func (p *pane[T]) selectedRecord() (T, bool) {
	items := p.visible()
	if p.selected < 0 || p.selected >= len(items) {
		var zero T
		return zero, false
	}
	return items[p.selected], true
}

func (p *pane[T]) rows() []string {
	items := p.visible()
	rows := make([]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, p.entity.row(item))
	}
	return rows
}

func (p *pane[T]) detail() []string {
	record, ok := p.selectedRecord()
	if !ok {
		return []string{fmt.Sprintf("No %s selected", p.entity.noun)}
	}
	return p.entity.detail(record)
}

func (p *pane[T]) summary() []string {
	counts := viewstate.CountByStatus(p.state.Data)
	lines := []string{fmt.Sprintf("Total: %s", humanize.Comma(int64(len(p.state.Data))))}
	for _, status := range p.entity.statuses {
		if counts[status] == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s: %s", colorStatus(status), humanize.Comma(int64(counts[status]))))
	}
	if shown := len(p.visible()); !p.filter.Empty() {
		lines = append(lines, fmt.Sprintf("Showing: %s", humanize.Comma(int64(shown))))
	}
	return lines
}

func (p *pane[T]) selectedIndex() int {
	return p.selected
}

func (p *pane[T]) move(delta int) {
	p.selected += delta
	p.clampSelection()
}

func (p *pane[T]) selectAt(row int) {
	p.selected = row
	p.clampSelection()
}

func (p *pane[T]) clampSelection() {
	count := len(p.visible())
	p.selected = min(p.selected, count-1)
	p.selected = max(p.selected, 0)
}

func (p *pane[T]) newForm() *formState {
	return &formState{fields: p.entity.form(nil)}
}

func (p *pane[T]) editForm() *formState {
	record, ok := p.selectedRecord()
	if !ok {
		return nil
	}
	return &formState{id: record.Key(), original: record, fields: p.entity.form(&record)}
}

// submit turns the form into a create or update intent. A nil intent with a
// nil error means the edit changed nothing.
func (p *pane[T]) submit(form *formState) (intent, error) {
	if form.id == "" {
		var zero T
		record, err := p.entity.build(zero, form)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			_, err := p.ctrl.Create(ctx, record)
			return err
		}, nil
	}

	original, ok := form.original.(T)
	if !ok {
		return nil, errors.Errorf("%s changed type while editing", p.entity.noun)
	}
	updated, err := p.entity.build(original, form)
	if err != nil {
		return nil, err
	}
	patch, err := mergePatch(original, updated)
	if err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, nil
	}
	id := form.id
	return func(ctx context.Context) error {
		_, err := p.ctrl.Update(ctx, id, patch)
		return err
	}, nil
}

func (p *pane[T]) deleteSelected() intent {
	record, ok := p.selectedRecord()
	if !ok {
		return nil
	}
	id := record.Key()
	return func(ctx context.Context) error {
		return p.ctrl.Delete(ctx, id)
	}
}

var _ screen = (*pane[model.Employee])(nil)

// statusOptions lists the filter values in cycle order.
func statusOptions(statuses []string) []string {
	return append([]string{"all"}, statuses...)
}
