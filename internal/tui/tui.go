package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
	"go.uber.org/zap"

	"github.com/Joseda-hg/clutchdesk/internal/model"
	"github.com/Joseda-hg/clutchdesk/internal/viewstate"
)

const (
	viewHeader  = "header"
	viewFooter  = "footer"
	viewList    = "list"
	viewDetail  = "detail"
	viewSummary = "summary"
	viewSearch  = "search"
	viewForm    = "form"
	viewHelp    = "help"
)

// Controllers are the screens the console shows, in tab order.
type Controllers struct {
	Employees    *viewstate.Controller[model.Employee]
	Appointments *viewstate.Controller[model.Appointment]
	Inventory    *viewstate.Controller[model.InventoryItem]
	Listings     *viewstate.Controller[model.Listing]
}

type UI struct {
	gui    *gocui.Gui
	logger *zap.Logger
	ctx    context.Context

	screens []screen
	active  int

	form         *formState
	formEditor   *formEditor
	searchActive bool
	helpActive   bool
	status       string

	// dispatch runs remote work off the UI goroutine; post schedules a
	// closure back onto it.
	dispatch func(func())
	post     func(func())
}

func newUI(ctx context.Context, controllers Controllers, logger *zap.Logger) *UI {
	if logger == nil {
		logger = zap.NewNop()
	}
	ui := &UI{
		ctx:    ctx,
		logger: logger,
		screens: []screen{
			newPane(employeeEntity, controllers.Employees),
			newPane(appointmentEntity, controllers.Appointments),
			newPane(inventoryEntity, controllers.Inventory),
			newPane(listingEntity, controllers.Listings),
		},
		dispatch: func(fn func()) { fn() },
		post:     func(fn func()) { fn() },
	}
	ui.formEditor = &formEditor{ui: ui}
	return ui
}

func Run(ctx context.Context, controllers Controllers, logger *zap.Logger) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ui := newUI(ctx, controllers, logger)
	ui.gui = gui
	var inflight sync.WaitGroup
	ui.dispatch = func(fn func()) {
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			fn()
		}()
	}
	ui.post = func(fn func()) {
		gui.Update(func(*gocui.Gui) error {
			fn()
			return nil
		})
	}
	gui.Mouse = true

	detach := ui.attach()
	defer detach()

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}
	ui.loadAll()

	err = gui.MainLoop()
	cancel()
	inflight.Wait()
	if err != nil && !goerrors.Is(err, gocui.ErrQuit) {
		return err
	}
	return nil
}

// attach subscribes every screen to its controller.
func (u *UI) attach() (detach func()) {
	unsubscribes := make([]func(), 0, len(u.screens))
	for _, s := range u.screens {
		unsubscribes = append(unsubscribes, s.subscribe(u.post))
	}
	return func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}
}

func (u *UI) current() screen {
	return u.screens[u.active]
}

// run dispatches work and logs failures. Controllers already carry the
// failure in their state.
func (u *UI) run(name string, work intent) {
	u.dispatch(func() {
		if err := work(u.ctx); err != nil && !goerrors.Is(err, viewstate.ErrSuperseded) {
			u.logger.Debug("intent failed", zap.String("intent", name), zap.Error(err))
		}
	})
}

func (u *UI) loadAll() {
	loaders := make([]viewstate.Loader, 0, len(u.screens))
	for _, s := range u.screens {
		loaders = append(loaders, s.loader())
	}
	u.run("load all", func(ctx context.Context) error {
		return viewstate.LoadAll(ctx, loaders...)
	})
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	global := []struct {
		key     any
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{gocui.KeyCtrlC, u.quit},
		{'q', u.quit},
		{'r', u.reload},
		{'R', u.reloadAll},
		{'g', u.clearFilters},
		{'f', u.cycleStatusFilter},
		{'a', u.addRecord},
		{'e', u.editRecord},
		{'d', u.deleteRecord},
		{'c', u.clearError},
		{'/', u.startSearch},
		{'?', u.toggleHelp},
		{gocui.KeyTab, u.nextScreen},
		{'1', u.focusScreen(0)},
		{'2', u.focusScreen(1)},
		{'3', u.focusScreen(2)},
		{'4', u.focusScreen(3)},
	}
	for _, binding := range global {
		if err := gui.SetKeybinding("", binding.key, gocui.ModNone, binding.handler); err != nil {
			return err
		}
	}

	list := []struct {
		key     any
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{gocui.KeyArrowDown, u.moveDown},
		{'j', u.moveDown},
		{gocui.KeyArrowUp, u.moveUp},
		{'k', u.moveUp},
		{gocui.MouseWheelDown, u.moveDown},
		{gocui.MouseWheelUp, u.moveUp},
	}
	for _, binding := range list {
		if err := gui.SetKeybinding(viewList, binding.key, gocui.ModNone, binding.handler); err != nil {
			return err
		}
	}

	if err := gui.SetKeybinding(viewSearch, gocui.KeyEnter, gocui.ModNone, u.submitSearch); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewSearch, gocui.KeyEsc, gocui.ModNone, u.cancelSearch); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEnter, gocui.ModNone, u.submitForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEsc, gocui.ModNone, u.cancelForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyTab, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowDown, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowUp, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyBacktab, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, gocui.KeyEsc, gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, 'q', gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	return gui.SetViewClickBinding(&gocui.ViewMouseBinding{ViewName: viewList, Key: gocui.MouseLeft, Handler: func(opts gocui.ViewMouseBindingOpts) error {
		return u.onListClick(gui, opts)
	}})
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = true
	u.renderHeader(headerView)

	footerY1 := max(maxY-1, 2)
	footerY0 := max(footerY1-3, 2)
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault
	u.renderFooter(footerView)

	bodyTop := 2
	bodyBottom := footerY0 - 1
	if bodyBottom <= bodyTop {
		return nil
	}

	l := computeLayout(maxX, bodyBottom-bodyTop+1)
	listX1 := l.listWidth - 1
	rightX0 := min(listX1+1, maxX-1)
	detailY1 := bodyTop + l.detailHeight - 1

	listView, err := gui.SetView(viewList, 0, bodyTop, listX1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	listView.Title = fmt.Sprintf("%d %s", u.active+1, u.current().title())
	applyViewStyle(listView, !u.inputActive(), true)
	u.renderList(listView)

	detailView, err := gui.SetView(viewDetail, rightX0, bodyTop, maxX-1, detailY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		detailView.Title = "Details"
		detailView.Wrap = true
	}
	applyViewStyle(detailView, false, false)
	renderLines(detailView, u.current().detail())

	summaryView, err := gui.SetView(viewSummary, rightX0, detailY1+1, maxX-1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		summaryView.Title = "Summary"
	}
	applyViewStyle(summaryView, false, false)
	renderLines(summaryView, u.current().summary())

	if u.searchActive {
		if err := u.showSearch(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewSearch)
	}

	if u.form != nil {
		if err := u.showForm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewForm)
	}

	if u.helpActive {
		if err := u.showHelp(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewHelp)
	}

	target := u.targetView()
	if current := gui.CurrentView(); current == nil || current.Name() != target {
		_, _ = gui.SetCurrentView(target)
	}
	gui.Cursor = u.searchActive || u.form != nil

	return nil
}

func (u *UI) targetView() string {
	switch {
	case u.helpActive:
		return viewHelp
	case u.form != nil:
		return viewForm
	case u.searchActive:
		return viewSearch
	default:
		return viewList
	}
}

type layout struct {
	listWidth    int
	detailHeight int
}

func computeLayout(width, height int) layout {
	safeWidth := max(width, 40)
	safeHeight := max(height, 8)

	listWidth := safeWidth * 3 / 5
	if listWidth < 30 {
		listWidth = 30
	}
	if listWidth > safeWidth-20 {
		listWidth = safeWidth / 2
	}

	detailHeight := int(float64(safeHeight) * 0.6)
	if detailHeight < 4 {
		detailHeight = 4
	}
	if safeHeight-detailHeight < 3 {
		detailHeight = max(safeHeight-3, 4)
	}

	return layout{listWidth: listWidth, detailHeight: detailHeight}
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	tabs := make([]string, 0, len(u.screens))
	for i, s := range u.screens {
		label := fmt.Sprintf("%d %s", i+1, s.title())
		if i == u.active {
			label = "[" + label + "]"
		}
		tabs = append(tabs, label)
	}

	criteria := u.current().criteria()
	query := strings.TrimSpace(criteria.Query)
	if query == "" {
		query = "type / to search"
	}
	status := criteria.Status
	if status == "" {
		status = "all"
	}

	fmt.Fprintln(view, strings.Join(tabs, "  "))
	fmt.Fprintf(view, "Search: %s | Status: %s", query, status)
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	view.SetOrigin(0, 0)

	fmt.Fprintln(view, "a add | e edit | d delete | / search | f status | g clear filters | c clear error")
	fmt.Fprintln(view, "r reload | R reload all | tab/1-4 screens | j/k move | ? help | q quit")
	s := u.current()
	switch {
	case s.errorText() != "":
		fmt.Fprintf(view, "%s  (r retry | c clear)", statusTheme.Alert(s.errorText()))
	case u.status != "":
		fmt.Fprint(view, u.status)
	case s.loading():
		fmt.Fprint(view, "Loading…")
	}
}

func (u *UI) renderList(view *gocui.View) {
	view.Clear()
	s := u.current()
	rows := s.rows()
	if len(rows) == 0 {
		switch {
		case s.loading():
			fmt.Fprint(view, "Loading…")
		case s.errorText() != "":
			fmt.Fprint(view, "Nothing to show")
		case !s.criteria().Empty():
			fmt.Fprint(view, "No matches")
		default:
			fmt.Fprint(view, "No records")
		}
		return
	}

	selected := s.selectedIndex()
	for i, row := range rows {
		prefix := " "
		if i == selected {
			prefix = ">"
		}
		fmt.Fprintf(view, "%s %s\n", prefix, row)
	}
	view.SetCursor(0, min(selected, len(rows)-1))
}

func renderLines(view *gocui.View, lines []string) {
	view.Clear()
	fmt.Fprint(view, strings.Join(lines, "\n"))
}

func (u *UI) onListClick(gui *gocui.Gui, opts gocui.ViewMouseBindingOpts) error {
	if u.inputActive() {
		return nil
	}
	view, err := gui.View(viewList)
	if err != nil {
		return nil
	}
	_, y0, _, _ := view.Dimensions()
	_, oy := view.Origin()
	u.current().selectAt(max(opts.Y-y0-1+oy, 0))
	return nil
}

func (u *UI) nextScreen(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.active = (u.active + 1) % len(u.screens)
	u.status = ""
	return nil
}

func (u *UI) focusScreen(index int) func(*gocui.Gui, *gocui.View) error {
	return func(_ *gocui.Gui, _ *gocui.View) error {
		if u.inputActive() || index >= len(u.screens) {
			return nil
		}
		u.active = index
		u.status = ""
		return nil
	}
}

func (u *UI) moveDown(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.current().move(1)
	return nil
}

func (u *UI) moveUp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.current().move(-1)
	return nil
}

func (u *UI) reload(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.status = ""
	u.run("load", intent(u.current().loader()))
	return nil
}

func (u *UI) reloadAll(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.status = ""
	u.loadAll()
	return nil
}

func (u *UI) clearFilters(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.current().clearCriteria()
	return nil
}

func (u *UI) cycleStatusFilter(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.current().cycleStatus()
	return nil
}

func (u *UI) clearError(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.status = ""
	u.current().clearError()
	return nil
}

func (u *UI) startSearch(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.searchActive = true
	return nil
}

func (u *UI) showSearch(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(30, maxX/2)
	height := 2
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewSearch, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Search " + u.current().title()
		view.Clear()
		query := u.current().criteria().Query
		fmt.Fprint(view, query)
		view.SetCursor(len([]rune(query)), 0)
	}
	view.Editable = true
	view.Editor = gocui.DefaultEditor
	return nil
}

func (u *UI) submitSearch(_ *gocui.Gui, view *gocui.View) error {
	query := ""
	if view != nil {
		query = strings.TrimSpace(view.Buffer())
	}
	u.current().setQuery(query)
	u.searchActive = false
	return nil
}

func (u *UI) cancelSearch(_ *gocui.Gui, _ *gocui.View) error {
	u.searchActive = false
	return nil
}

func (u *UI) toggleHelp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() && !u.helpActive {
		return nil
	}
	u.helpActive = !u.helpActive
	return nil
}

func (u *UI) closeHelp(_ *gocui.Gui, _ *gocui.View) error {
	u.helpActive = false
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := 16
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewHelp, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Help"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprint(view, helpText())
	return nil
}

func (u *UI) addRecord(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.form = u.current().newForm()
	return nil
}

func (u *UI) editRecord(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.form = u.current().editForm()
	return nil
}

func (u *UI) deleteRecord(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	work := u.current().deleteSelected()
	if work == nil {
		return nil
	}
	u.status = ""
	u.run("delete", func(ctx context.Context) error {
		err := work(ctx)
		if err != nil {
			u.post(func() { u.status = err.Error() })
		}
		return err
	})
	return nil
}

func (u *UI) showForm(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := min(len(u.form.fields)+2, max(8, maxY-2))
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewForm, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	noun := strings.TrimSuffix(u.current().title(), "s")
	switch {
	case u.form.busy:
		view.Title = "Saving…"
	case u.form.id != "":
		view.Title = "Edit " + noun
	default:
		view.Title = "New " + noun
	}
	view.Wrap = true
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderForm(view)
	return nil
}

// submitForm builds the record on the UI goroutine and sends it off. The form
// stays open until the controller accepts the change, so a rejected entry can
// be corrected.
func (u *UI) submitForm(_ *gocui.Gui, _ *gocui.View) error {
	if u.form == nil || u.form.busy {
		return nil
	}
	work, err := u.current().submit(u.form)
	if err != nil {
		u.status = err.Error()
		return nil
	}
	if work == nil {
		u.form = nil
		u.status = "No changes"
		return nil
	}

	form := u.form
	form.busy = true
	u.status = ""
	u.dispatch(func() {
		err := work(u.ctx)
		u.post(func() {
			form.busy = false
			if err != nil {
				u.logger.Debug("form rejected", zap.Error(err))
				u.status = err.Error()
				return
			}
			if u.form == form {
				u.form = nil
			}
		})
	})
	return nil
}

func (u *UI) cancelForm(_ *gocui.Gui, _ *gocui.View) error {
	u.form = nil
	u.status = ""
	return nil
}

func (u *UI) nextFormField(_ *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index < len(u.form.fields)-1 {
		u.form.index++
	}
	u.renderForm(view)
	return nil
}

func (u *UI) prevFormField(_ *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index > 0 {
		u.form.index--
	}
	u.renderForm(view)
	return nil
}

func (u *UI) renderForm(view *gocui.View) {
	if u.form == nil || view == nil {
		return
	}
	view.Clear()
	for index, field := range u.form.fields {
		prefix := "  "
		if index == u.form.index {
			prefix = "> "
		}
		fmt.Fprintf(view, "%s%s: %s\n", prefix, field.Label, field.Value)
	}
	field := u.form.fields[u.form.index]
	cursorX := len([]rune(field.Label)) + len([]rune(field.Value)) + 4
	view.SetCursor(cursorX, u.form.index)
}

func (u *UI) inputActive() bool {
	return u.searchActive || u.form != nil || u.helpActive
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func helpText() string {
	return strings.Join([]string{
		"Navigation:",
		"  Tab cycle screens | 1 Employees | 2 Appointments | 3 Inventory | 4 Listings",
		"  j/k or arrows move selection | mouse click selects",
		"",
		"Actions:",
		"  a add | e edit (sends only changed fields) | d delete",
		"  enter save (form) | tab/arrows next field | esc cancel",
		"  space/left/right cycle status and type (form)",
		"",
		"Search/Filter:",
		"  / search | f cycle status filter | g clear filters",
		"",
		"Other:",
		"  r reload | R reload all | c clear error | ? help | esc/q close help | q quit",
	}, "\n")
}

func applyViewStyle(view *gocui.View, focused bool, highlight bool) {
	view.Frame = true
	view.Highlight = focused && highlight
	view.HighlightInactive = false
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	view.InactiveViewSelBgColor = gocui.ColorDefault
	if focused {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
		view.TitleColor = gocui.ColorDefault
	}
}
