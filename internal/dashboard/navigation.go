package dashboard

// Input is an abstract navigation symbol; key bindings live in the UI.
type Input int

const (
	InputDown Input = iota
	InputUp
	InputRight
	InputLeft
	InputActivate
	InputCancel
)

func (in Input) String() string {
	switch in {
	case InputDown:
		return "down"
	case InputUp:
		return "up"
	case InputRight:
		return "right"
	case InputLeft:
		return "left"
	case InputActivate:
		return "activate"
	case InputCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

type Popup int

const (
	PopupNone Popup = iota
	PopupContextMenu
	PopupLogs
)

type MenuAction int

const (
	ActionViewLogs MenuAction = iota
	ActionOpenBrowser
	ActionCopyURL
	ActionCloseMenu
)

var menuActions = []MenuAction{ActionViewLogs, ActionOpenBrowser, ActionCopyURL, ActionCloseMenu}

// MenuActions lists the context menu entries in display order.
func MenuActions() []MenuAction {
	return append([]MenuAction(nil), menuActions...)
}

func (a MenuAction) String() string {
	switch a {
	case ActionViewLogs:
		return "View Logs"
	case ActionOpenBrowser:
		return "Open in Browser"
	case ActionCopyURL:
		return "Copy URL"
	case ActionCloseMenu:
		return "Close Menu"
	default:
		return "Unknown"
	}
}

// Menu is the context menu cursor.
type Menu struct {
	index int
}

func (m Menu) Index() int { return m.index }

func (m Menu) Selected() MenuAction { return menuActions[m.index] }

func (m *Menu) next() {
	m.index = (m.index + 1) % len(menuActions)
}

func (m *Menu) previous() {
	m.index = (m.index + len(menuActions) - 1) % len(menuActions)
}

// Selection indexes into the repository list and the selected repository's runs.
// -1, or anything out of range at the time of use, means nothing is selected.
type Selection struct {
	Repo int
	Run  int
}

var noSelection = Selection{Repo: -1, Run: -1}

type runPos struct {
	repo, run int
}

// Handle applies one input symbol. It never fails: stale indices are normalised.
// Menu side effects (browser, clipboard) run after the lock is released.
func (s *State) Handle(in Input) {
	s.mu.Lock()
	var effect func() string
	switch s.popup {
	case PopupNone:
		s.handleNavigation(in)
	case PopupContextMenu:
		effect = s.handleMenu(in)
	case PopupLogs:
		if in == InputCancel {
			s.popup = PopupNone
		}
	}
	s.mu.Unlock()

	if effect == nil {
		return
	}
	notice := effect()
	s.mu.Lock()
	s.notice = notice
	s.mu.Unlock()
}

func (s *State) handleNavigation(in Input) {
	switch in {
	case InputDown:
		s.moveRepo(1)
	case InputUp:
		s.moveRepo(-1)
	case InputRight:
		s.moveRun(1)
	case InputLeft:
		s.moveRun(-1)
	case InputActivate:
		s.menu = Menu{}
		s.popup = PopupContextMenu
	case InputCancel:
	}
}

func (s *State) handleMenu(in Input) func() string {
	switch in {
	case InputDown:
		s.menu.next()
	case InputUp:
		s.menu.previous()
	case InputRight, InputLeft:
	case InputActivate:
		return s.execute(s.menu.Selected())
	case InputCancel:
		s.popup = PopupNone
	}
	return nil
}

func (s *State) moveRepo(step int) {
	n := len(s.repos)
	if n == 0 {
		return
	}
	cur := s.selection.Repo
	switch {
	case cur < 0 || cur >= n:
		if step > 0 {
			cur = 0
		} else {
			cur = n - 1
		}
	default:
		cur = (cur + step + n) % n
	}
	s.selection = Selection{Repo: cur, Run: -1}
}

// moveRun walks the (repository, run) pairs of all repositories in list order.
func (s *State) moveRun(step int) {
	pairs := s.runPairs()
	if len(pairs) == 0 {
		return
	}

	cur := -1
	for i, p := range pairs {
		if p.repo == s.selection.Repo && p.run == s.selection.Run {
			cur = i
			break
		}
	}

	next := 0
	if cur >= 0 {
		next = (cur + step + len(pairs)) % len(pairs)
	}
	s.selection = Selection{Repo: pairs[next].repo, Run: pairs[next].run}
}

func (s *State) runPairs() []runPos {
	var pairs []runPos
	for i, repo := range s.repos {
		for j := range s.runs[repo.FullName] {
			pairs = append(pairs, runPos{repo: i, run: j})
		}
	}
	return pairs
}

// execute applies a menu action under the lock and returns the external side effect,
// if any, which yields the notice to show.
func (s *State) execute(action MenuAction) func() string {
	switch action {
	case ActionViewLogs:
		if _, _, ok := s.selectedRunLocked(); !ok {
			s.notice = "select a run to view its logs"
			return nil
		}
		s.popup = PopupLogs
	case ActionOpenBrowser:
		s.popup = PopupNone
		if url := s.selectedURLLocked(); url != "" {
			opener, logger := s.opener, s.logger
			return func() string {
				if err := opener.Open(url); err != nil {
					logger.Error("open in browser failed", "url", url, "err", err)
					return "could not open browser: " + err.Error()
				}
				return "opened " + url
			}
		}
	case ActionCopyURL:
		s.popup = PopupNone
		if url := s.selectedURLLocked(); url != "" {
			clipboard, logger := s.clipboard, s.logger
			return func() string {
				if err := clipboard.WriteAll(url); err != nil {
					logger.Error("copy url failed", "url", url, "err", err)
					return "could not copy url: " + err.Error()
				}
				return "copied " + url
			}
		}
	case ActionCloseMenu:
		s.popup = PopupNone
	}
	return nil
}
