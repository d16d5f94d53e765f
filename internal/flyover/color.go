package flyover

import "github.com/charmbracelet/log"

const (
	// StorageKey is the session-scoped record holding the last tile color.
	StorageKey = "metroTileColor"
	// PageProperty is the page-level style property tinted by an open tile.
	PageProperty = "--metro-page-bg"
)

// SessionStorage is session-scoped key/value storage. Writes may fail.
type SessionStorage interface {
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// PageStyle sets and removes page-level style properties.
type PageStyle interface {
	SetProperty(name, value string)
	RemoveProperty(name string)
}

// ColorEffect applies or clears the transient tile color.
type ColorEffect interface {
	Apply(color string)
	Clear()
}

// ColorSideEffect persists the tile color for the session and paints it on
// the page background. Storage failures are logged and otherwise ignored.
type ColorSideEffect struct {
	storage SessionStorage
	page    PageStyle
	logger  *log.Logger
}

// NewColorSideEffect returns a ColorSideEffect. A nil logger uses log.Default().
func NewColorSideEffect(storage SessionStorage, page PageStyle, logger *log.Logger) *ColorSideEffect {
	if logger == nil {
		logger = log.Default()
	}
	return &ColorSideEffect{storage: storage, page: page, logger: logger}
}

// Apply records color and sets it as the page background. An empty color clears.
func (e *ColorSideEffect) Apply(color string) {
	if color == "" {
		e.Clear()
		return
	}
	if e.storage != nil {
		if err := e.storage.SetItem(StorageKey, color); err != nil {
			e.logger.Error("failed to persist tile color", "err", err)
		}
	}
	if e.page != nil {
		e.page.SetProperty(PageProperty, color)
	}
}

// Clear removes the stored color and the page background property.
func (e *ColorSideEffect) Clear() {
	if e.storage != nil {
		if err := e.storage.RemoveItem(StorageKey); err != nil {
			e.logger.Error("failed to clear tile color", "err", err)
		}
	}
	if e.page != nil {
		e.page.RemoveProperty(PageProperty)
	}
}
