package app

import (
	"github.com/bethropolis/tandem/internal/event"
	"github.com/bethropolis/tandem/internal/modehandler"
	"github.com/bethropolis/tandem/internal/plugin"
)

// editorAPI implements plugin.EditorAPI on top of the App.
type editorAPI struct {
	app *App
}

var _ plugin.EditorAPI = (*editorAPI)(nil)

func newEditorAPI(a *App) *editorAPI {
	return &editorAPI{app: a}
}

func (api *editorAPI) DocumentID() string {
	return api.app.session.Config().DocID
}

func (api *editorAPI) DocumentContent() string {
	return api.app.session.Surface().Content()
}

func (api *editorAPI) DocumentText() string {
	return api.app.session.Surface().Text()
}

func (api *editorAPI) SubscribeEvent(eventType event.Type, handler event.Handler) {
	api.app.eventManager.Subscribe(eventType, handler)
}

func (api *editorAPI) RegisterCommand(name string, cmdFunc plugin.CommandFunc) error {
	return api.app.modeHandler.RegisterCommand(name, modehandler.CommandFunc(cmdFunc))
}

func (api *editorAPI) SetStatusMessage(format string, args ...interface{}) {
	api.app.statusBar.SetTemporaryMessage(format, args...)
	api.app.requestRedraw()
}
