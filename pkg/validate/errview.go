package validate

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/param-gate/paramgate/pkg/changeset"
)

// ErrorView renders the error representation sent to the client when
// validation fails. The status is the configured error status (or the
// status declared by the action's response catalogue).
type ErrorView interface {
	RenderError(w http.ResponseWriter, r *http.Request, status int, cs *changeset.Changeset)
}

// JSONErrorView renders the changeset's error map as a JSON object:
// {"errors": {field: [messages]}}.
type JSONErrorView struct{}

// RenderError implements ErrorView.
func (JSONErrorView) RenderError(w http.ResponseWriter, r *http.Request, status int, cs *changeset.Changeset) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if cs == nil {
		cs = changeset.New(nil)
	}
	_ = json.NewEncoder(w).Encode(cs)
}

var (
	viewsMu sync.RWMutex
	views   = map[string]ErrorView{
		"json": JSONErrorView{},
	}
)

// RegisterView makes an error view available under the given name so it
// can be selected from configuration. Registering an existing name
// replaces the previous view.
func RegisterView(name string, view ErrorView) {
	viewsMu.Lock()
	defer viewsMu.Unlock()
	views[name] = view
}

// LookupView returns the error view registered under name.
func LookupView(name string) (ErrorView, bool) {
	viewsMu.RLock()
	defer viewsMu.RUnlock()
	v, ok := views[name]
	return v, ok
}

// Compile-time check that JSONErrorView implements ErrorView.
var _ ErrorView = JSONErrorView{}
