package engine

import (
	"context"
	"slices"

	"github.com/aretw0/wflow/pkg/domain"
)

// SetLanguage changes the interface language.
type SetLanguage struct {
	Language string `json:"language"`
}

func (SetLanguage) Name() string { return "set-language" }
func (SetLanguage) isCommand()   {}

func (c SetLanguage) load(context.Context, *Context, domain.State) (string, error) {
	return c.Language, nil
}

func (SetLanguage) validate(lang string) error {
	if !slices.Contains(domain.AvailableLanguages(), lang) {
		return domain.ValidationError("unsupported language %q (available: %v)", lang, domain.AvailableLanguages())
	}
	return nil
}

func (SetLanguage) emit(_ context.Context, _ *Context, _ domain.State, lang string) ([]domain.Event, error) {
	return []domain.Event{domain.NewEvent(domain.LanguageSetEvent{Language: lang})}, nil
}

func (SetLanguage) effect(_ context.Context, ec *Context, _, next domain.State) error {
	st, ok := next.(domain.LanguageSet)
	if !ok {
		return nil
	}
	settings, err := ec.App.settings()
	if err != nil {
		return err
	}
	if err := settings.SetLanguage(st.Language); err != nil {
		return err
	}
	ec.render().Success("Language set to %s", st.Language)
	return nil
}

// GetCurrentLanguage reports the configured language.
type GetCurrentLanguage struct{}

func (GetCurrentLanguage) Name() string { return "get-current-language" }
func (GetCurrentLanguage) isCommand()   {}

func (GetCurrentLanguage) load(_ context.Context, ec *Context, _ domain.State) (string, error) {
	settings, err := ec.App.settings()
	if err != nil {
		return "", err
	}
	return settings.Language(), nil
}

func (GetCurrentLanguage) validate(string) error { return nil }

func (GetCurrentLanguage) emit(_ context.Context, _ *Context, _ domain.State, lang string) ([]domain.Event, error) {
	return []domain.Event{domain.NewEvent(domain.CurrentLanguageRetrievedEvent{Language: lang})}, nil
}

func (GetCurrentLanguage) effect(_ context.Context, ec *Context, _, next domain.State) error {
	if st, ok := next.(domain.CurrentLanguageRetrieved); ok {
		ec.render().Message("Current language: %s", st.Language)
	}
	return nil
}

// ListLanguages reports the supported languages.
type ListLanguages struct{}

func (ListLanguages) Name() string { return "list-languages" }
func (ListLanguages) isCommand()   {}

func (ListLanguages) load(context.Context, *Context, domain.State) ([]string, error) {
	return domain.AvailableLanguages(), nil
}

func (ListLanguages) validate([]string) error { return nil }

func (ListLanguages) emit(_ context.Context, _ *Context, _ domain.State, langs []string) ([]domain.Event, error) {
	return []domain.Event{domain.NewEvent(domain.AvailableLanguagesListedEvent{Languages: langs})}, nil
}

func (ListLanguages) effect(_ context.Context, ec *Context, _, next domain.State) error {
	st, ok := next.(domain.AvailableLanguagesListed)
	if !ok {
		return nil
	}
	current := ""
	if ec.App.Settings != nil {
		current = ec.App.Settings.Language()
	}
	r := ec.render()
	r.Message("Available languages:")
	for _, l := range st.Languages {
		if l == current {
			r.Message("  * %s", l)
		} else {
			r.Message("    %s", l)
		}
	}
	return nil
}

// SetStorageBackend selects the journal backend used from the next start on.
type SetStorageBackend struct {
	Backend string `json:"backend"`
}

func (SetStorageBackend) Name() string { return "set-storage-backend" }
func (SetStorageBackend) isCommand()   {}

func (c SetStorageBackend) load(context.Context, *Context, domain.State) (string, error) {
	return c.Backend, nil
}

func (SetStorageBackend) validate(backend string) error {
	if !slices.Contains(domain.StorageBackends(), backend) {
		return domain.ValidationError("unsupported storage backend %q (available: %v)", backend, domain.StorageBackends())
	}
	return nil
}

func (SetStorageBackend) emit(_ context.Context, _ *Context, _ domain.State, backend string) ([]domain.Event, error) {
	return []domain.Event{domain.NewEvent(domain.StorageBackendSetEvent{Backend: backend})}, nil
}

func (SetStorageBackend) effect(_ context.Context, ec *Context, _, next domain.State) error {
	st, ok := next.(domain.StorageBackendSet)
	if !ok {
		return nil
	}
	settings, err := ec.App.settings()
	if err != nil {
		return err
	}
	if err := settings.SetStorageBackend(st.Backend); err != nil {
		return err
	}
	ec.render().Success("Storage backend set to %s (takes effect on next start)", st.Backend)
	return nil
}
