package i18n_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda-eventos/internal/pkg/i18n"
)

func TestCatalogLoading(t *testing.T) {
	catalog := i18n.NewCatalog("es")

	err := catalog.Load(filepath.Join("..", "..", "..", "locales"))
	require.NoError(t, err)

	assert.Equal(t, "Transporte confirmado", catalog.T("es", "transport_confirmed_title"))
	assert.Equal(t, "Transport confirmed", catalog.T("en", "transport_confirmed_title"))
	assert.Equal(t, `El evento "Feria" fue eliminado`, catalog.T("es", "event_deleted_message", "Feria"))

	// unknown locale falls back to es
	assert.Equal(t, "Evento cancelado", catalog.T("pt", "event_cancelled_title"))

	assert.Equal(t, "NON_EXISTENT_KEY", catalog.T("es", "NON_EXISTENT_KEY", "ignored"))
}

func TestCatalogLoadBytes(t *testing.T) {
	catalog := i18n.NewCatalog("en")
	require.NoError(t, catalog.LoadBytes("en", []byte("NOTIFICATIONS:\n  hello: \"Hi %s\"\n")))

	assert.Equal(t, "Hi Ana", catalog.T("en", "hello", "Ana"))
	assert.Equal(t, "Hi Ana", catalog.T("de", "hello", "Ana"))
}

func TestNilCatalogReturnsKey(t *testing.T) {
	var catalog *i18n.Catalog
	assert.Equal(t, "some_key", catalog.T("es", "some_key", 1))
}
