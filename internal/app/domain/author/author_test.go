package author

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatchApply(t *testing.T) {
	a := New("Ursula")
	assert.Equal(t, a, Patch{}.Apply(a))

	name := " Ursula K. Le Guin "
	assert.Equal(t, "Ursula K. Le Guin", Patch{Name: &name}.Apply(a).Name)
}

func TestErrors(t *testing.T) {
	example := ErrExample()
	assert.Equal(t, "1-001", example.Code)
	assert.Equal(t, "AUTHOR_ERROR.Example", example.Name)
	assert.Equal(t, http.StatusBadRequest, example.HTTPStatus)

	missing := ErrNotFoundByID("a1", nil)
	assert.Equal(t, "1-002", missing.Code)
	assert.Equal(t, http.StatusNotFound, missing.HTTPStatus)
}
