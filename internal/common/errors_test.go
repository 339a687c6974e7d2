package common

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAsMySQLErrorPassesThroughTypedError(t *testing.T) {
	e := NewError(ErAccessDeniedError, "nope")
	got := AsMySQLError(e)
	assert.Same(t, e, got)
}

func TestAsMySQLErrorTranslatesSchemaError(t *testing.T) {
	se := &SchemaError{Code: ErNoDBError, Message: "no db"}
	got := AsMySQLError(se)
	assert.Equal(t, ErNoDBError, got.Code)
	assert.Equal(t, "no db", got.Message)
}

func TestAsMySQLErrorUnwrapsWrappedError(t *testing.T) {
	inner := NewError(ErNoDBError, "unknown database")
	wrapped := errors.Wrap(inner, "backend query")
	got := AsMySQLError(wrapped)
	assert.Equal(t, ErNoDBError, got.Code)
}

func TestAsMySQLErrorFallsBackToUnknown(t *testing.T) {
	got := AsMySQLError(errors.New("boom"))
	assert.Equal(t, ErUnknownError, got.Code)
}

func TestAsMySQLErrorNil(t *testing.T) {
	assert.Nil(t, AsMySQLError(nil))
}

func TestSQLStateDefaultsToGeneric(t *testing.T) {
	assert.Equal(t, UnknownSQLState, SQLState(99999))
	assert.Equal(t, "28000", SQLState(ErAccessDeniedError))
}
