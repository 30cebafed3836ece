package common

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/booknotes/internal/errors"
	"gorm.io/gorm"
)

type sample struct {
	Title string `json:"title"`
	Date  string `json:"date"`
}

func (s sample) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Title, validation.Required),
		validation.Field(&s.Date, validation.Required, IsDate),
	)
}

func TestValidate(t *testing.T) {
	err := Validate(sample{})
	require.Error(t, err)
	appErr, ok := errors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrInvalidParams, appErr.Code)
	assert.Equal(t, "date: cannot be blank; title: cannot be blank", appErr.Details)

	err = Validate(sample{Title: "x", Date: "yesterday"})
	appErr, _ = errors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Contains(t, appErr.Details, "date: must be a valid date")

	assert.NoError(t, Validate(sample{Title: "x", Date: "2024-05-01"}))
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2024-05-01", "2024-05-01T08:30:00Z", "2024-05-01T08:30:00.123+08:00", "2024-05-01 08:30:00"} {
		d, err := ParseDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, 2024, d.Year())
		assert.Equal(t, time.May, d.Month())
	}

	_, err := ParseDate("05/01/2024")
	assert.Error(t, err)
}

func TestDBError(t *testing.T) {
	assert.NoError(t, DBError(errors.ErrDatabaseQuery, "Article", nil))

	appErr, _ := errors.GetAppError(DBError(errors.ErrDatabaseQuery, "Article", gorm.ErrRecordNotFound))
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrRecordNotFound, appErr.Code)

	appErr, _ = errors.GetAppError(DBError(errors.ErrDatabaseInsert, "Category", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrRecordAlreadyExists, appErr.Code)

	appErr, _ = errors.GetAppError(DBError(errors.ErrDatabaseUpdate, "Event", stderrors.New("locked")))
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrDatabaseUpdate, appErr.Code)
}

func TestCleanStrings(t *testing.T) {
	assert.Equal(t, []string{"go", "web"}, SplitTags(" go, ,web ,"))
	assert.NotNil(t, CleanStrings(nil))
	assert.Empty(t, CleanStrings(nil))
}
