package service

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func encodePatch(raw string) string {
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func TestDecodePatchTitleAndContent(t *testing.T) {
	patch, err := DecodePatch(encodePatch(`{"title":"Meeting notes","content":"- agenda"}`))
	assert.NoError(t, err)
	assert.NotNil(t, patch.Title)
	assert.Equal(t, "Meeting notes", *patch.Title)
	assert.NotNil(t, patch.Content)
	assert.Equal(t, "- agenda", *patch.Content)
}

func TestDecodePatchSingleField(t *testing.T) {
	patch, err := DecodePatch(encodePatch(`{"content":"body only"}`))
	assert.NoError(t, err)
	assert.Nil(t, patch.Title)
	assert.Equal(t, "body only", *patch.Content)
}

func TestDecodePatchEmptyObject(t *testing.T) {
	patch, err := DecodePatch(encodePatch(`{}`))
	assert.NoError(t, err)
	assert.True(t, patch.IsEmpty())
}

func TestDecodePatchRejectsBadBase64(t *testing.T) {
	_, err := DecodePatch("not-base64!!")
	var invalid *InvalidPatchError
	assert.True(t, errors.As(err, &invalid))
}

func TestDecodePatchRejectsNonObject(t *testing.T) {
	_, err := DecodePatch(encodePatch(`["title"]`))
	var invalid *InvalidPatchError
	assert.True(t, errors.As(err, &invalid))
}

func TestDecodePatchRejectsUnknownField(t *testing.T) {
	_, err := DecodePatch(encodePatch(`{"owner":"someone"}`))
	var invalid *InvalidPatchError
	assert.True(t, errors.As(err, &invalid))
}

func TestDecodePatchRejectsNonStringValue(t *testing.T) {
	_, err := DecodePatch(encodePatch(`{"title":42}`))
	var invalid *InvalidPatchError
	assert.True(t, errors.As(err, &invalid))
}
